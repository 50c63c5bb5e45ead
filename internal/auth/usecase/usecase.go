package usecase

import (
	"context"
	"errors"

	authdomain "linecal-backend/internal/auth/domain"
	"linecal-backend/pkg/googlecal"
)

// ErrAuthRequired means no usable credential is stored; the user must go
// through the initial OAuth flow.
var ErrAuthRequired = errors.New("google authentication required")

// ErrReauthRequired means the stored refresh token was revoked and the
// credential has been cleared; the user must authorize again.
var ErrReauthRequired = errors.New("google re-authentication required")

// OAuthProvider is the external Google OAuth surface the lifecycle
// manager depends on.
type OAuthProvider interface {
	AuthURL(state string) (string, error)
	ExchangeCode(ctx context.Context, code string) (*googlecal.Token, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*googlecal.Token, error)
	ListCalendars(ctx context.Context, accessToken string) ([]googlecal.CalendarInfo, error)
}

// AuthUsecase owns the per-user Google credential lifecycle.
type AuthUsecase interface {
	// FindUser returns the stored account for a LINE user id, or nil.
	FindUser(lineUserID string) (*authdomain.User, error)

	// EnsureCredential returns a usable decrypted access token for the
	// user, refreshing it when near expiry. Returns ErrAuthRequired or
	// ErrReauthRequired when the user has to (re-)authorize.
	EnsureCredential(ctx context.Context, lineUserID string) (*authdomain.User, string, error)

	// DecryptRefreshToken exposes the decrypted refresh token for calls
	// that need the full pair (calendar writes).
	DecryptRefreshToken(user *authdomain.User) (string, error)

	// CachedCalendars parses the calendar list cached on the user record.
	// An absent or unparsable cache yields nil.
	CachedCalendars(user *authdomain.User) []googlecal.CalendarInfo

	// AuthURL starts the OAuth flow for a LINE user, carrying the user id
	// in a signed state parameter.
	AuthURL(lineUserID string) (string, error)

	// HandleCallback exchanges the authorization code, encrypts and
	// persists the token pair plus the calendar cache, and returns the
	// LINE user id recovered from the state.
	HandleCallback(ctx context.Context, code, state string) (string, error)
}
