package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	authdomain "linecal-backend/internal/auth/domain"
	"linecal-backend/internal/auth/repository"
	"linecal-backend/pkg/config"
	"linecal-backend/pkg/crypto"
	"linecal-backend/pkg/googlecal"

	"github.com/golang-jwt/jwt/v5"
)

// tokenRefreshBuffer is how long before actual expiry a token is treated
// as near-expiry and proactively refreshed.
const tokenRefreshBuffer = 5 * time.Minute

// stateExpiry bounds how long an OAuth state parameter stays valid.
const stateExpiry = 10 * time.Minute

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo repository.UserRepository
	oauth    OAuthProvider
	vault    *crypto.Vault
	config   *config.Config
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo repository.UserRepository, oauth OAuthProvider, vault *crypto.Vault, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		oauth:    oauth,
		vault:    vault,
		config:   cfg,
	}
}

func (u *authUsecase) FindUser(lineUserID string) (*authdomain.User, error) {
	return u.userRepo.FindByLineUserID(lineUserID)
}

// isNearExpiry treats an unknown expiry as expired.
func isNearExpiry(expiry *time.Time) bool {
	if expiry == nil {
		return true
	}
	return time.Now().After(expiry.Add(-tokenRefreshBuffer))
}

func (u *authUsecase) EnsureCredential(ctx context.Context, lineUserID string) (*authdomain.User, string, error) {
	user, err := u.userRepo.FindByLineUserID(lineUserID)
	if err != nil {
		return nil, "", err
	}
	if user == nil || !user.HasCredentials() {
		return user, "", ErrAuthRequired
	}

	if !isNearExpiry(user.GoogleTokenExpiry) {
		accessToken, err := u.vault.Decrypt(*user.GoogleAccessToken)
		if err != nil {
			return nil, "", err
		}
		return user, accessToken, nil
	}

	refreshToken, err := u.vault.Decrypt(*user.GoogleRefreshToken)
	if err != nil {
		return nil, "", err
	}

	token, err := u.oauth.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, googlecal.ErrTokenRevoked) {
			if clearErr := u.userRepo.ClearCredentials(user.ID); clearErr != nil {
				return nil, "", clearErr
			}
			log.Printf("[WARN] refresh token revoked for user %s, credentials cleared", lineUserID)
			return user, "", ErrReauthRequired
		}

		// Transient refresh failure: fall back to the stored access token
		// rather than blocking the user. If it is truly expired the
		// downstream calendar call fails cleanly on its own.
		log.Printf("[ERROR] token refresh failed for user %s: %v", lineUserID, err)
		accessToken, decErr := u.vault.Decrypt(*user.GoogleAccessToken)
		if decErr != nil {
			return nil, "", decErr
		}
		return user, accessToken, nil
	}

	encryptedAccess, err := u.vault.Encrypt(token.AccessToken)
	if err != nil {
		return nil, "", err
	}
	if err := u.userRepo.UpdateAccessToken(user.ID, encryptedAccess, token.Expiry); err != nil {
		return nil, "", err
	}

	user.GoogleAccessToken = &encryptedAccess
	user.GoogleTokenExpiry = token.Expiry
	log.Printf("token refreshed for user %s", lineUserID)
	return user, token.AccessToken, nil
}

func (u *authUsecase) DecryptRefreshToken(user *authdomain.User) (string, error) {
	if user == nil || user.GoogleRefreshToken == nil {
		return "", ErrAuthRequired
	}
	return u.vault.Decrypt(*user.GoogleRefreshToken)
}

func (u *authUsecase) CachedCalendars(user *authdomain.User) []googlecal.CalendarInfo {
	if user == nil || user.GoogleCalendars == nil || *user.GoogleCalendars == "" {
		return nil
	}
	var calendars []googlecal.CalendarInfo
	if err := json.Unmarshal([]byte(*user.GoogleCalendars), &calendars); err != nil {
		return nil
	}
	return calendars
}

func (u *authUsecase) AuthURL(lineUserID string) (string, error) {
	state, err := u.signState(lineUserID)
	if err != nil {
		return "", err
	}
	return u.oauth.AuthURL(state)
}

func (u *authUsecase) HandleCallback(ctx context.Context, code, state string) (string, error) {
	lineUserID, err := u.parseState(state)
	if err != nil {
		return "", fmt.Errorf("invalid state parameter: %v", err)
	}

	token, err := u.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return "", err
	}

	encryptedAccess, err := u.vault.Encrypt(token.AccessToken)
	if err != nil {
		return "", err
	}
	encryptedRefresh, err := u.vault.Encrypt(token.RefreshToken)
	if err != nil {
		return "", err
	}

	// The calendar list is only a display cache; a fetch failure falls
	// back to the synthetic primary choice later.
	calendarsJSON := ""
	if calendars, err := u.oauth.ListCalendars(ctx, token.AccessToken); err != nil {
		log.Printf("[WARN] failed to fetch calendar list for user %s: %v", lineUserID, err)
	} else if data, err := json.Marshal(calendars); err == nil {
		calendarsJSON = string(data)
	}

	if _, err := u.userRepo.UpsertCredentials(lineUserID, encryptedAccess, encryptedRefresh, token.Expiry, calendarsJSON); err != nil {
		return "", err
	}

	return lineUserID, nil
}

func (u *authUsecase) signState(lineUserID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": lineUserID,
		"exp": time.Now().Add(stateExpiry).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.StateSecret))
}

func (u *authUsecase) parseState(state string) (string, error) {
	token, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(u.config.StateSecret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid state token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid state claims")
	}
	lineUserID, ok := claims["sub"].(string)
	if !ok || lineUserID == "" {
		return "", errors.New("invalid state claims")
	}
	return lineUserID, nil
}
