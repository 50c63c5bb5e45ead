package googlecal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// ErrTokenRevoked signals that the refresh token itself is no longer
// valid and the user must go through OAuth again.
var ErrTokenRevoked = errors.New("google refresh token revoked")

// Token is a decrypted Google credential pair.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
}

// CalendarInfo is the cached shape of one entry from the user's calendar
// list. Persisted as JSON on the user record.
type CalendarInfo struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Primary bool   `json:"primary,omitempty"`
}

// Event is the calendar-write payload.
type Event struct {
	Title       string
	Description string
	Location    string
	StartAt     time.Time
	EndAt       *time.Time
}

type Service struct {
	clientID     string
	clientSecret string
	redirectURI  string
}

func NewService(clientID, clientSecret, redirectURI string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
	}
}

func (s *Service) oauthConfig() (*oauth2.Config, error) {
	if s.clientID == "" || s.clientSecret == "" || s.redirectURI == "" {
		return nil, errors.New("google OAuth credentials are not configured")
	}
	return &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		RedirectURL:  s.redirectURI,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarScope},
	}, nil
}

// AuthURL builds the consent URL. Offline access plus a forced consent
// screen so Google returns a refresh token even on re-authorization.
func (s *Service) AuthURL(state string) (string, error) {
	config, err := s.oauthConfig()
	if err != nil {
		return "", err
	}
	return config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

// ExchangeCode trades an authorization code for a token pair.
func (s *Service) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	config, err := s.oauthConfig()
	if err != nil {
		return nil, err
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %v", err)
	}
	if token.AccessToken == "" || token.RefreshToken == "" {
		return nil, errors.New("google did not return a full token pair")
	}

	result := &Token{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		result.Expiry = &expiry
	}
	return result, nil
}

// RefreshAccessToken exchanges a refresh token for a new access token.
// Returns ErrTokenRevoked when the provider reports the grant itself is
// invalid, so callers can distinguish revocation from transient failure.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*Token, error) {
	config, err := s.oauthConfig()
	if err != nil {
		return nil, err
	}

	source := config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		if isRevokedError(err) {
			return nil, ErrTokenRevoked
		}
		return nil, fmt.Errorf("failed to refresh access token: %v", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("failed to refresh access token: no access token returned")
	}

	result := &Token{
		AccessToken:  token.AccessToken,
		RefreshToken: refreshToken,
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry
		result.Expiry = &expiry
	}
	return result, nil
}

func isRevokedError(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" {
			return true
		}
		if strings.Contains(string(retrieveErr.Body), "invalid_grant") {
			return true
		}
	}
	return strings.Contains(err.Error(), "invalid_grant") ||
		strings.Contains(err.Error(), "Token has been revoked")
}

func (s *Service) calendarService(ctx context.Context, accessToken, refreshToken string) (*calendar.Service, error) {
	config, err := s.oauthConfig()
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}
	client := oauth2.NewClient(ctx, config.TokenSource(ctx, token))

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar service: %v", err)
	}
	return srv, nil
}

// ListCalendars fetches the user's calendar list for caching.
func (s *Service) ListCalendars(ctx context.Context, accessToken string) ([]CalendarInfo, error) {
	srv, err := s.calendarService(ctx, accessToken, "")
	if err != nil {
		return nil, err
	}

	resp, err := srv.CalendarList.List().Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %v", err)
	}

	calendars := make([]CalendarInfo, 0, len(resp.Items))
	for _, item := range resp.Items {
		calendars = append(calendars, CalendarInfo{
			ID:      item.Id,
			Summary: item.Summary,
			Primary: item.Primary,
		})
	}
	return calendars, nil
}

// CreateEvent inserts one event and returns the Google event id.
func (s *Service) CreateEvent(ctx context.Context, accessToken, refreshToken string, event Event, calendarID string) (string, error) {
	srv, err := s.calendarService(ctx, accessToken, refreshToken)
	if err != nil {
		return "", err
	}

	if calendarID == "" {
		calendarID = "primary"
	}

	end := event.StartAt
	if event.EndAt != nil {
		end = *event.EndAt
	}

	googleEvent := &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start: &calendar.EventDateTime{
			DateTime: event.StartAt.Format(time.RFC3339),
			TimeZone: "Asia/Tokyo",
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: "Asia/Tokyo",
		},
	}

	created, err := srv.Events.Insert(calendarID, googleEvent).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create event: %v", err)
	}
	return created.Id, nil
}
