package repository

import (
	"errors"
	"time"

	authdomain "linecal-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines storage operations on LINE user accounts.
type UserRepository interface {
	FindByLineUserID(lineUserID string) (*authdomain.User, error)
	UpsertCredentials(lineUserID, encryptedAccess, encryptedRefresh string, expiry *time.Time, calendarsJSON string) (*authdomain.User, error)
	UpdateAccessToken(userID, encryptedAccess string, expiry *time.Time) error
	ClearCredentials(userID string) error
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) FindByLineUserID(lineUserID string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where("line_user_id = ?", lineUserID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// UpsertCredentials creates the user on first OAuth callback and replaces
// the stored credential on later ones.
func (r *userRepository) UpsertCredentials(lineUserID, encryptedAccess, encryptedRefresh string, expiry *time.Time, calendarsJSON string) (*authdomain.User, error) {
	user, err := r.FindByLineUserID(lineUserID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if user == nil {
		user = &authdomain.User{
			ID:         uuid.New().String(),
			LineUserID: lineUserID,
			CreatedAt:  now,
		}
	}

	user.GoogleAccessToken = &encryptedAccess
	user.GoogleRefreshToken = &encryptedRefresh
	user.GoogleTokenExpiry = expiry
	user.GoogleCalendars = &calendarsJSON
	user.UpdatedAt = now

	if err := r.db.Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) UpdateAccessToken(userID, encryptedAccess string, expiry *time.Time) error {
	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"google_access_token": encryptedAccess,
			"google_token_expiry": expiry,
			"updated_at":          time.Now(),
		}).Error
}

// ClearCredentials wipes the token pair after a revoked refresh, forcing
// re-authentication. The user row itself is kept.
func (r *userRepository) ClearCredentials(userID string) error {
	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{
			"google_access_token":  nil,
			"google_refresh_token": nil,
			"google_token_expiry":  nil,
			"updated_at":           time.Now(),
		}).Error
}
