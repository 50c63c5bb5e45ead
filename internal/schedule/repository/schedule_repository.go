package repository

import (
	"errors"
	"time"

	"linecal-backend/internal/schedule/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// scheduleRepository implements ScheduleRepository using GORM
type scheduleRepository struct {
	db *gorm.DB
}

// NewScheduleRepository creates a new instance of scheduleRepository
func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) Create(schedule *domain.PendingSchedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}
	if schedule.Status == "" {
		schedule.Status = domain.StatusPending
	}
	schedule.CreatedAt = time.Now()
	schedule.UpdatedAt = time.Now()
	return r.db.Create(schedule).Error
}

func (r *scheduleRepository) FindPending(id, userID string) (*domain.PendingSchedule, error) {
	var schedule domain.PendingSchedule
	err := r.db.Where("id = ? AND user_id = ? AND status = ?", id, userID, domain.StatusPending).
		First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &schedule, nil
}

// completeTransition performs the conditional status update plus the
// history append as one transaction. RowsAffected of the guarded update
// decides whether this caller won the transition.
func (r *scheduleRepository) completeTransition(id, userID string, history *domain.ScheduleHistory, updates map[string]interface{}) (bool, error) {
	completed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.PendingSchedule{}).
			Where("id = ? AND user_id = ? AND status = ?", id, userID, domain.StatusPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		completed = true

		history.ID = uuid.New().String()
		history.UserID = userID
		history.ScheduleID = id
		history.CreatedAt = time.Now()
		return tx.Create(history).Error
	})
	if err != nil {
		return false, err
	}
	return completed, nil
}

func (r *scheduleRepository) CompleteRegistration(id, userID, calendarID, googleEventID string) (bool, error) {
	return r.completeTransition(id, userID,
		&domain.ScheduleHistory{
			Action:        domain.ActionRegistered,
			CalendarID:    &calendarID,
			GoogleEventID: &googleEventID,
		},
		map[string]interface{}{
			"status":      domain.StatusRegistered,
			"calendar_id": calendarID,
			"updated_at":  time.Now(),
		})
}

func (r *scheduleRepository) CompleteSkip(id, userID string) (bool, error) {
	return r.completeTransition(id, userID,
		&domain.ScheduleHistory{
			Action: domain.ActionSkipped,
		},
		map[string]interface{}{
			"status":     domain.StatusSkipped,
			"updated_at": time.Now(),
		})
}

func (r *scheduleRepository) DeleteProcessed() (int64, error) {
	res := r.db.Where("status IN ?", []domain.ScheduleStatus{domain.StatusRegistered, domain.StatusSkipped}).
		Delete(&domain.PendingSchedule{})
	return res.RowsAffected, res.Error
}

func (r *scheduleRepository) DeleteStalePending(olderThan time.Time) (int64, error) {
	res := r.db.Where("status = ? AND created_at < ?", domain.StatusPending, olderThan).
		Delete(&domain.PendingSchedule{})
	return res.RowsAffected, res.Error
}

func (r *scheduleRepository) DeleteOrphanHistory() (int64, error) {
	res := r.db.Where("schedule_id NOT IN (?)",
		r.db.Model(&domain.PendingSchedule{}).Select("id")).
		Delete(&domain.ScheduleHistory{})
	return res.RowsAffected, res.Error
}
