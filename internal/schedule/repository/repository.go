package repository

import (
	"time"

	"linecal-backend/internal/schedule/domain"
)

// ScheduleRepository defines storage operations on pending schedules and
// their history rows.
type ScheduleRepository interface {
	Create(schedule *domain.PendingSchedule) error

	// FindPending looks up a schedule by id, owning user and PENDING
	// status. Any mismatch returns (nil, nil) so callers cannot tell a
	// foreign schedule from a missing or already-processed one.
	FindPending(id, userID string) (*domain.PendingSchedule, error)

	// CompleteRegistration transitions PENDING to REGISTERED and appends
	// the history row in one transaction. The status update is
	// conditional on the current status, so a concurrent terminal action
	// makes this report false instead of mutating twice.
	CompleteRegistration(id, userID, calendarID, googleEventID string) (bool, error)

	// CompleteSkip is the same transition shape for SKIPPED, without an
	// external event id.
	CompleteSkip(id, userID string) (bool, error)

	// Housekeeping queries used by the cleanup job.
	DeleteProcessed() (int64, error)
	DeleteStalePending(olderThan time.Time) (int64, error)
	DeleteOrphanHistory() (int64, error)
}
