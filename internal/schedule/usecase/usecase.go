package usecase

import (
	"context"
	"errors"

	authdomain "linecal-backend/internal/auth/domain"
	"linecal-backend/internal/schedule/domain"
	"linecal-backend/pkg/gemini"
	"linecal-backend/pkg/googlecal"
)

// ErrNotFound covers a nonexistent schedule, a schedule owned by someone
// else and an already-processed schedule. Callers must not be able to
// tell the three apart.
var ErrNotFound = errors.New("schedule not found or already processed")

// ErrNoSchedules means extraction found nothing to confirm.
var ErrNoSchedules = errors.New("no schedules found")

// Extractor is the natural-language schedule extraction collaborator.
type Extractor interface {
	ExtractSchedules(ctx context.Context, message string) ([]gemini.Schedule, error)
	ExtractSchedulesFromImage(ctx context.Context, data []byte, mimeType string) ([]gemini.Schedule, error)
}

// CalendarWriter is the external calendar-write collaborator.
type CalendarWriter interface {
	CreateEvent(ctx context.Context, accessToken, refreshToken string, event googlecal.Event, calendarID string) (string, error)
}

// CalendarChoice is one selectable registration target.
type CalendarChoice struct {
	ID   string
	Name string
}

// RegistrationResult is returned for confirmation messaging.
type RegistrationResult struct {
	Title        string
	CalendarName string
}

type SkipResult struct {
	Title string
}

// ScheduleUsecase drives each extracted candidate through its
// confirmation lifecycle.
type ScheduleUsecase interface {
	// IntakeText extracts candidates from a text message and persists
	// them as PENDING. Returns ErrNoSchedules when nothing was found;
	// extraction failures degrade to the same result.
	IntakeText(ctx context.Context, user *authdomain.User, messageID, text string) ([]domain.PendingSchedule, error)

	// IntakeImage is the same path for a photographed message.
	IntakeImage(ctx context.Context, user *authdomain.User, messageID string, data []byte, mimeType string) ([]domain.PendingSchedule, error)

	// CalendarChoices lists the registration targets for one PENDING
	// schedule owned by the user.
	CalendarChoices(ctx context.Context, lineUserID, scheduleID string) ([]CalendarChoice, error)

	// Register writes the schedule to the chosen calendar and finalizes
	// the REGISTERED transition.
	Register(ctx context.Context, lineUserID, scheduleID, calendarID string) (*RegistrationResult, error)

	// Skip finalizes the SKIPPED transition. Works even for a user whose
	// Google credential has been revoked.
	Skip(ctx context.Context, lineUserID, scheduleID string) (*SkipResult, error)
}
