package usecase

import (
	"context"
	"log"
	"strings"
	"time"

	authdomain "linecal-backend/internal/auth/domain"
	authusecase "linecal-backend/internal/auth/usecase"
	"linecal-backend/internal/schedule/domain"
	"linecal-backend/internal/schedule/repository"
	"linecal-backend/pkg/gemini"
	"linecal-backend/pkg/googlecal"
)

// sharedCalendarMarker identifies group calendars the user usually cannot
// write to.
const sharedCalendarMarker = "@group.calendar.google.com"

// scheduleUsecase implements ScheduleUsecase interface
type scheduleUsecase struct {
	scheduleRepo      repository.ScheduleRepository
	authUsecase       authusecase.AuthUsecase
	extractor         Extractor
	calendarWriter    CalendarWriter
	extractionTimeout time.Duration
}

// NewScheduleUsecase creates a new instance of scheduleUsecase
func NewScheduleUsecase(scheduleRepo repository.ScheduleRepository, authUsecase authusecase.AuthUsecase, extractor Extractor, calendarWriter CalendarWriter, extractionTimeout time.Duration) ScheduleUsecase {
	return &scheduleUsecase{
		scheduleRepo:      scheduleRepo,
		authUsecase:       authUsecase,
		extractor:         extractor,
		calendarWriter:    calendarWriter,
		extractionTimeout: extractionTimeout,
	}
}

func (u *scheduleUsecase) IntakeText(ctx context.Context, user *authdomain.User, messageID, text string) ([]domain.PendingSchedule, error) {
	extractCtx, cancel := context.WithTimeout(ctx, u.extractionTimeout)
	defer cancel()

	candidates, err := u.extractor.ExtractSchedules(extractCtx, text)
	if err != nil {
		// Extraction is best effort: a timeout or provider error reads as
		// "nothing found", not as a hard failure.
		log.Printf("[WARN] schedule extraction failed for user %s: %v", user.LineUserID, err)
		return nil, ErrNoSchedules
	}

	return u.intake(user, messageID, candidates)
}

func (u *scheduleUsecase) IntakeImage(ctx context.Context, user *authdomain.User, messageID string, data []byte, mimeType string) ([]domain.PendingSchedule, error) {
	extractCtx, cancel := context.WithTimeout(ctx, u.extractionTimeout)
	defer cancel()

	candidates, err := u.extractor.ExtractSchedulesFromImage(extractCtx, data, mimeType)
	if err != nil {
		log.Printf("[WARN] image schedule extraction failed for user %s: %v", user.LineUserID, err)
		return nil, ErrNoSchedules
	}

	return u.intake(user, messageID, candidates)
}

func (u *scheduleUsecase) intake(user *authdomain.User, messageID string, candidates []gemini.Schedule) ([]domain.PendingSchedule, error) {
	schedules := make([]domain.PendingSchedule, 0, len(candidates))
	for _, candidate := range candidates {
		startAt, err := time.Parse(time.RFC3339, candidate.StartDateTime)
		if err != nil {
			log.Printf("[WARN] dropping candidate %q: bad start time %q", candidate.Title, candidate.StartDateTime)
			continue
		}

		schedule := domain.PendingSchedule{
			UserID:        user.ID,
			LineMessageID: messageID,
			Title:         candidate.Title,
			Description:   candidate.Description,
			Location:      candidate.Location,
			StartAt:       startAt,
			Status:        domain.StatusPending,
		}
		if candidate.EndDateTime != "" {
			if endAt, err := time.Parse(time.RFC3339, candidate.EndDateTime); err == nil {
				schedule.EndAt = &endAt
			}
		}

		if err := u.scheduleRepo.Create(&schedule); err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}

	if len(schedules) == 0 {
		return nil, ErrNoSchedules
	}
	return schedules, nil
}

func (u *scheduleUsecase) CalendarChoices(ctx context.Context, lineUserID, scheduleID string) ([]CalendarChoice, error) {
	user, err := u.authUsecase.FindUser(lineUserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.HasCredentials() {
		return nil, authusecase.ErrAuthRequired
	}

	schedule, err := u.scheduleRepo.FindPending(scheduleID, user.ID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, ErrNotFound
	}

	calendars := u.authUsecase.CachedCalendars(user)
	if len(calendars) == 0 {
		return []CalendarChoice{{ID: "primary", Name: "メインカレンダー"}}, nil
	}

	return writableChoices(calendars), nil
}

// writableChoices drops shared group calendars the user cannot write to,
// unless that would leave nothing to choose from.
func writableChoices(calendars []googlecal.CalendarInfo) []CalendarChoice {
	writable := make([]CalendarChoice, 0, len(calendars))
	for _, cal := range calendars {
		if strings.Contains(cal.ID, sharedCalendarMarker) && len(calendars) > 1 {
			continue
		}
		writable = append(writable, CalendarChoice{ID: cal.ID, Name: calendarDisplayName(cal.ID, cal.Summary)})
	}

	if len(writable) == 0 {
		for _, cal := range calendars {
			writable = append(writable, CalendarChoice{ID: cal.ID, Name: calendarDisplayName(cal.ID, cal.Summary)})
		}
	}
	return writable
}

func calendarDisplayName(id, summary string) string {
	if id == "primary" {
		return "メインカレンダー"
	}
	if summary != "" {
		return summary
	}
	return id
}

func (u *scheduleUsecase) Register(ctx context.Context, lineUserID, scheduleID, calendarID string) (*RegistrationResult, error) {
	user, accessToken, err := u.authUsecase.EnsureCredential(ctx, lineUserID)
	if err != nil {
		return nil, err
	}

	schedule, err := u.scheduleRepo.FindPending(scheduleID, user.ID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, ErrNotFound
	}

	refreshToken, err := u.authUsecase.DecryptRefreshToken(user)
	if err != nil {
		return nil, err
	}

	googleEventID, err := u.calendarWriter.CreateEvent(ctx, accessToken, refreshToken, googlecal.Event{
		Title:       schedule.Title,
		Description: schedule.Description,
		Location:    schedule.Location,
		StartAt:     schedule.StartAt,
		EndAt:       schedule.EndAt,
	}, calendarID)
	if err != nil {
		return nil, err
	}

	completed, err := u.scheduleRepo.CompleteRegistration(scheduleID, user.ID, calendarID, googleEventID)
	if err != nil {
		return nil, err
	}
	if !completed {
		// A concurrent terminal action won the transition after our
		// precondition read. The calendar event exists, but the state
		// machine stays single-shot.
		log.Printf("[WARN] registration race on schedule %s, event %s already superseded", scheduleID, googleEventID)
		return nil, ErrNotFound
	}

	return &RegistrationResult{
		Title:        schedule.Title,
		CalendarName: u.resolveCalendarName(user, calendarID),
	}, nil
}

func (u *scheduleUsecase) resolveCalendarName(user *authdomain.User, calendarID string) string {
	if calendarID == "primary" {
		return "メインカレンダー"
	}
	for _, cal := range u.authUsecase.CachedCalendars(user) {
		if cal.ID == calendarID {
			return calendarDisplayName(cal.ID, cal.Summary)
		}
	}
	return "カレンダー"
}

func (u *scheduleUsecase) Skip(ctx context.Context, lineUserID, scheduleID string) (*SkipResult, error) {
	// Skipping must work even with a revoked Google credential, so only
	// the user record is required here.
	user, err := u.authUsecase.FindUser(lineUserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authusecase.ErrAuthRequired
	}

	schedule, err := u.scheduleRepo.FindPending(scheduleID, user.ID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, ErrNotFound
	}

	completed, err := u.scheduleRepo.CompleteSkip(scheduleID, user.ID)
	if err != nil {
		return nil, err
	}
	if !completed {
		return nil, ErrNotFound
	}

	return &SkipResult{Title: schedule.Title}, nil
}
