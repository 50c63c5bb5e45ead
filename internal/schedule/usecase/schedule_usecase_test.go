package usecase

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	authdomain "linecal-backend/internal/auth/domain"
	authusecase "linecal-backend/internal/auth/usecase"
	"linecal-backend/internal/schedule/domain"
	"linecal-backend/pkg/gemini"
	"linecal-backend/pkg/googlecal"
)

// fakeAuth satisfies authusecase.AuthUsecase with canned users and
// credentials.
type fakeAuth struct {
	users       map[string]*authdomain.User // by LINE user id
	accessToken string
	ensureErr   error
	calendars   map[string][]googlecal.CalendarInfo // by user id
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		users:       make(map[string]*authdomain.User),
		accessToken: "access-token",
		calendars:   make(map[string][]googlecal.CalendarInfo),
	}
}

func (a *fakeAuth) FindUser(lineUserID string) (*authdomain.User, error) {
	return a.users[lineUserID], nil
}

func (a *fakeAuth) EnsureCredential(ctx context.Context, lineUserID string) (*authdomain.User, string, error) {
	if a.ensureErr != nil {
		return nil, "", a.ensureErr
	}
	user := a.users[lineUserID]
	if user == nil || !user.HasCredentials() {
		return nil, "", authusecase.ErrAuthRequired
	}
	return user, a.accessToken, nil
}

func (a *fakeAuth) DecryptRefreshToken(user *authdomain.User) (string, error) {
	if user == nil || user.GoogleRefreshToken == nil {
		return "", authusecase.ErrAuthRequired
	}
	return "refresh-token", nil
}

func (a *fakeAuth) CachedCalendars(user *authdomain.User) []googlecal.CalendarInfo {
	return a.calendars[user.ID]
}

func (a *fakeAuth) AuthURL(lineUserID string) (string, error) {
	return "https://accounts.example.com/auth", nil
}

func (a *fakeAuth) HandleCallback(ctx context.Context, code, state string) (string, error) {
	return "", errors.New("not implemented")
}

// fakeScheduleRepo keeps schedules in memory with the same conditional
// transition semantics as the gorm implementation.
type fakeScheduleRepo struct {
	schedules map[string]*domain.PendingSchedule
	history   []domain.ScheduleHistory
	nextID    int
}

func newFakeScheduleRepo() *fakeScheduleRepo {
	return &fakeScheduleRepo{schedules: make(map[string]*domain.PendingSchedule)}
}

func (r *fakeScheduleRepo) Create(schedule *domain.PendingSchedule) error {
	r.nextID++
	schedule.ID = "sched-" + strconv.Itoa(r.nextID)
	schedule.CreatedAt = time.Now()
	clone := *schedule
	r.schedules[schedule.ID] = &clone
	return nil
}

func (r *fakeScheduleRepo) FindPending(id, userID string) (*domain.PendingSchedule, error) {
	s, ok := r.schedules[id]
	if !ok || s.UserID != userID || s.Status != domain.StatusPending {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (r *fakeScheduleRepo) completeTransition(id, userID string, status domain.ScheduleStatus, history domain.ScheduleHistory) (bool, error) {
	s, ok := r.schedules[id]
	if !ok || s.UserID != userID || s.Status != domain.StatusPending {
		return false, nil
	}
	s.Status = status
	history.UserID = userID
	history.ScheduleID = id
	r.history = append(r.history, history)
	return true, nil
}

func (r *fakeScheduleRepo) CompleteRegistration(id, userID, calendarID, googleEventID string) (bool, error) {
	ok, err := r.completeTransition(id, userID, domain.StatusRegistered, domain.ScheduleHistory{
		Action:        domain.ActionRegistered,
		CalendarID:    &calendarID,
		GoogleEventID: &googleEventID,
	})
	if ok {
		r.schedules[id].CalendarID = &calendarID
	}
	return ok, err
}

func (r *fakeScheduleRepo) CompleteSkip(id, userID string) (bool, error) {
	return r.completeTransition(id, userID, domain.StatusSkipped, domain.ScheduleHistory{
		Action: domain.ActionSkipped,
	})
}

func (r *fakeScheduleRepo) DeleteProcessed() (int64, error)               { return 0, nil }
func (r *fakeScheduleRepo) DeleteStalePending(_ time.Time) (int64, error) { return 0, nil }
func (r *fakeScheduleRepo) DeleteOrphanHistory() (int64, error)           { return 0, nil }

type fakeExtractor struct {
	schedules []gemini.Schedule
	err       error
}

func (e *fakeExtractor) ExtractSchedules(ctx context.Context, message string) ([]gemini.Schedule, error) {
	return e.schedules, e.err
}

func (e *fakeExtractor) ExtractSchedulesFromImage(ctx context.Context, data []byte, mimeType string) ([]gemini.Schedule, error) {
	return e.schedules, e.err
}

type fakeWriter struct {
	calls   int
	eventID string
	err     error
}

func (w *fakeWriter) CreateEvent(ctx context.Context, accessToken, refreshToken string, event googlecal.Event, calendarID string) (string, error) {
	w.calls++
	if w.err != nil {
		return "", w.err
	}
	return w.eventID, nil
}

func newTestUsecase() (*fakeAuth, *fakeScheduleRepo, *fakeExtractor, *fakeWriter, ScheduleUsecase) {
	auth := newFakeAuth()
	repo := newFakeScheduleRepo()
	extractor := &fakeExtractor{}
	writer := &fakeWriter{eventID: "gcal-event-1"}
	uc := NewScheduleUsecase(repo, auth, extractor, writer, time.Second)
	return auth, repo, extractor, writer, uc
}

func authedUser(auth *fakeAuth, lineUserID string) *authdomain.User {
	access := "enc-access"
	refresh := "enc-refresh"
	user := &authdomain.User{
		ID:                 "user-" + lineUserID,
		LineUserID:         lineUserID,
		GoogleAccessToken:  &access,
		GoogleRefreshToken: &refresh,
	}
	auth.users[lineUserID] = user
	return user
}

func pendingSchedule(repo *fakeScheduleRepo, userID string) *domain.PendingSchedule {
	s := &domain.PendingSchedule{
		UserID:  userID,
		Title:   "打ち合わせ",
		StartAt: time.Now().Add(24 * time.Hour),
		Status:  domain.StatusPending,
	}
	repo.Create(s)
	return s
}

func TestIntakeTextPersistsPendingRows(t *testing.T) {
	auth, repo, extractor, _, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	extractor.schedules = []gemini.Schedule{
		{
			Title:         "会議",
			Location:      "会議室A",
			StartDateTime: "2026-09-01T15:00:00+09:00",
			EndDateTime:   "2026-09-01T16:00:00+09:00",
		},
	}

	schedules, err := uc.IntakeText(context.Background(), user, "msg-1", "明日15時に会議")
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 1 {
		t.Fatalf("got %d schedules, want 1", len(schedules))
	}

	stored := repo.schedules[schedules[0].ID]
	if stored == nil {
		t.Fatal("schedule was not persisted")
	}
	if stored.Status != domain.StatusPending {
		t.Errorf("status = %s, want PENDING", stored.Status)
	}
	if stored.LineMessageID != "msg-1" || stored.UserID != user.ID {
		t.Errorf("ownership fields wrong: %+v", stored)
	}
	if stored.EndAt == nil {
		t.Error("end time was dropped")
	}
}

func TestIntakeTextNoCandidates(t *testing.T) {
	auth, repo, extractor, _, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	extractor.schedules = nil

	_, err := uc.IntakeText(context.Background(), user, "msg-1", "こんにちは")
	if !errors.Is(err, ErrNoSchedules) {
		t.Fatalf("expected ErrNoSchedules, got %v", err)
	}
	if len(repo.schedules) != 0 {
		t.Errorf("persisted %d rows for an empty extraction", len(repo.schedules))
	}
}

func TestIntakeTextExtractionFailureDegrades(t *testing.T) {
	auth, _, extractor, _, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	extractor.err = context.DeadlineExceeded

	_, err := uc.IntakeText(context.Background(), user, "msg-1", "明日15時に会議")
	if !errors.Is(err, ErrNoSchedules) {
		t.Fatalf("extraction timeout must degrade to ErrNoSchedules, got %v", err)
	}
}

func TestIntakeDropsUnparsableCandidates(t *testing.T) {
	auth, repo, extractor, _, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	extractor.schedules = []gemini.Schedule{
		{Title: "壊れた候補", StartDateTime: "tomorrow-ish"},
		{Title: "正しい候補", StartDateTime: "2026-09-01T15:00:00+09:00"},
	}

	schedules, err := uc.IntakeText(context.Background(), user, "msg-1", "x")
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 1 || schedules[0].Title != "正しい候補" {
		t.Errorf("got %+v", schedules)
	}
	if len(repo.schedules) != 1 {
		t.Errorf("persisted %d rows, want 1", len(repo.schedules))
	}
}

func TestRegisterHappyPath(t *testing.T) {
	auth, repo, _, writer, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	auth.calendars[user.ID] = []googlecal.CalendarInfo{{ID: "work@example.com", Summary: "仕事"}}
	s := pendingSchedule(repo, user.ID)

	result, err := uc.Register(context.Background(), "U1", s.ID, "work@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if result.Title != "打ち合わせ" || result.CalendarName != "仕事" {
		t.Errorf("result = %+v", result)
	}
	if writer.calls != 1 {
		t.Errorf("calendar writes = %d, want 1", writer.calls)
	}

	stored := repo.schedules[s.ID]
	if stored.Status != domain.StatusRegistered {
		t.Errorf("status = %s, want REGISTERED", stored.Status)
	}
	if stored.CalendarID == nil || *stored.CalendarID != "work@example.com" {
		t.Error("calendarId was not recorded")
	}
	if len(repo.history) != 1 {
		t.Fatalf("history rows = %d, want 1", len(repo.history))
	}
	h := repo.history[0]
	if h.Action != domain.ActionRegistered || h.GoogleEventID == nil || *h.GoogleEventID != "gcal-event-1" {
		t.Errorf("history = %+v", h)
	}
}

func TestRegisterIsSingleShot(t *testing.T) {
	auth, repo, _, writer, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	s := pendingSchedule(repo, user.ID)

	if _, err := uc.Register(context.Background(), "U1", s.ID, "primary"); err != nil {
		t.Fatal(err)
	}

	// A duplicate tap must observe "already processed" and never write a
	// second event or history row.
	_, err := uc.Register(context.Background(), "U1", s.ID, "primary")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if writer.calls != 1 {
		t.Errorf("calendar writes = %d, want 1", writer.calls)
	}
	if len(repo.history) != 1 {
		t.Errorf("history rows = %d, want 1", len(repo.history))
	}
}

func TestRegisterThenSkipDoesNotDoubleTerminate(t *testing.T) {
	auth, repo, _, _, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	s := pendingSchedule(repo, user.ID)

	if _, err := uc.Register(context.Background(), "U1", s.ID, "primary"); err != nil {
		t.Fatal(err)
	}
	if _, err := uc.Skip(context.Background(), "U1", s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if repo.schedules[s.ID].Status != domain.StatusRegistered {
		t.Error("status moved out of REGISTERED")
	}
	if len(repo.history) != 1 {
		t.Errorf("history rows = %d, want 1", len(repo.history))
	}
}

func TestRegisterOwnershipIsolation(t *testing.T) {
	auth, repo, _, writer, uc := newTestUsecase()
	owner := authedUser(auth, "U-owner")
	authedUser(auth, "U-intruder")
	s := pendingSchedule(repo, owner.ID)

	// A foreign schedule id must be indistinguishable from a missing one.
	if _, err := uc.Register(context.Background(), "U-intruder", s.ID, "primary"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := uc.Skip(context.Background(), "U-intruder", s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := uc.CalendarChoices(context.Background(), "U-intruder", s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if writer.calls != 0 {
		t.Error("foreign register reached the calendar writer")
	}
	if repo.schedules[s.ID].Status != domain.StatusPending {
		t.Error("foreign action mutated the schedule")
	}
}

func TestRegisterShortCircuitsOnAuthErrors(t *testing.T) {
	auth, repo, _, writer, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	s := pendingSchedule(repo, user.ID)

	for _, authErr := range []error{authusecase.ErrAuthRequired, authusecase.ErrReauthRequired} {
		auth.ensureErr = authErr
		_, err := uc.Register(context.Background(), "U1", s.ID, "primary")
		if !errors.Is(err, authErr) {
			t.Errorf("expected %v, got %v", authErr, err)
		}
	}
	if writer.calls != 0 {
		t.Error("auth short circuit still wrote to the calendar")
	}
}

func TestRegisterDoesNotTransitionOnWriteFailure(t *testing.T) {
	auth, repo, _, writer, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	s := pendingSchedule(repo, user.ID)
	writer.err = errors.New("calendar 503")

	if _, err := uc.Register(context.Background(), "U1", s.ID, "primary"); err == nil {
		t.Fatal("expected error")
	}
	if repo.schedules[s.ID].Status != domain.StatusPending {
		t.Error("schedule left PENDING state despite failed write")
	}
	if len(repo.history) != 0 {
		t.Error("history written despite failed write")
	}
}

func TestSkipWorksWithoutCredential(t *testing.T) {
	auth, repo, _, _, uc := newTestUsecase()
	// User exists but the credential was revoked and cleared.
	user := &authdomain.User{ID: "user-U1", LineUserID: "U1"}
	auth.users["U1"] = user
	s := pendingSchedule(repo, user.ID)

	result, err := uc.Skip(context.Background(), "U1", s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if result.Title != "打ち合わせ" {
		t.Errorf("result = %+v", result)
	}
	if repo.schedules[s.ID].Status != domain.StatusSkipped {
		t.Error("schedule was not skipped")
	}
	if len(repo.history) != 1 || repo.history[0].Action != domain.ActionSkipped {
		t.Errorf("history = %+v", repo.history)
	}
}

func TestCalendarChoicesFallsBackToPrimary(t *testing.T) {
	auth, repo, _, _, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	s := pendingSchedule(repo, user.ID)

	choices, err := uc.CalendarChoices(context.Background(), "U1", s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(choices) != 1 || choices[0].ID != "primary" {
		t.Errorf("choices = %+v", choices)
	}
}

func TestCalendarChoicesFiltersSharedCalendars(t *testing.T) {
	auth, repo, _, _, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	auth.calendars[user.ID] = []googlecal.CalendarInfo{
		{ID: "primary", Summary: "Main", Primary: true},
		{ID: "team-abc@group.calendar.google.com", Summary: "チーム"},
	}
	s := pendingSchedule(repo, user.ID)

	choices, err := uc.CalendarChoices(context.Background(), "U1", s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(choices) != 1 || choices[0].ID != "primary" {
		t.Errorf("shared calendar not filtered: %+v", choices)
	}
}

func TestCalendarChoicesKeepsOnlySharedCalendar(t *testing.T) {
	auth, repo, _, _, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	auth.calendars[user.ID] = []googlecal.CalendarInfo{
		{ID: "team-abc@group.calendar.google.com", Summary: "チーム"},
	}
	s := pendingSchedule(repo, user.ID)

	choices, err := uc.CalendarChoices(context.Background(), "U1", s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(choices) != 1 || choices[0].ID != "team-abc@group.calendar.google.com" {
		t.Errorf("the only calendar must survive filtering: %+v", choices)
	}
}

func TestCalendarChoicesGate(t *testing.T) {
	auth, repo, _, _, uc := newTestUsecase()
	user := authedUser(auth, "U1")
	s := pendingSchedule(repo, user.ID)
	repo.schedules[s.ID].Status = domain.StatusRegistered

	if _, err := uc.CalendarChoices(context.Background(), "U1", s.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for processed schedule, got %v", err)
	}
	if _, err := uc.CalendarChoices(context.Background(), "U1", "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}

	// No stored user at all prompts for initial auth.
	if _, err := uc.CalendarChoices(context.Background(), "U-nobody", s.ID); !errors.Is(err, authusecase.ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}
