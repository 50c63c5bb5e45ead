package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	authusecase "linecal-backend/internal/auth/usecase"
	scheduledomain "linecal-backend/internal/schedule/domain"
	scheduleusecase "linecal-backend/internal/schedule/usecase"
	"linecal-backend/pkg/line"

	"github.com/gin-gonic/gin"
)

// LineClient is the outbound messaging surface the dispatcher needs.
type LineClient interface {
	Reply(ctx context.Context, replyToken string, messages ...line.Message) error
	GetMessageContent(ctx context.Context, messageID string) ([]byte, string, error)
}

// webhookRequest is the LINE webhook envelope.
type webhookRequest struct {
	Events []webhookEvent `json:"events"`
}

type webhookEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message *struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message,omitempty"`
	Postback *struct {
		Data string `json:"data"`
	} `json:"postback,omitempty"`
}

type WebhookHandler struct {
	authUsecase     authusecase.AuthUsecase
	scheduleUsecase scheduleusecase.ScheduleUsecase
	lineClient      LineClient
	baseURL         string
}

func NewWebhookHandler(authUsecase authusecase.AuthUsecase, scheduleUsecase scheduleusecase.ScheduleUsecase, lineClient LineClient, baseURL string) *WebhookHandler {
	return &WebhookHandler{
		authUsecase:     authUsecase,
		scheduleUsecase: scheduleUsecase,
		lineClient:      lineClient,
		baseURL:         baseURL,
	}
}

// HandleWebhook fans one delivery out into independent per-event
// handlers. The batch is acknowledged with 200 once every handler has
// finished; individual failures are logged, never propagated.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	raw, ok := c.Get(line.RawBodyKey)
	if !ok {
		c.String(http.StatusInternalServerError, "missing raw body")
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(raw.([]byte), &req); err != nil {
		c.String(http.StatusBadRequest, "invalid webhook payload")
		return
	}

	ctx := c.Request.Context()
	var wg sync.WaitGroup
	for _, event := range req.Events {
		wg.Add(1)
		go func(event webhookEvent) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[ERROR] panic handling %s event: %v", event.Type, r)
				}
			}()
			if err := h.handleEvent(ctx, event); err != nil {
				log.Printf("[ERROR] failed to handle %s event: %v", event.Type, err)
			}
		}(event)
	}
	wg.Wait()

	c.String(http.StatusOK, "OK")
}

func (h *WebhookHandler) handleEvent(ctx context.Context, event webhookEvent) error {
	switch {
	case event.Type == "message" && event.Message != nil && event.Message.Type == "text":
		return h.handleTextMessage(ctx, event)
	case event.Type == "message" && event.Message != nil && event.Message.Type == "image":
		return h.handleImageMessage(ctx, event)
	case event.Type == "postback" && event.Postback != nil:
		return h.handlePostback(ctx, event)
	default:
		// Follows, joins, stickers and such are not errors.
		return nil
	}
}

// reply is best effort: reply tokens are single-use and short-lived.
func (h *WebhookHandler) reply(ctx context.Context, replyToken string, messages ...line.Message) {
	if err := h.lineClient.Reply(ctx, replyToken, messages...); err != nil {
		log.Printf("[ERROR] failed to send reply: %v", err)
	}
}

// replyAuthPrompt maps credential lifecycle errors to the matching user
// prompt. Returns false when err is not an auth error.
func (h *WebhookHandler) replyAuthPrompt(ctx context.Context, replyToken, lineUserID string, err error) bool {
	switch {
	case errors.Is(err, authusecase.ErrAuthRequired):
		h.reply(ctx, replyToken, line.NewAuthMessage(h.baseURL, lineUserID))
		return true
	case errors.Is(err, authusecase.ErrReauthRequired):
		h.reply(ctx, replyToken, line.NewReauthMessage(h.baseURL, lineUserID))
		return true
	}
	return false
}

func (h *WebhookHandler) handleTextMessage(ctx context.Context, event webhookEvent) error {
	lineUserID := event.Source.UserID
	if lineUserID == "" {
		return nil
	}

	user, _, err := h.authUsecase.EnsureCredential(ctx, lineUserID)
	if err != nil {
		if h.replyAuthPrompt(ctx, event.ReplyToken, lineUserID, err) {
			return nil
		}
		h.reply(ctx, event.ReplyToken, line.NewErrorMessage())
		return err
	}

	schedules, err := h.scheduleUsecase.IntakeText(ctx, user, event.Message.ID, event.Message.Text)
	if err != nil {
		if errors.Is(err, scheduleusecase.ErrNoSchedules) {
			h.reply(ctx, event.ReplyToken, line.NewScheduleNotFoundMessage())
			return nil
		}
		h.reply(ctx, event.ReplyToken, line.NewErrorMessage())
		return err
	}

	h.reply(ctx, event.ReplyToken, line.NewScheduleCarousel(toDisplay(schedules)))
	return nil
}

func (h *WebhookHandler) handleImageMessage(ctx context.Context, event webhookEvent) error {
	lineUserID := event.Source.UserID
	if lineUserID == "" {
		return nil
	}

	user, _, err := h.authUsecase.EnsureCredential(ctx, lineUserID)
	if err != nil {
		if h.replyAuthPrompt(ctx, event.ReplyToken, lineUserID, err) {
			return nil
		}
		h.reply(ctx, event.ReplyToken, line.NewErrorMessage())
		return err
	}

	data, mimeType, err := h.lineClient.GetMessageContent(ctx, event.Message.ID)
	if err != nil {
		h.reply(ctx, event.ReplyToken, line.NewErrorMessage())
		return err
	}

	schedules, err := h.scheduleUsecase.IntakeImage(ctx, user, event.Message.ID, data, mimeType)
	if err != nil {
		if errors.Is(err, scheduleusecase.ErrNoSchedules) {
			h.reply(ctx, event.ReplyToken, line.NewScheduleNotFoundMessage())
			return nil
		}
		h.reply(ctx, event.ReplyToken, line.NewErrorMessage())
		return err
	}

	h.reply(ctx, event.ReplyToken, line.NewScheduleCarousel(toDisplay(schedules)))
	return nil
}

func (h *WebhookHandler) handlePostback(ctx context.Context, event webhookEvent) error {
	lineUserID := event.Source.UserID
	if lineUserID == "" {
		return nil
	}

	action, err := ParsePostbackData(event.Postback.Data)
	if err != nil {
		if errors.Is(err, ErrUnknownAction) {
			log.Printf("[WARN] %v", err)
			return nil
		}
		h.reply(ctx, event.ReplyToken, line.NewErrorMessage())
		return err
	}

	switch action := action.(type) {
	case ShowCalendarsAction:
		return h.handleShowCalendars(ctx, event.ReplyToken, lineUserID, action)
	case RegisterAction:
		return h.handleRegister(ctx, event.ReplyToken, lineUserID, action)
	case SkipAction:
		return h.handleSkip(ctx, event.ReplyToken, lineUserID, action)
	}
	return nil
}

func (h *WebhookHandler) handleShowCalendars(ctx context.Context, replyToken, lineUserID string, action ShowCalendarsAction) error {
	choices, err := h.scheduleUsecase.CalendarChoices(ctx, lineUserID, action.ScheduleID)
	if err != nil {
		if h.replyAuthPrompt(ctx, replyToken, lineUserID, err) {
			return nil
		}
		if errors.Is(err, scheduleusecase.ErrNotFound) {
			h.reply(ctx, replyToken, line.NewAlreadyProcessedMessage())
			return nil
		}
		h.reply(ctx, replyToken, line.NewErrorMessage())
		return err
	}

	lineChoices := make([]line.CalendarChoice, 0, len(choices))
	for _, choice := range choices {
		lineChoices = append(lineChoices, line.CalendarChoice{ID: choice.ID, Name: choice.Name})
	}
	h.reply(ctx, replyToken, line.NewCalendarSelectionMessage(lineChoices, action.ScheduleID))
	return nil
}

func (h *WebhookHandler) handleRegister(ctx context.Context, replyToken, lineUserID string, action RegisterAction) error {
	result, err := h.scheduleUsecase.Register(ctx, lineUserID, action.ScheduleID, action.CalendarID)
	if err != nil {
		if h.replyAuthPrompt(ctx, replyToken, lineUserID, err) {
			return nil
		}
		if errors.Is(err, scheduleusecase.ErrNotFound) {
			h.reply(ctx, replyToken, line.NewAlreadyProcessedMessage())
			return nil
		}
		h.reply(ctx, replyToken, line.NewErrorMessage())
		return err
	}

	h.reply(ctx, replyToken, line.NewRegistrationSuccessMessage(result.Title, result.CalendarName))
	return nil
}

func (h *WebhookHandler) handleSkip(ctx context.Context, replyToken, lineUserID string, action SkipAction) error {
	result, err := h.scheduleUsecase.Skip(ctx, lineUserID, action.ScheduleID)
	if err != nil {
		if h.replyAuthPrompt(ctx, replyToken, lineUserID, err) {
			return nil
		}
		if errors.Is(err, scheduleusecase.ErrNotFound) {
			h.reply(ctx, replyToken, line.NewAlreadyProcessedMessage())
			return nil
		}
		h.reply(ctx, replyToken, line.NewErrorMessage())
		return err
	}

	h.reply(ctx, replyToken, line.NewSkipMessage(result.Title))
	return nil
}

func toDisplay(schedules []scheduledomain.PendingSchedule) []line.ScheduleForDisplay {
	display := make([]line.ScheduleForDisplay, 0, len(schedules))
	for _, s := range schedules {
		display = append(display, line.ScheduleForDisplay{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Description,
			Location:    s.Location,
			StartAt:     s.StartAt,
			EndAt:       s.EndAt,
		})
	}
	return display
}
