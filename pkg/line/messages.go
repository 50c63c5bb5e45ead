package line

import (
	"fmt"
	"net/url"
	"time"
)

// ScheduleForDisplay carries the fields of a pending schedule needed to
// render its confirmation card.
type ScheduleForDisplay struct {
	ID          string
	Title       string
	Description string
	Location    string
	StartAt     time.Time
	EndAt       *time.Time
}

// CalendarChoice is one selectable registration target.
type CalendarChoice struct {
	ID   string
	Name string
}

type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type TemplateMessage struct {
	Type     string      `json:"type"`
	AltText  string      `json:"altText"`
	Template interface{} `json:"template"`
}

type CarouselTemplate struct {
	Type    string           `json:"type"`
	Columns []CarouselColumn `json:"columns"`
}

type CarouselColumn struct {
	Title   string           `json:"title,omitempty"`
	Text    string           `json:"text"`
	Actions []PostbackButton `json:"actions"`
}

type ButtonsTemplate struct {
	Type    string           `json:"type"`
	Title   string           `json:"title,omitempty"`
	Text    string           `json:"text"`
	Actions []PostbackButton `json:"actions"`
}

type PostbackButton struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Data  string `json:"data"`
}

func NewTextMessage(text string) TextMessage {
	return TextMessage{Type: "text", Text: text}
}

func NewAuthMessage(baseURL, lineUserID string) TextMessage {
	authURL := fmt.Sprintf("%s/auth/google?userId=%s", baseURL, url.QueryEscape(lineUserID))
	return NewTextMessage("このBotを使うには、Googleカレンダーとの連携が必要です。\n\n【認証手順】\n1. 下のURLを長押し\n2. 「Safariで開く」または「Chromeで開く」を選択\n3. Google認証を完了してください\n\n" + authURL + "\n\n※LINE内蔵ブラウザでは認証できません。必ず外部ブラウザで開いてください。")
}

func NewReauthMessage(baseURL, lineUserID string) TextMessage {
	authURL := fmt.Sprintf("%s/auth/google?userId=%s", baseURL, url.QueryEscape(lineUserID))
	return NewTextMessage("Googleカレンダーとの連携が無効になりました。お手数ですが、再度認証をお願いします。\n\n" + authURL)
}

func NewScheduleNotFoundMessage() TextMessage {
	return NewTextMessage("スケジュール情報が見つかりませんでした。")
}

func NewAlreadyProcessedMessage() TextMessage {
	return NewTextMessage("このスケジュールは既に処理済みか、見つかりませんでした。")
}

func NewErrorMessage() TextMessage {
	return NewTextMessage("エラーが発生しました。しばらく待ってから再度お試しください。")
}

func NewRegistrationSuccessMessage(title, calendarName string) TextMessage {
	return NewTextMessage(fmt.Sprintf("「%s」を%sに登録しました。", title, calendarName))
}

func NewSkipMessage(title string) TextMessage {
	return NewTextMessage(fmt.Sprintf("「%s」をスキップしました。", title))
}

// NewScheduleCarousel renders one card per extracted candidate with
// register/skip buttons. LINE caps carousels at 10 columns.
func NewScheduleCarousel(schedules []ScheduleForDisplay) TemplateMessage {
	jst := time.FixedZone("JST", 9*60*60)

	columns := make([]CarouselColumn, 0, len(schedules))
	for _, s := range schedules {
		if len(columns) == 10 {
			break
		}

		text := s.StartAt.In(jst).Format("2006/01/02 15:04")
		if s.EndAt != nil {
			text += " - " + s.EndAt.In(jst).Format("15:04")
		}
		if s.Location != "" {
			text += "\n📍 " + s.Location
		}

		columns = append(columns, CarouselColumn{
			Title: truncate(s.Title, 40),
			Text:  truncate(text, 120),
			Actions: []PostbackButton{
				{
					Type:  "postback",
					Label: "カレンダーに追加",
					Data:  postbackData("show_calendars", s.ID, ""),
				},
				{
					Type:  "postback",
					Label: "スキップ",
					Data:  postbackData("skip", s.ID, ""),
				},
			},
		})
	}

	return TemplateMessage{
		Type:    "template",
		AltText: "スケジュール候補が見つかりました",
		Template: CarouselTemplate{
			Type:    "carousel",
			Columns: columns,
		},
	}
}

// NewCalendarSelectionMessage renders the registration targets. Buttons
// templates allow at most 4 actions, so longer calendar lists spill over
// into carousel columns of 3.
func NewCalendarSelectionMessage(calendars []CalendarChoice, scheduleID string) TemplateMessage {
	if len(calendars) <= 4 {
		actions := make([]PostbackButton, 0, len(calendars))
		for _, cal := range calendars {
			actions = append(actions, PostbackButton{
				Type:  "postback",
				Label: truncate(cal.Name, 20),
				Data:  postbackData("register", scheduleID, cal.ID),
			})
		}
		return TemplateMessage{
			Type:    "template",
			AltText: "登録先カレンダーを選択してください",
			Template: ButtonsTemplate{
				Type:    "buttons",
				Text:    "登録先カレンダーを選択してください",
				Actions: actions,
			},
		}
	}

	var columns []CarouselColumn
	for start := 0; start < len(calendars) && len(columns) < 10; start += 3 {
		end := start + 3
		if end > len(calendars) {
			end = len(calendars)
		}
		actions := make([]PostbackButton, 0, 3)
		for _, cal := range calendars[start:end] {
			actions = append(actions, PostbackButton{
				Type:  "postback",
				Label: truncate(cal.Name, 20),
				Data:  postbackData("register", scheduleID, cal.ID),
			})
		}
		columns = append(columns, CarouselColumn{
			Text:    "登録先カレンダーを選択してください",
			Actions: actions,
		})
	}

	return TemplateMessage{
		Type:    "template",
		AltText: "登録先カレンダーを選択してください",
		Template: CarouselTemplate{
			Type:    "carousel",
			Columns: columns,
		},
	}
}

func postbackData(action, scheduleID, calendarID string) string {
	values := url.Values{}
	values.Set("action", action)
	values.Set("scheduleId", scheduleID)
	if calendarID != "" {
		values.Set("calendarId", calendarID)
	}
	return values.Encode()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
