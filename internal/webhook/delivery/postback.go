package delivery

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrUnknownAction marks an action name this bot does not handle. The
// dispatcher logs and ignores these instead of failing the event.
var ErrUnknownAction = errors.New("unknown postback action")

// PostbackAction is the parsed, tagged form of a button payload. One
// variant per action kind; malformed payloads are rejected by the parser
// instead of leaking into handlers as loose key-value maps.
type PostbackAction interface {
	isPostbackAction()
}

// ShowCalendarsAction asks for the list of registration targets.
type ShowCalendarsAction struct {
	ScheduleID string
}

// RegisterAction commits a schedule to the chosen calendar.
type RegisterAction struct {
	ScheduleID string
	CalendarID string
}

// SkipAction discards a schedule.
type SkipAction struct {
	ScheduleID string
}

func (ShowCalendarsAction) isPostbackAction() {}
func (RegisterAction) isPostbackAction()      {}
func (SkipAction) isPostbackAction()          {}

// ParsePostbackData parses the flat key=value&key=value payload carried
// by a button tap. Values are percent-decoded by url.ParseQuery.
func ParsePostbackData(data string) (PostbackAction, error) {
	values, err := url.ParseQuery(data)
	if err != nil {
		return nil, fmt.Errorf("malformed postback data: %v", err)
	}

	scheduleID := values.Get("scheduleId")
	if scheduleID == "" {
		return nil, errors.New("postback data is missing scheduleId")
	}

	switch action := values.Get("action"); action {
	case "show_calendars":
		return ShowCalendarsAction{ScheduleID: scheduleID}, nil
	case "register":
		calendarID := values.Get("calendarId")
		if calendarID == "" {
			return nil, errors.New("register postback is missing calendarId")
		}
		return RegisterAction{ScheduleID: scheduleID, CalendarID: calendarID}, nil
	case "skip":
		return SkipAction{ScheduleID: scheduleID}, nil
	case "":
		return nil, errors.New("postback data is missing action")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
}
