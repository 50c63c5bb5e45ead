package gemini

import "testing"

func TestParseExtraction(t *testing.T) {
	text := "```json\n{\"schedules\":[{\"title\":\"会議\",\"location\":\"会議室A\",\"startDateTime\":\"2026-02-04T15:00:00+09:00\",\"endDateTime\":\"2026-02-04T16:00:00+09:00\"}]}\n```"

	schedules, err := ParseExtraction(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(schedules))
	}
	if schedules[0].Title != "会議" {
		t.Errorf("title: got %q", schedules[0].Title)
	}
	if schedules[0].Location != "会議室A" {
		t.Errorf("location: got %q", schedules[0].Location)
	}
}

func TestParseExtractionEmptySchedules(t *testing.T) {
	schedules, err := ParseExtraction(`{"schedules":[]}`)
	if err != nil {
		t.Fatal(err)
	}
	if len(schedules) != 0 {
		t.Errorf("expected no schedules, got %d", len(schedules))
	}
}

func TestParseExtractionNoJSON(t *testing.T) {
	schedules, err := ParseExtraction("スケジュール情報は見つかりませんでした。")
	if err != nil {
		t.Fatal(err)
	}
	if schedules != nil {
		t.Errorf("expected nil, got %v", schedules)
	}
}

func TestParseExtractionMalformedJSON(t *testing.T) {
	if _, err := ParseExtraction(`{"schedules": [`); err == nil {
		t.Error("expected error for truncated JSON")
	}
}
