package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

// Schedule is one extracted schedule candidate. Timestamps are ISO 8601
// strings as returned by the model.
type Schedule struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Location      string `json:"location,omitempty"`
	StartDateTime string `json:"startDateTime"`
	EndDateTime   string `json:"endDateTime,omitempty"`
}

type ExtractionResult struct {
	Schedules []Schedule `json:"schedules"`
}

type GeminiService struct {
	ApiKey string
}

func NewGeminiService(apiKey string) *GeminiService {
	return &GeminiService{ApiKey: apiKey}
}

const extractionPrompt = `以下のメッセージからスケジュール情報を抽出してください。
複数のスケジュールがある場合はすべて抽出してください。

抽出するフォーマット（JSON）：
{
  "schedules": [
    {
      "title": "会議",
      "description": "営業チームとの打ち合わせ",
      "location": "会議室A",
      "startDateTime": "2026-02-04T15:00:00+09:00",
      "endDateTime": "2026-02-04T16:00:00+09:00"
    }
  ]
}

注意事項：
- 日時が曖昧な場合は推測して補完してください（「明日」→ 具体的な日付）
- 終了時刻がない場合は開始時刻の1時間後を設定
- 場所が含まれている場合は location フィールドに含めてください（例: 「渋谷で」→ "location": "渋谷"）
- 場所がない場合は location フィールドを省略してください
- スケジュール情報が全く含まれていない場合は、空の配列を返してください
- 現在時刻: %s
- タイムゾーン: Asia/Tokyo (+09:00)

%s

JSONのみを返してください。説明文は不要です。`

// ExtractSchedules asks Gemini for schedule candidates in a free-text
// message. Extraction is best effort: any model or transport failure
// degrades to an empty result.
func (g *GeminiService) ExtractSchedules(ctx context.Context, message string) ([]Schedule, error) {
	prompt := fmt.Sprintf(extractionPrompt, time.Now().Format(time.RFC3339), "メッセージ: "+message)

	parts := []map[string]interface{}{
		{"text": prompt},
	}
	return g.generate(ctx, parts)
}

// ExtractSchedulesFromImage runs the same extraction over a photographed
// message (a poster, a whiteboard, a screenshot of an invitation).
func (g *GeminiService) ExtractSchedulesFromImage(ctx context.Context, data []byte, mimeType string) ([]Schedule, error) {
	prompt := fmt.Sprintf(extractionPrompt, time.Now().Format(time.RFC3339), "画像からスケジュール情報を読み取ってください。")

	parts := []map[string]interface{}{
		{"text": prompt},
		{"inline_data": map[string]string{
			"mime_type": mimeType,
			"data":      base64.StdEncoding.EncodeToString(data),
		}},
	}
	return g.generate(ctx, parts)
}

func (g *GeminiService) generate(ctx context.Context, parts []map[string]interface{}) ([]Schedule, error) {
	if g.ApiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}

	// Use gemini-2.5-flash for fast extraction
	url := "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent?key=" + g.ApiKey

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": parts},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Gemini API error: %s", string(respBody))
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}

	text := candidateText(result)
	if text == "" {
		return nil, fmt.Errorf("no extraction returned")
	}

	return ParseExtraction(text)
}

// candidateText digs the generated text out of the generateContent response.
func candidateText(result map[string]interface{}) string {
	if c, ok := result["candidates"].([]interface{}); ok && len(c) > 0 {
		if cand, ok := c[0].(map[string]interface{}); ok {
			if content, ok := cand["content"].(map[string]interface{}); ok {
				if parts, ok := content["parts"].([]interface{}); ok && len(parts) > 0 {
					if part, ok := parts[0].(map[string]interface{}); ok {
						if text, ok := part["text"].(string); ok {
							return text
						}
					}
				}
			}
		}
	}
	return ""
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ParseExtraction pulls the schedules JSON out of a model response,
// tolerating markdown code fences and surrounding prose.
func ParseExtraction(text string) ([]Schedule, error) {
	match := jsonObjectPattern.FindString(text)
	if match == "" {
		return nil, nil
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(match), &result); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %v", err)
	}
	return result.Schedules, nil
}
