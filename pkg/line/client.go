package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const apiBase = "https://api.line.me/v2/bot"
const dataAPIBase = "https://api-data.line.me/v2/bot"

// Message is any LINE message payload (text or template).
type Message interface{}

// Client talks to the LINE Messaging API.
type Client struct {
	channelAccessToken string
	httpClient         *http.Client
}

func NewClient(channelAccessToken string) *Client {
	return &Client{
		channelAccessToken: channelAccessToken,
		httpClient:         &http.Client{},
	}
}

// Reply answers one inbound event using its reply token. A reply token is
// single-use and expires quickly, so failures here are expected and the
// caller should only log them.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...Message) error {
	payload := map[string]interface{}{
		"replyToken": replyToken,
		"messages":   messages,
	}
	return c.post(ctx, apiBase+"/message/reply", payload)
}

// Push sends messages outside of a reply context (used after the OAuth
// callback, where no reply token exists).
func (c *Client) Push(ctx context.Context, to string, messages ...Message) error {
	payload := map[string]interface{}{
		"to":       to,
		"messages": messages,
	}
	return c.post(ctx, apiBase+"/message/push", payload)
}

// GetMessageContent downloads the binary content of an image message.
func (c *Client) GetMessageContent(ctx context.Context, messageID string) ([]byte, string, error) {
	url := fmt.Sprintf("%s/message/%s/content", dataAPIBase, messageID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.channelAccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("LINE content API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

func (c *Client) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.channelAccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("LINE API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
