package encourage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client generates short encouragement messages shown to a child when a
// quest is approved. When no API key is configured, or the API call fails,
// it falls back to a deterministic canned message so approval never blocks
// on an external service.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithBaseURL(url string) Option {
	return func(cl *Client) {
		cl.baseURL = url
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    "https://api.anthropic.com/v1/messages",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

var fallbackMessages = []string{
	"Great work, %s! %s is done and dusted.",
	"Nice one, %s! %s: complete.",
	"%s, you crushed %s. Keep it going!",
	"Another one down, %s. %s won't know what hit it.",
	"High five, %s! %s is finished.",
}

// Fallback returns the canned message for a user and quest. The choice is
// derived from the inputs so the same approval always produces the same
// message.
func Fallback(userName, questTitle string) string {
	idx := 0
	for _, r := range userName + questTitle {
		idx = (idx + int(r)) % len(fallbackMessages)
	}
	return fmt.Sprintf(fallbackMessages[idx], userName, questTitle)
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Message returns a short encouragement for an approved quest. Any failure
// falls back silently; the returned string is always usable.
func (c *Client) Message(userName, questTitle string, streakDays int) string {
	if !c.Configured() {
		return Fallback(userName, questTitle)
	}

	msg, err := c.fetch(userName, questTitle, streakDays)
	if err != nil || msg == "" {
		return Fallback(userName, questTitle)
	}
	return msg
}

func (c *Client) fetch(userName, questTitle string, streakDays int) (string, error) {
	prompt := fmt.Sprintf(
		"Write one short, upbeat sentence congratulating %s for completing the chore %q.", userName, questTitle)
	if streakDays > 1 {
		prompt += fmt.Sprintf(" They are on a %d-day streak.", streakDays)
	}

	payload := apiRequest{
		Model:     "claude-3-5-haiku-latest",
		MaxTokens: 100,
		Messages:  []apiMessage{{Role: "user", Content: prompt}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("encouragement API returned status %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return apiResp.Content[0].Text, nil
}
