package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const textbeltDefaultURL = "https://textbelt.com"

// Textbelt is the primary SMS channel, a plain key-authenticated REST API.
type Textbelt struct {
	key     string
	baseURL string
	client  *http.Client
}

// NewTextbelt builds the channel; baseURL is overridable for tests and
// defaults to the public endpoint when empty.
func NewTextbelt(key, baseURL string) *Textbelt {
	if baseURL == "" {
		baseURL = textbeltDefaultURL
	}
	return &Textbelt{
		key:     key,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Textbelt) Name() string { return "textbelt" }

func (t *Textbelt) Send(ctx context.Context, number, text string) error {
	if t.key == "" {
		return errors.New("textbelt: api key not configured")
	}

	form := url.Values{}
	form.Set("phone", number)
	form.Set("message", text)
	form.Set("key", t.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/text", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("textbelt: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("textbelt: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("textbelt: decode response: %w", err)
	}
	if !body.Success {
		return fmt.Errorf("textbelt: send rejected: %s", body.Error)
	}
	return nil
}
