package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
)

// Emotion labels produced by the sentiment model, in class-index order.
var Labels = []string{
	"anxiety",
	"embarrassment",
	"anger",
	"sadness",
	"neutral",
	"happiness",
	"disgust",
}

// NeutralLabel is returned for text with nothing to classify.
const NeutralLabel = "neutral"

// maxInputRunes bounds the text sent to the model; the newest part is kept.
const maxInputRunes = 2000

var ErrUnknownLabel = errors.New("classifier returned no usable label")

// Classifier maps text to a mood label.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Fixed always answers with the same label. It stands in for the model in
// development and tests.
type Fixed struct {
	Label string
}

// NewFixed returns a Fixed classifier; an empty label means neutral.
func NewFixed(label string) *Fixed {
	if label == "" {
		label = NeutralLabel
	}
	return &Fixed{Label: label}
}

// Classify returns the configured label.
func (f *Fixed) Classify(_ context.Context, _ string) (string, error) {
	return f.Label, nil
}

// Remote calls an HTTP inference endpoint that accepts {"text": ...} and
// answers with {"label": ...} or {"index": n}.
type Remote struct {
	url     string
	timeout time.Duration
}

// NewRemote creates a Remote classifier for url.
func NewRemote(url string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Remote{url: url, timeout: timeout}
}

type remoteRequest struct {
	Text string `json:"text"`
}

type remoteResponse struct {
	Label string `json:"label"`
	Index *int   `json:"index"`
}

// Classify posts text to the inference endpoint.
func (r *Remote) Classify(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return NeutralLabel, nil
	}
	text = truncate(text, maxInputRunes)

	// The Fiber agent only honours a timeout, so cancellation is checked
	// before the request is sent.
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return "", fmt.Errorf("classify: %w", context.DeadlineExceeded)
	}

	code, body, errs := fiber.Post(r.url).
		JSON(remoteRequest{Text: text}).
		Timeout(timeout).
		Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("classify: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return "", fmt.Errorf("classify: unexpected status %d: %s", code, truncate(string(body), 200))
	}

	var resp remoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("classify: decode response: %w", err)
	}
	return resolveLabel(resp)
}

func resolveLabel(resp remoteResponse) (string, error) {
	if resp.Label != "" {
		return resp.Label, nil
	}
	if resp.Index != nil && *resp.Index >= 0 && *resp.Index < len(Labels) {
		return Labels[*resp.Index], nil
	}
	return "", ErrUnknownLabel
}

// truncate keeps the last n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[len(runes)-n:])
}
