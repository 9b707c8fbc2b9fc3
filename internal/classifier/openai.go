package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAIChat is a Completer over any OpenAI-compatible chat completion
// endpoint (Groq by default).
type OpenAIChat struct {
	http  *resty.Client
	url   string
	model string
}

func NewOpenAIChat(url, apiKey, model string, timeout time.Duration) *OpenAIChat {
	return &OpenAIChat{
		http:  resty.New().SetTimeout(timeout).SetAuthToken(apiKey),
		url:   url,
		model: model,
	}
}

func (c *OpenAIChat) Complete(ctx context.Context, prompt string) (string, error) {
	var out chatResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       c.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			Temperature: 0.3,
			MaxTokens:   100,
		}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("chat completion: status %d", res.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	return out.Choices[0].Message.Content, nil
}
