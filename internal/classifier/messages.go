// Package classifier holds the outbound clients that turn free text into labels.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnavailable wraps every failure to obtain a usable answer from a
// remote classifier or model: transport, non-2xx, or a malformed body.
var ErrUnavailable = errors.New("classifier unavailable")

type batchRequest struct {
	Messages []string `json:"messages"`
}

type batchResponse struct {
	Predictions []string `json:"predictions"`
}

// MessageClient calls the batch text classifier: POST {messages} -> {predictions}.
type MessageClient struct {
	http *resty.Client
	url  string
}

func NewMessageClient(url string, timeout time.Duration) *MessageClient {
	return &MessageClient{
		http: resty.New().SetTimeout(timeout).SetHeader("Content-Type", "application/json"),
		url:  url,
	}
}

// Classify returns one raw prediction per input text, positionally aligned.
// A response of any other length is rejected whole.
func (c *MessageClient) Classify(ctx context.Context, texts []string) ([]string, error) {
	var out batchResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(batchRequest{Messages: texts}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, res.StatusCode())
	}
	if len(out.Predictions) != len(texts) {
		return nil, fmt.Errorf("%w: got %d predictions for %d messages", ErrUnavailable, len(out.Predictions), len(texts))
	}
	return out.Predictions, nil
}
