package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	cebinding "github.com/cloudevents/sdk-go/v2/binding"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
)

// Notification reports a finished OCR job. CorrelationTag is the tag given
// at submission, i.e. the document id.
type Notification struct {
	JobID          string `json:"jobId"`
	Status         string `json:"status"`
	CorrelationTag string `json:"jobTag"`
}

// Succeeded reports whether the job produced text.
func (n Notification) Succeeded() bool {
	return strings.EqualFold(n.Status, StatusSucceeded)
}

// ErrEmptyNotification is returned when a payload carries no notifications.
var ErrEmptyNotification = errors.New("notification payload is empty")

// ParseNotifications decodes an inbound delivery. CloudEvents in binary or
// structured mode are unwrapped first; the payload is then a single
// notification, an array, or an object with a "notifications" array.
func ParseNotifications(ctx context.Context, headers http.Header, body []byte) ([]Notification, error) {
	payload := body
	if isCloudEvent(headers) {
		data, err := cloudEventData(ctx, headers, body)
		if err != nil {
			return nil, fmt.Errorf("decode cloud event: %w", err)
		}
		payload = data
	}
	return decodePayload(payload)
}

func isCloudEvent(headers http.Header) bool {
	if headers.Get("Ce-Specversion") != "" {
		return true
	}
	return strings.HasPrefix(strings.ToLower(headers.Get("Content-Type")), "application/cloudevents")
}

func cloudEventData(ctx context.Context, headers http.Header, body []byte) ([]byte, error) {
	req := &http.Request{
		Method: http.MethodPost,
		Header: headers.Clone(),
		Body:   io.NopCloser(bytes.NewReader(body)),
	}
	message := cehttp.NewMessageFromHttpRequest(req)
	defer func() {
		_ = message.Finish(nil)
	}()

	event, err := cebinding.ToEvent(ctx, message)
	if err != nil {
		return nil, err
	}
	raw := json.RawMessage{}
	if err := event.DataAs(&raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrEmptyNotification
	}
	return raw, nil
}

func decodePayload(payload []byte) ([]Notification, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, ErrEmptyNotification
	}

	var out []Notification
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode notification batch: %w", err)
		}
	case '{':
		var envelope struct {
			Notifications []Notification `json:"notifications"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		if envelope.Notifications != nil {
			out = envelope.Notifications
			break
		}
		var single Notification
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		out = []Notification{single}
	default:
		return nil, fmt.Errorf("decode notification: unexpected payload")
	}

	if len(out) == 0 {
		return nil, ErrEmptyNotification
	}
	return out, nil
}
