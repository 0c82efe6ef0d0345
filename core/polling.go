package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	OperationStatusCompleted = "Completed"
	OperationStatusFailed    = "Failed"
)

type PollOptions struct {
	MaxAttempts int
	Interval    time.Duration
}

func (o PollOptions) withDefaults(cfg Config) PollOptions {
	fallback := cfg.PollOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = fallback.MaxAttempts
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultPollMaxAttempts
	}
	if o.Interval <= 0 {
		o.Interval = fallback.Interval
	}
	return o
}

// PollOperation polls statusURL until the operation reports Completed, reports
// Failed, or MaxAttempts is exhausted. A 204 response counts as completion.
func (c *Client) PollOperation(ctx context.Context, statusURL string, opts PollOptions) (result any, err error) {
	startedAt := time.Now().UTC()
	attempts := 0
	defer func() {
		c.observeOperation(ctx, startedAt, "poll_operation", err, map[string]any{
			"status_url": statusURL,
			"attempts":   attempts,
		})
	}()

	if c == nil {
		return nil, newBadInputError("core: client is not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(statusURL) == "" {
		return nil, newBadInputError("core: status url is required", nil)
	}
	opts = opts.withDefaults(c.config)

	for attempts < opts.MaxAttempts {
		attempts++
		res, reqErr := c.Do(ctx, EntityRequest{Method: http.MethodGet, URI: statusURL})
		if reqErr != nil {
			return nil, reqErr
		}
		if res.StatusCode == http.StatusNoContent {
			return res.Body, nil
		}

		record, _ := res.Body.(map[string]any)
		switch operationStatus(record) {
		case OperationStatusCompleted:
			return res.Body, nil
		case OperationStatusFailed:
			return nil, NewPollFailedError(stringValue(record["message"]), statusURL)
		}

		if attempts == opts.MaxAttempts {
			break
		}
		if sleepErr := c.sleep(ctx, opts.Interval); sleepErr != nil {
			return nil, wrapInternalError(sleepErr, "core: polling interrupted")
		}
	}
	return nil, NewPollTimeoutError(attempts, opts.Interval, statusURL)
}

func operationStatus(record map[string]any) string {
	if record == nil {
		return ""
	}
	return stringValue(record["status"])
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case map[string]any:
		return stringValue(typed["value"])
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}
