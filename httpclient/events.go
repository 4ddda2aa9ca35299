package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/finflow/authcore/internal/netlog"
)

func (c *Client) emitRequest(ctx context.Context, req *http.Request, requestID string, payload []byte) {
	if !c.events.Enabled() {
		return
	}
	body, truncated := netlog.TruncateBody(payload, c.maxLoggedBody)
	c.events.Emit(ctx, netlog.Event{
		Timestamp:     time.Now().UTC(),
		Direction:     netlog.DirectionRequest,
		RequestID:     requestID,
		Method:        req.Method,
		URL:           req.URL.String(),
		Headers:       netlog.RedactHeaders(req.Header),
		Body:          body,
		BodyTruncated: truncated,
	})
}

func (c *Client) emitResponse(ctx context.Context, req *http.Request, res *http.Response, requestID string, data []byte, elapsed time.Duration) {
	if !c.events.Enabled() {
		return
	}
	body, truncated := netlog.TruncateBody(data, c.maxLoggedBody)
	c.events.Emit(ctx, netlog.Event{
		Timestamp:     time.Now().UTC(),
		Direction:     netlog.DirectionResponse,
		RequestID:     requestID,
		Method:        req.Method,
		URL:           req.URL.String(),
		Status:        res.StatusCode,
		Headers:       netlog.RedactHeaders(res.Header),
		Body:          body,
		BodyTruncated: truncated,
		Duration:      elapsed,
	})
}

func (c *Client) emitFailure(ctx context.Context, req *http.Request, requestID string, elapsed time.Duration, err error) {
	if !c.events.Enabled() {
		return
	}
	c.events.Emit(ctx, netlog.Event{
		Timestamp: time.Now().UTC(),
		Direction: netlog.DirectionResponse,
		RequestID: requestID,
		Method:    req.Method,
		URL:       req.URL.String(),
		Duration:  elapsed,
		Error:     err.Error(),
	})
}
