package luxeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/luxesuite/luxeapi/jwt"
	"github.com/luxesuite/luxeapi/middleware"
)

// callState is the position of one logical call in the retry cycle.
type callState uint8

const (
	stateInitial callState = iota
	stateAwaitingRefresh
	stateRetrying
	stateDone
	stateFailed
)

func (s callState) String() string {
	switch s {
	case stateInitial:
		return "INITIAL"
	case stateAwaitingRefresh:
		return "AWAITING_REFRESH"
	case stateRetrying:
		return "RETRYING"
	case stateDone:
		return "DONE"
	case stateFailed:
		return "FAILED"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
	}
}

// RETRYING has no edge back to AWAITING_REFRESH: a call is re-issued at most once.
var callTransitions = map[callState][]callState{
	stateInitial:         {stateAwaitingRefresh, stateDone, stateFailed},
	stateAwaitingRefresh: {stateRetrying, stateFailed},
	stateRetrying:        {stateDone, stateFailed},
}

type call struct {
	req       *preparedRequest
	requestID string
	state     callState
}

func (c *call) to(next callState) error {
	for _, allowed := range callTransitions[c.state] {
		if allowed == next {
			c.state = next
			return nil
		}
	}
	return fmt.Errorf("luxeapi: illegal call transition %s -> %s", c.state, next)
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// Do executes req and decodes a 2xx JSON body into out (nil out discards it).
//
// A 401 on an authenticated request triggers one shared token refresh and a
// single replay with the refreshed token. When the refresh fails, or the
// replay is rejected again, the token store is cleared and the returned error
// matches ErrSessionTerminated together with the underlying cause. Other
// non-2xx responses are returned as *APIError and are never retried.
// Transport errors are returned unchanged.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	prepared, err := c.prepare(req)
	if err != nil {
		return err
	}

	requestID, ok := middleware.RequestIDFromContext(ctx)
	if !ok {
		requestID = middleware.NewRequestID()
		ctx = middleware.WithRequestID(ctx, requestID)
	}

	c.metrics.Inc(MetricRequestTotal)
	start := time.Now()
	defer func() {
		c.metrics.Observe(MetricRequestLatency, time.Since(start))
	}()

	cl := &call{req: prepared, requestID: requestID, state: stateInitial}
	return c.execute(ctx, cl, out)
}

func (c *Client) execute(ctx context.Context, cl *call, out any) error {
	token, err := c.currentToken(ctx, cl.req)
	if err != nil {
		return err
	}

	for {
		resp, err := c.send(ctx, cl.req, token)
		if err != nil {
			c.metrics.Inc(MetricRequestNetworkError)
			if terr := cl.to(stateFailed); terr != nil {
				return terr
			}
			return err
		}

		if resp.status == http.StatusUnauthorized && !cl.req.noAuth {
			c.metrics.Inc(MetricUnauthorized)

			if cl.state == stateRetrying {
				if terr := cl.to(stateFailed); terr != nil {
					return terr
				}
				return c.terminate(ctx, cl, newAPIError(resp.status, resp.body))
			}

			if terr := cl.to(stateAwaitingRefresh); terr != nil {
				return terr
			}
			fresh, rerr := c.coordinator.EnsureFreshToken(ctx)
			if rerr != nil {
				if terr := cl.to(stateFailed); terr != nil {
					return terr
				}
				if ctx.Err() != nil && errors.Is(rerr, ctx.Err()) {
					return rerr
				}
				return c.terminate(ctx, cl, rerr)
			}
			if terr := cl.to(stateRetrying); terr != nil {
				return terr
			}

			c.metrics.Inc(MetricRequestRetried)
			c.emit(ctx, Event{
				Type:      EventRequestRetried,
				Method:    cl.req.method,
				Path:      cl.req.path,
				Status:    resp.status,
				RequestID: cl.requestID,
				Success:   true,
			})
			token = fresh
			continue
		}

		if !resp.ok() {
			c.metrics.Inc(MetricRequestHTTPError)
			if terr := cl.to(stateFailed); terr != nil {
				return terr
			}
			return newAPIError(resp.status, resp.body)
		}

		if terr := cl.to(stateDone); terr != nil {
			return terr
		}
		c.metrics.Inc(MetricRequestSuccess)
		return decodeBody(resp.body, out)
	}
}

// currentToken reads the bearer for the first attempt, renewing it first
// when proactive refresh is configured and the token is about to expire.
func (c *Client) currentToken(ctx context.Context, req *preparedRequest) (string, error) {
	if req.noAuth {
		return "", nil
	}

	token, ok, err := c.store.Get(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}

	window := c.cfg.Refresh.ProactiveWindow
	if window <= 0 || !jwt.ExpiresWithin(token, window, c.now()) {
		return token, nil
	}

	c.metrics.Inc(MetricProactiveRefresh)
	fresh, err := c.coordinator.EnsureFreshToken(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		c.logger.LogAttrs(ctx, slog.LevelDebug, "luxeapi proactive refresh failed",
			slog.String("error", err.Error()),
		)
		return token, nil
	}
	return fresh, nil
}

func (c *Client) send(ctx context.Context, req *preparedRequest, token string) (*response, error) {
	httpReq, err := req.build(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, c.cfg.HTTP.MaxResponseBytes)
	if err != nil {
		return nil, err
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// readLimited reads at most limit bytes. One extra byte is requested so an
// oversized body is reported instead of silently cut.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, limit)
	}
	return body, nil
}

// terminate ends the session after an unrecoverable authentication failure.
func (c *Client) terminate(ctx context.Context, cl *call, cause error) error {
	clearCtx := context.WithoutCancel(ctx)
	if err := c.store.Clear(clearCtx); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelError, "luxeapi token store clear failed",
			slog.String("error", err.Error()),
		)
	}

	c.metrics.Inc(MetricSessionTerminated)
	c.logger.LogAttrs(ctx, slog.LevelWarn, "luxeapi session terminated",
		slog.String("method", cl.req.method),
		slog.String("path", cl.req.path),
		slog.String("request_id", cl.requestID),
		slog.String("error", cause.Error()),
	)
	c.emit(clearCtx, Event{
		Type:      EventSessionTerminated,
		Method:    cl.req.method,
		Path:      cl.req.path,
		Status:    http.StatusUnauthorized,
		RequestID: cl.requestID,
		Success:   false,
		Error:     cause.Error(),
	})

	return fmt.Errorf("%w: %w", ErrSessionTerminated, cause)
}

func decodeBody(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpectedResponse, err)
	}
	return nil
}

// Get issues a GET to path.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path}, out)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, JSON: body}, out)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, JSON: body}, out)
}

// Patch sends body as JSON.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: path, JSON: body}, out)
}

// Delete issues a DELETE to path.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path}, out)
}
