// Package client talks to the studydeck HTTP API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go"
	"resty.dev/v3"

	"github.com/at-ishikawa/studydeck/internal/card"
	"github.com/at-ishikawa/studydeck/internal/config"
	"github.com/at-ishikawa/studydeck/internal/scheduler"
	"github.com/at-ishikawa/studydeck/internal/statistics"
)

type Client struct {
	httpClient       *resty.Client
	maxRetryAttempts uint
	retryDelay       time.Duration
}

func New(cfg config.ClientConfig) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("Accept", "application/json")
	if cfg.TimeoutSeconds > 0 {
		client.SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	}

	return &Client{
		httpClient:       client,
		maxRetryAttempts: cfg.RetryAttempts,
		retryDelay:       200 * time.Millisecond,
	}
}

func (client *Client) Close() error {
	return client.httpClient.Close()
}

// ResponseError is a non-2xx answer of the server.
type ResponseError struct {
	StatusCode int
	Message    string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("response error %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps status codes to the errors the local scheduler returns.
func (e *ResponseError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return scheduler.ErrNotFound
	case http.StatusBadRequest:
		return scheduler.ErrInvalidInput
	}
	return nil
}

// isRetryableError reports whether a failed request can be sent again. A
// request that is not idempotent is only resent when the server cannot have
// applied it: the connection was never opened or the rate limiter refused it.
func isRetryableError(err error, idempotent bool) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var responseErr *ResponseError
	if errors.As(err, &responseErr) {
		if responseErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return idempotent && responseErr.StatusCode >= http.StatusInternalServerError
	}
	if idempotent {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

type errorBody struct {
	Error string `json:"error"`
}

type reviewRequest struct {
	CardID  int64 `json:"cardId"`
	Quality int   `json:"quality"`
}

type nextDueResponse struct {
	card.Card
	Message string `json:"message"`
}

type cardsResponse struct {
	Cards []card.Card `json:"cards"`
}

type coursesResponse struct {
	Courses []string `json:"courses"`
}

// do sends one request built by newRequest. Idempotent requests are retried
// on transport errors, 5xx and 429 answers; the others only when
// isRetryableError says the server never saw them.
func (client *Client) do(ctx context.Context, name string, idempotent bool, newRequest func() *resty.Request, send func(*resty.Request) (*resty.Response, error)) error {
	return retry.Do(
		func() error {
			response, err := send(newRequest().SetContext(ctx))
			if err != nil {
				err = fmt.Errorf("%s > %w", name, err)
			} else if response.IsError() {
				err = newResponseError(response)
			}
			if err != nil && !isRetryableError(err, idempotent) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(client.maxRetryAttempts+1),
		retry.Delay(client.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Default().Info("retrying studydeck API call", "request", name, "attempt", n+1, "error", err)
		}),
	)
}

func newResponseError(response *resty.Response) error {
	message := response.String()
	var body errorBody
	if err := json.Unmarshal([]byte(message), &body); err == nil && body.Error != "" {
		message = body.Error
	}
	return &ResponseError{
		StatusCode: response.StatusCode(),
		Message:    message,
	}
}

// NextDueCard returns the next due card of course, or nil when nothing is due.
func (client *Client) NextDueCard(ctx context.Context, course string) (*card.Card, error) {
	var result *nextDueResponse
	err := client.do(ctx, "GET /next-due-card", true,
		func() *resty.Request {
			result = &nextDueResponse{}
			request := client.httpClient.R().SetResult(result)
			if course != "" {
				request.SetQueryParam("course", course)
			}
			return request
		},
		func(r *resty.Request) (*resty.Response, error) { return r.Get("/next-due-card") },
	)
	if err != nil {
		return nil, err
	}
	if result.ID == 0 {
		slog.Default().Debug("no card due", "course", course, "message", result.Message)
		return nil, nil
	}
	return &result.Card, nil
}

// RecordReview applies quality to the card and returns its new state.
func (client *Client) RecordReview(ctx context.Context, cardID int64, quality int) (*card.Card, error) {
	var result *card.Card
	err := client.do(ctx, "POST /record-review", false,
		func() *resty.Request {
			result = &card.Card{}
			return client.httpClient.R().
				SetBody(reviewRequest{CardID: cardID, Quality: quality}).
				SetResult(result)
		},
		func(r *resty.Request) (*resty.Response, error) { return r.Post("/record-review") },
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Card returns the card with id.
func (client *Client) Card(ctx context.Context, id int64) (*card.Card, error) {
	var result *card.Card
	err := client.do(ctx, "GET /cards/:id", true,
		func() *resty.Request {
			result = &card.Card{}
			return client.httpClient.R().
				SetPathParam("id", strconv.FormatInt(id, 10)).
				SetResult(result)
		},
		func(r *resty.Request) (*resty.Response, error) { return r.Get("/cards/{id}") },
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddCard creates c on the server and copies the stored card back into c.
func (client *Client) AddCard(ctx context.Context, c *card.Card) error {
	var result *card.Card
	err := client.do(ctx, "POST /cards", false,
		func() *resty.Request {
			result = &card.Card{}
			return client.httpClient.R().SetBody(c).SetResult(result)
		},
		func(r *resty.Request) (*resty.Response, error) { return r.Post("/cards") },
	)
	if err != nil {
		return err
	}
	*c = *result
	return nil
}

// Cards lists the cards of course.
func (client *Client) Cards(ctx context.Context, course string) ([]card.Card, error) {
	var result *cardsResponse
	err := client.do(ctx, "GET /cards", true,
		func() *resty.Request {
			result = &cardsResponse{}
			request := client.httpClient.R().SetResult(result)
			if course != "" {
				request.SetQueryParam("course", course)
			}
			return request
		},
		func(r *resty.Request) (*resty.Response, error) { return r.Get("/cards") },
	)
	if err != nil {
		return nil, err
	}
	return result.Cards, nil
}

func (client *Client) Courses(ctx context.Context) ([]string, error) {
	var result *coursesResponse
	err := client.do(ctx, "GET /courses", true,
		func() *resty.Request {
			result = &coursesResponse{}
			return client.httpClient.R().SetResult(result)
		},
		func(r *resty.Request) (*resty.Response, error) { return r.Get("/courses") },
	)
	if err != nil {
		return nil, err
	}
	return result.Courses, nil
}

// Stats returns the statistics of course, limited to filter's year and month
// when they are set.
func (client *Client) Stats(ctx context.Context, course string, filter statistics.Filter) (statistics.Result, error) {
	var result *statistics.Result
	err := client.do(ctx, "GET /stats", true,
		func() *resty.Request {
			result = &statistics.Result{}
			request := client.httpClient.R().SetResult(result)
			if course != "" {
				request.SetQueryParam("course", course)
			}
			if filter.Year != 0 {
				request.SetQueryParam("year", strconv.Itoa(filter.Year))
			}
			if filter.Month != 0 {
				request.SetQueryParam("month", strconv.Itoa(filter.Month))
			}
			return request
		},
		func(r *resty.Request) (*resty.Response, error) { return r.Get("/stats") },
	)
	if err != nil {
		return statistics.Result{}, err
	}
	return *result, nil
}
