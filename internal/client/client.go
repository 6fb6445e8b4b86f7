// Package client is a typed HTTP client for the loan prediction API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"loan-predictor/internal/features"
	"loan-predictor/internal/ml"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Fields     []ml.FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("loan-predictor: %d %s", e.StatusCode, e.Message)
	}
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return fmt.Sprintf("loan-predictor: %d %s: %s", e.StatusCode, e.Message, strings.Join(names, ", "))
}

type errorBody struct {
	Error  string          `json:"error"`
	Fields []ml.FieldError `json:"fields"`
}

// Client talks to a running loan prediction server.
type Client struct {
	base string
	rest *resty.Client
}

// New creates a client for base, e.g. "http://localhost:8000".
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Predict submits one application and returns the decision.
func (c *Client) Predict(ctx context.Context, rec features.ApplicationRecord) (ml.Decision, error) {
	var d ml.Decision
	err := c.do(ctx, "POST", "/predict", rec, &d)
	return d, err
}

// Health returns the server health status. A 503 response is returned as an
// APIError alongside the decoded body.
func (c *Client) Health(ctx context.Context) (ml.HealthStatus, error) {
	var h ml.HealthStatus
	resp, err := c.exec(ctx, "GET", "/health", nil, &h)

	// resty only fills the result on 2xx; an unhealthy server still reports its state.
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		if jerr := json.Unmarshal(resp.Body(), &h); jerr != nil {
			return h, fmt.Errorf("decode health: %v: %w", jerr, err)
		}
	}
	return h, err
}

// ModelInfo returns metadata about the loaded model.
func (c *Client) ModelInfo(ctx context.Context) (ml.ModelInfoResponse, error) {
	var info ml.ModelInfoResponse
	err := c.do(ctx, "GET", "/model/info", nil, &info)
	return info, err
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	_, err := c.exec(ctx, method, path, body, result)
	return err
}

func (c *Client) exec(ctx context.Context, method, path string, body, result interface{}) (*resty.Response, error) {
	errBody := &errorBody{}
	req := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(errBody)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, c.base+path)
	if err != nil {
		return resp, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		msg := errBody.Error
		if msg == "" {
			msg = resp.Status()
		}
		return resp, &APIError{StatusCode: resp.StatusCode(), Message: msg, Fields: errBody.Fields}
	}
	return resp, nil
}
