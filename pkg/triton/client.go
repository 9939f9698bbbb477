// Package triton provides a client for the KServe v2 inference protocol
// served by Triton Inference Server.
package triton

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the inference operations.
type Client interface {
	// Infer runs model on the given input tensors.
	Infer(ctx context.Context, model string, inputs []Tensor) (*InferResponse, error)
}

// Tensor is one named input or output tensor in row-major order.
type Tensor struct {
	Name     string `json:"name"`
	Shape    []int  `json:"shape"`
	DataType string `json:"datatype"`
	Data     any    `json:"data"`
}

// InferRequest is the body of POST /v2/models/{model}/infer.
type InferRequest struct {
	Inputs []Tensor `json:"inputs"`
}

// InferResponse is the decoded inference result.
type InferResponse struct {
	ModelName    string         `json:"model_name"`
	ModelVersion string         `json:"model_version"`
	Outputs      []OutputTensor `json:"outputs"`
}

// OutputTensor is an output tensor with numeric data.
type OutputTensor struct {
	Name     string    `json:"name"`
	Shape    []int     `json:"shape"`
	DataType string    `json:"datatype"`
	Data     []float64 `json:"data"`
}

// Output returns the output tensor called name.
func (r *InferResponse) Output(name string) (*OutputTensor, error) {
	for i := range r.Outputs {
		if r.Outputs[i].Name == name {
			return &r.Outputs[i], nil
		}
	}
	return nil, eris.Errorf("triton: response has no output %q", name)
}

// Int64Tensor builds an INT64 tensor from a batch of equal-length rows.
func Int64Tensor(name string, rows [][]int) Tensor {
	width := 0
	if len(rows) > 0 {
		width = len(rows[0])
	}
	data := make([]int64, 0, len(rows)*width)
	for _, r := range rows {
		for _, v := range r {
			data = append(data, int64(v))
		}
	}
	return Tensor{Name: name, Shape: []int{len(rows), width}, DataType: "INT64", Data: data}
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithHeader adds a header to every request, e.g. access tokens.
func WithHeader(key, value string) Option {
	return func(c *httpClient) {
		c.headers[key] = value
	}
}

// WithRateLimit caps requests per second sent to the server. A
// non-positive rps leaves requests unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry sets the total attempts and initial backoff used for transient
// failures (429, 500, 502, 503). The backoff doubles after each attempt.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(c *httpClient) {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		c.maxAttempts, c.backoff = maxAttempts, backoff
	}
}

type httpClient struct {
	baseURL     string
	headers     map[string]string
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	backoff     time.Duration
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &httpClient{
		baseURL:     baseURL,
		headers:     map[string]string{},
		http:        &http.Client{Timeout: timeout},
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

func (c *httpClient) Infer(ctx context.Context, model string, inputs []Tensor) (*InferResponse, error) {
	body, err := json.Marshal(InferRequest{Inputs: inputs})
	if err != nil {
		return nil, eris.Wrap(err, "triton: marshal request")
	}
	reqURL := fmt.Sprintf("%s/v2/models/%s/infer", c.baseURL, model)

	backoff := c.backoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "triton: request cancelled")
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "triton: rate limit wait")
			}
		}

		respBody, status, err := c.post(ctx, reqURL, body)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if retryableStatusCode(status) {
			lastErr = eris.Errorf("triton: unexpected status %d: %s", status, string(respBody))
			continue
		}
		if status != http.StatusOK {
			return nil, eris.Errorf("triton: unexpected status %d: %s", status, string(respBody))
		}

		var out InferResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, eris.Wrap(err, "triton: unmarshal response")
		}
		return &out, nil
	}
	return nil, lastErr
}

// post sends one request and returns the response body and status code.
func (c *httpClient) post(ctx context.Context, reqURL string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, eris.Wrap(err, "triton: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "triton: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "triton: read response body")
	}
	return respBody, resp.StatusCode, nil
}
