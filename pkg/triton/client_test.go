package triton

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfer_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/models/noteseg/infer", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("CF-Access-Client-Secret"))

		var req InferRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Inputs, 1)
		assert.Equal(t, "input_ids", req.Inputs[0].Name)
		assert.Equal(t, []int{2, 3}, req.Inputs[0].Shape)
		assert.Equal(t, "INT64", req.Inputs[0].DataType)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model_name":"noteseg","outputs":[{"name":"logits","shape":[2,2],"datatype":"FP32","data":[0.1,0.9,0.8,0.2]}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, WithHeader("CF-Access-Client-Secret", "secret"))
	resp, err := client.Infer(context.Background(), "noteseg", []Tensor{
		Int64Tensor("input_ids", [][]int{{1, 2, 3}, {4, 5, 6}}),
	})
	require.NoError(t, err)
	assert.Equal(t, "noteseg", resp.ModelName)

	out, err := resp.Output("logits")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, out.Shape)
	assert.Equal(t, []float64{0.1, 0.9, 0.8, 0.2}, out.Data)

	_, err = resp.Output("missing")
	assert.Error(t, err)
}

func TestInfer_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`unexpected shape`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0).Infer(context.Background(), "noteseg", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestInfer_BadJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0).Infer(context.Background(), "noteseg", nil)
	assert.Error(t, err)
}

func TestInt64Tensor(t *testing.T) {
	tensor := Int64Tensor("attention_mask", [][]int{{1, 0}, {1, 1}})
	assert.Equal(t, []int{2, 2}, tensor.Shape)
	assert.Equal(t, []int64{1, 0, 1, 1}, tensor.Data)

	empty := Int64Tensor("x", nil)
	assert.Equal(t, []int{0, 0}, empty.Shape)
}

func TestWithRateLimit(t *testing.T) {
	t.Parallel()

	c := NewClient("http://localhost:8000", time.Second, WithRateLimit(5, 0)).(*httpClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, 1, c.limiter.Burst())

	c = NewClient("http://localhost:8000", time.Second, WithRateLimit(0, 4)).(*httpClient)
	assert.Nil(t, c.limiter)
}

func TestInfer_RateLimitCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(InferResponse{ModelName: "noteseg"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, WithRateLimit(0.001, 1))
	_, err := client.Infer(context.Background(), "noteseg", nil)
	require.NoError(t, err)

	// The single token is spent, so the next call cannot be admitted before
	// the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Infer(ctx, "noteseg", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestInfer_RetryOn503(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`model not ready`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(InferResponse{ModelName: "noteseg"})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, time.Second, WithRetry(3, time.Millisecond)).Infer(context.Background(), "noteseg", nil)
	require.NoError(t, err)
	assert.Equal(t, "noteseg", resp.ModelName)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestInfer_RetryExhausted(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`model not ready`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second, WithRetry(2, time.Millisecond)).Infer(context.Background(), "noteseg", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(2), attempts.Load())
}

func TestRetryableStatusCode(t *testing.T) {
	assert.True(t, retryableStatusCode(429))
	assert.True(t, retryableStatusCode(500))
	assert.True(t, retryableStatusCode(502))
	assert.True(t, retryableStatusCode(503))
	assert.False(t, retryableStatusCode(200))
	assert.False(t, retryableStatusCode(400))
}
