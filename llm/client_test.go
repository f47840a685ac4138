package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sammcj/tripnow-mcp/metrics"
	"github.com/sammcj/tripnow-mcp/types"
)

func TestPostSendsJSONWithHeaders(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"id":"abc"}`))
	}))
	defer srv.Close()

	c := New(0)
	text, err := c.Post(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer k1"}, map[string]any{"stream": false})
	require.NoError(t, err)

	assert.Equal(t, `{"id":"abc"}`, text)
	assert.Equal(t, "Bearer k1", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, false, gotBody["stream"])
}

func TestPostReturnsBodyUnmodified(t *testing.T) {
	raw := "not json at all \n  with spacing "
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, raw)
	}))
	defer srv.Close()

	text, err := New(0).Post(context.Background(), srv.URL, nil, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, raw, text)
}

func TestPostHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	_, err := New(0).Post(context.Background(), srv.URL, nil, struct{}{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUpstreamHTTP))
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")

	var httpErr *types.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.StatusCode)
	assert.Equal(t, "Internal Server Error", httpErr.Status)
}

func TestPostHTTPErrorTruncatesBody(t *testing.T) {
	long := strings.Repeat("航", 800)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, long)
	}))
	defer srv.Close()

	_, err := New(0).Post(context.Background(), srv.URL, nil, struct{}{})
	var httpErr *types.UpstreamHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, len([]rune(httpErr.Body)))
}

func TestPostTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(0).Post(context.Background(), url, nil, struct{}{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUpstreamTransport))

	var transportErr *types.UpstreamTransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, url, transportErr.URL)
	assert.NotNil(t, transportErr.Err)
}

func TestPostTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := New(50*time.Millisecond).Post(context.Background(), srv.URL, nil, struct{}{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUpstreamTransport))
}

func TestPostRecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := New(time.Second, WithMetrics(metrics.New(reg)))
	_, err := c.Post(context.Background(), srv.URL, nil, struct{}{})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "tripnow_upstream_request_duration_seconds" {
			found = true
			require.Len(t, f.GetMetric(), 1)
			assert.Equal(t, uint64(1), f.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	assert.True(t, found)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "火车", truncate("火车票", 2))
	assert.Equal(t, "", truncate("abc", 0))
}

func TestTruncateKeepsInvalidUTF8Bytes(t *testing.T) {
	body := "a\xffb\xfec"
	assert.Equal(t, "a\xffb", truncate(body, 3))
	assert.Equal(t, body, truncate(body, 10))
}
