package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger(t *testing.T) {
	entry := logrus.New().WithField("test", "value")

	ctx := WithLogger(context.Background(), entry)
	assert.Equal(t, "value", FromContext(ctx).Data["test"])

	assert.NotNil(t, FromContext(context.Background()))
}

func TestContextRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "test-request-123")
	assert.Equal(t, "test-request-123", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestRequestLoggerMiddleware(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)

	var gotID string
	var gotEntry *logrus.Entry
	handler := RequestLoggerMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetRequestID(r.Context())
		gotEntry = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))

		require.NotEmpty(t, gotID)
		assert.Equal(t, gotID, rec.Header().Get(RequestIDHeader))
		assert.Equal(t, gotID, gotEntry.Data["request_id"])
		assert.Equal(t, "/jobs", gotEntry.Data["path"])
		assert.Equal(t, "Request started", hook.LastEntry().Message)
	})

	t.Run("keeps client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "client-id")
		req.Header.Set("X-Forwarded-For", "10.1.2.3")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "client-id", gotID)
		assert.Equal(t, "10.1.2.3", gotEntry.Data["remote_ip"])
	})
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	assert.Equal(t, http.StatusOK, rw.StatusCode())

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)
	n, err := rw.Write([]byte("gone"))
	require.NoError(t, err)

	assert.Equal(t, 4, n)
	assert.Equal(t, http.StatusNotFound, rw.StatusCode())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 4, rw.BytesWritten())
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	rw.Flush()
	assert.True(t, rec.Flushed)
	assert.Same(t, http.ResponseWriter(rec), rw.Unwrap())
}

func TestRemoteIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		addr    string
		want    string
	}{
		{name: "connection", addr: "192.0.2.1:1234", want: "192.0.2.1"},
		{name: "connection without port", addr: "192.0.2.1", want: "192.0.2.1"},
		{name: "real ip", addr: "192.0.2.1:1234", headers: map[string]string{"X-Real-IP": "198.51.100.7"}, want: "198.51.100.7"},
		{
			name:    "first forwarded hop",
			addr:    "192.0.2.1:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1", "X-Real-IP": "198.51.100.7"},
			want:    "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.addr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, remoteIP(req))
		})
	}
}
