package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/migrationflow/convergence"
	"github.com/BaSui01/migrationflow/internal/ctxkeys"
)

var _ convergence.StatusWriter = (*Client)(nil)

func TestClient_WriteStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/servers/srv 1/status", r.URL.Path)
		assert.Equal(t, "k-123", r.Header.Get("X-API-Key"))
		assert.Equal(t, "req-9", r.Header.Get("X-Request-ID"))

		var body statusBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, statusBody{Field: "replication_status", Status: "Healthy"}, body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/", "k-123", "replication_status", time.Second, WithHTTPClient(srv.Client()))
	ctx := ctxkeys.WithRequestID(context.Background(), "req-9")

	code, err := c.WriteStatus(ctx, "srv 1", "Healthy")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
}

func TestClient_ReturnsRejectionCodes(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			t.Cleanup(srv.Close)

			code, err := NewClient(srv.URL, "", "instance_status", time.Second).WriteStatus(context.Background(), "srv-1", "Healthy")
			require.NoError(t, err)
			assert.Equal(t, status, code)
		})
	}
}

type calls struct{ statuses []int }

func (c *calls) RecordUpstreamRequest(_, _ string, status int, _ time.Duration) {
	c.statuses = append(c.statuses, status)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	rec := &calls{}
	code, err := NewClient(base, "", "instance_status", time.Second, WithRecorder(rec)).WriteStatus(context.Background(), "srv-1", "Healthy")
	assert.Error(t, err)
	assert.Zero(t, code)
	assert.Equal(t, []int{0}, rec.statuses)
}
