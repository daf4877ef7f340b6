package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/internal/store"
	"github.com/BaSui01/migrationflow/pipeline"
	"github.com/BaSui01/migrationflow/testutil"
	"github.com/BaSui01/migrationflow/types"
)

// =============================================================================
// 🧪 ServerHandler 测试
// =============================================================================

func newServerMux(t *testing.T) (*http.ServeMux, *store.Store) {
	t.Helper()
	s := store.New(testutil.NewTestPool(t, &store.Item{}), zap.NewNop())
	for _, rec := range []map[string]any{
		{pipeline.FieldServerID: "srv-1", pipeline.FieldServerName: "web-01", pipeline.FieldWaveID: "wave-1"},
		{pipeline.FieldServerID: "srv-2", pipeline.FieldServerName: "db-01", pipeline.FieldWaveID: "wave-1"},
		{pipeline.FieldServerID: "srv-3", pipeline.FieldServerName: "batch-01", pipeline.FieldWaveID: "wave-2"},
	} {
		res, err := s.Create(context.Background(), pipeline.SchemaServer, rec)
		require.NoError(t, err)
		require.True(t, res.OK())
	}

	h := NewServerHandler(s, zap.NewNop())
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/v1/servers/{id}/status", h.HandleStatus)
	mux.HandleFunc("GET /api/v1/waves/{wave}/servers", h.HandleWaveServers)
	return mux, s
}

func TestServerHandler_HandleStatus(t *testing.T) {
	mux, s := newServerMux(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPut, "/api/v1/servers/srv-1/status",
		strings.NewReader(`{"field":"replication_status","status":"Initial sync, ETA 5 Minutes"}`))
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	item, err := s.Get(context.Background(), pipeline.SchemaServer, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "Initial sync, ETA 5 Minutes", item.String(pipeline.FieldReplicationStatus))
	assert.Equal(t, "web-01", item.String(pipeline.FieldServerName))
}

func TestServerHandler_HandleStatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{name: "unknown server", path: "/api/v1/servers/srv-404/status", body: `{"field":"instance_status","status":"Healthy"}`, wantStatus: http.StatusNotFound, wantCode: types.ErrNotFound},
		{name: "unknown field", path: "/api/v1/servers/srv-1/status", body: `{"field":"server_name","status":"x"}`, wantStatus: http.StatusBadRequest, wantCode: types.ErrInvalidRequest},
		{name: "empty status", path: "/api/v1/servers/srv-1/status", body: `{"field":"instance_status","status":""}`, wantStatus: http.StatusBadRequest, wantCode: types.ErrInvalidRequest},
		{name: "malformed body", path: "/api/v1/servers/srv-1/status", body: `{"field":`, wantStatus: http.StatusBadRequest, wantCode: types.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _ := newServerMux(t)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPut, tt.path, strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, string(tt.wantCode), resp.Error.Code)
		})
	}
}

func TestServerHandler_HandleWaveServers(t *testing.T) {
	mux, _ := newServerMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/waves/wave-1/servers", nil))
	require.Equal(t, http.StatusOK, w.Code)
	_, servers := decodeData[[]store.Server](t, w)
	require.Len(t, servers, 2)
	assert.Equal(t, "srv-1", servers[0].ID)
	assert.Equal(t, "srv-2", servers[1].ID)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/waves/wave-9/servers", nil))
	require.Equal(t, http.StatusOK, w.Code)
	_, empty := decodeData[[]store.Server](t, w)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
