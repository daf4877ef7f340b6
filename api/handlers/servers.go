package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/internal/store"
	"github.com/BaSui01/migrationflow/pipeline"
	"github.com/BaSui01/migrationflow/types"
)

// ServerStore 服务器条目协作者
type ServerStore interface {
	Update(ctx context.Context, schema, id string, patch map[string]any) (pipeline.CreateResult, error)
	WaveServers(ctx context.Context, waveID string) ([]store.Server, error)
}

// ServerHandler 处理服务器状态写入与按批次查询
type ServerHandler struct {
	store  ServerStore
	logger *zap.Logger
}

// NewServerHandler 创建处理器
func NewServerHandler(s ServerStore, logger *zap.Logger) *ServerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServerHandler{store: s, logger: logger.With(zap.String("component", "server_handler"))}
}

// StatusUpdate PUT /api/v1/servers/{id}/status 的请求体
type StatusUpdate struct {
	Field  string `json:"field"`
	Status string `json:"status"`
}

// HandleStatus 处理 PUT /api/v1/servers/{id}/status
func (h *ServerHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	var req StatusUpdate
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Field != pipeline.FieldReplicationStatus && req.Field != pipeline.FieldInstanceStatus {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest,
			"field must be replication_status or instance_status", h.logger)
		return
	}
	if req.Status == "" {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "status is required", h.logger)
		return
	}

	res, err := h.store.Update(r.Context(), pipeline.SchemaServer, id, map[string]any{req.Field: req.Status})
	if err != nil {
		WriteErr(w, r, err, h.logger)
		return
	}
	if !res.OK() {
		WriteJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error: &ErrorInfo{
				Code:    string(types.ErrValidation),
				Message: "server record rejected",
				Details: res.ValidationErrors,
			},
			Timestamp: time.Now(),
			RequestID: requestID(r),
		})
		return
	}

	h.logger.Debug("server status updated",
		zap.String("server_id", id),
		zap.String("field", req.Field),
		zap.String("status", req.Status),
	)
	WriteSuccess(w, r, map[string]string{"server_id": id, "field": req.Field, "status": req.Status})
}

// HandleWaveServers 处理 GET /api/v1/waves/{wave}/servers
func (h *ServerHandler) HandleWaveServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.store.WaveServers(r.Context(), r.PathValue("wave"))
	if err != nil {
		WriteErr(w, r, err, h.logger)
		return
	}
	if servers == nil {
		servers = []store.Server{}
	}
	WriteSuccess(w, r, servers)
}
