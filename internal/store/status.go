package store

import (
	"context"
	"net/http"

	"github.com/BaSui01/migrationflow/pipeline"
	"github.com/BaSui01/migrationflow/types"
)

// StatusWriter 直接写库的状态持久化，field 为 replication_status 或 instance_status
type StatusWriter struct {
	store *Store
	field string
}

// NewStatusWriter 创建状态写入器
func NewStatusWriter(s *Store, field string) *StatusWriter {
	return &StatusWriter{store: s, field: field}
}

// WriteStatus 更新 server 记录的状态字段，返回 HTTP 风格的状态码
func (w *StatusWriter) WriteStatus(ctx context.Context, targetID, status string) (int, error) {
	res, err := w.store.Update(ctx, pipeline.SchemaServer, targetID, map[string]any{w.field: status})
	if err != nil {
		if types.IsErrorCode(err, types.ErrNotFound) {
			return http.StatusNotFound, nil
		}
		return http.StatusInternalServerError, err
	}
	if !res.OK() {
		return http.StatusBadRequest, nil
	}
	return http.StatusOK, nil
}
