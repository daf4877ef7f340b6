// =============================================================================
// 📝 RecordingWriter - 状态写入模拟实现
// =============================================================================
// 记录每次状态写入，可按目标注入状态码或错误
//
// 使用方法:
//
//	writer := mocks.NewRecordingWriter().WithStatus("srv-1", http.StatusForbidden)
//	code, err := writer.WriteStatus(ctx, "srv-1", "Healthy")
//
// =============================================================================
package mocks

import (
	"context"
	"net/http"
	"sync"
)

// Write 一次状态写入
type Write struct {
	TargetID string
	Status   string
}

// RecordingWriter 记录状态写入
type RecordingWriter struct {
	mu     sync.Mutex
	writes []Write
	codes  map[string]int
	errs   map[string]error
}

// NewRecordingWriter 创建写入器，默认返回 200
func NewRecordingWriter() *RecordingWriter {
	return &RecordingWriter{
		codes: make(map[string]int),
		errs:  make(map[string]error),
	}
}

// WithStatus 为目标注入返回码
func (w *RecordingWriter) WithStatus(targetID string, code int) *RecordingWriter {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.codes[targetID] = code
	return w
}

// WithError 为目标注入传输错误
func (w *RecordingWriter) WithError(targetID string, err error) *RecordingWriter {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errs[targetID] = err
	return w
}

// WriteStatus 记录写入并返回注入的结果
func (w *RecordingWriter) WriteStatus(ctx context.Context, targetID, status string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.writes = append(w.writes, Write{TargetID: targetID, Status: status})
	if err := w.errs[targetID]; err != nil {
		return 0, err
	}
	if code, ok := w.codes[targetID]; ok {
		return code, nil
	}
	return http.StatusOK, nil
}

// Writes 返回全部写入记录
func (w *RecordingWriter) Writes() []Write {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Write(nil), w.writes...)
}

// WritesFor 返回某个目标的写入记录
func (w *RecordingWriter) WritesFor(targetID string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []string
	for _, wr := range w.writes {
		if wr.TargetID == targetID {
			out = append(out, wr.Status)
		}
	}
	return out
}
