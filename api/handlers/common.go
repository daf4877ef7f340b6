package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/internal/ctxkeys"
	"github.com/BaSui01/migrationflow/pipeline"
	"github.com/BaSui01/migrationflow/types"
)

// =============================================================================
// 📦 通用响应结构
// =============================================================================

// Response 统一 API 响应结构
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Details    []string `json:"details,omitempty"`
	Retryable  bool     `json:"retryable,omitempty"`
	HTTPStatus int      `json:"-"`
}

// =============================================================================
// 🎯 响应辅助函数
// =============================================================================

// WriteJSON 写入 JSON 响应
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	// 头已写出，编码失败无法再改状态码
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess 写入成功响应
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID(r),
	})
}

// WriteError 写入错误响应（从 types.Error）
func WriteError(w http.ResponseWriter, r *http.Request, err *types.Error, logger *zap.Logger) {
	writeErrorInfo(w, r, &ErrorInfo{
		Code:      string(err.Code),
		Message:   err.Message,
		Retryable: err.Retryable,
	}, err, nil, logger)
}

// WriteErr 将任意错误写为响应：校验错误为 400 并列出明细，
// types.Error 按错误码映射，其余为 500
func WriteErr(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	writeErrorInfo(w, r, errorInfoFor(err), err, nil, logger)
}

// errorInfoFor 把任意错误转换为响应中的错误信息
func errorInfoFor(err error) *ErrorInfo {
	if verrs := pipeline.AsValidationErrors(err); len(verrs) > 0 {
		return &ErrorInfo{
			Code:       string(validationCode(verrs)),
			Message:    "validation failed",
			Details:    verrs.Strings(),
			HTTPStatus: http.StatusBadRequest,
		}
	}
	if errors.Is(err, pipeline.ErrNoTasks) {
		return &ErrorInfo{
			Code:       string(types.ErrValidation),
			Message:    err.Error(),
			HTTPStatus: http.StatusBadRequest,
		}
	}
	if e, ok := types.AsError(err); ok {
		return &ErrorInfo{
			Code:       string(e.Code),
			Message:    e.Message,
			Retryable:  e.Retryable,
			HTTPStatus: e.HTTPStatus,
		}
	}
	return &ErrorInfo{Code: string(types.ErrInternalError), Message: "internal error"}
}

// WriteErrorMessage 写入简单错误消息
func WriteErrorMessage(w http.ResponseWriter, r *http.Request, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, r, types.NewError(code, message).WithHTTPStatus(status), logger)
}

// writeErrorInfo data 非空时随错误一并返回，供调用方了解部分完成的结果
func writeErrorInfo(w http.ResponseWriter, r *http.Request, info *ErrorInfo, cause error, data any, logger *zap.Logger) {
	if info.HTTPStatus == 0 {
		if e, ok := types.AsError(cause); ok && e.HTTPStatus != 0 {
			info.HTTPStatus = e.HTTPStatus
		} else {
			info.HTTPStatus = mapErrorCodeToHTTPStatus(types.ErrorCode(info.Code))
		}
	}

	if logger != nil {
		fields := append(ctxkeys.LogFields(r.Context()),
			zap.String("code", info.Code),
			zap.String("message", info.Message),
			zap.Int("status", info.HTTPStatus),
			zap.Error(cause),
		)
		if info.HTTPStatus >= 500 {
			logger.Error("API error", fields...)
		} else {
			logger.Warn("API error", fields...)
		}
	}

	WriteJSON(w, info.HTTPStatus, Response{
		Success:   false,
		Data:      data,
		Error:     info,
		Timestamp: time.Now(),
		RequestID: requestID(r),
	})
}

// validationCode 选取最能代表一组校验错误的错误码
func validationCode(verrs pipeline.ValidationErrors) types.ErrorCode {
	for _, v := range verrs {
		switch v.Kind {
		case pipeline.KindMissingStartNode:
			return types.ErrMissingStart
		case pipeline.KindUnresolvedSuccessor, pipeline.KindUnresolvedAutomation:
			return types.ErrUnresolvedRef
		}
	}
	return types.ErrValidation
}

func requestID(r *http.Request) string {
	if r == nil {
		return ""
	}
	id, _ := ctxkeys.RequestID(r.Context())
	return id
}

// =============================================================================
// 🔄 错误码到 HTTP 状态码映射
// =============================================================================

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	// 4xx 客户端错误
	case types.ErrInvalidRequest, types.ErrValidation, types.ErrMissingStart, types.ErrUnresolvedRef:
		return http.StatusBadRequest
	case types.ErrAccessDenied:
		return http.StatusForbidden
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrRunLocked:
		return http.StatusConflict
	case types.ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case types.ErrUnsupportedType:
		return http.StatusUnsupportedMediaType
	case types.ErrRateLimited:
		return http.StatusTooManyRequests
	case types.ErrWriteRejected:
		return http.StatusUnprocessableEntity

	// 5xx 服务端错误
	case types.ErrTimeout, types.ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case types.ErrServiceUnavailable, types.ErrProviderUnavailable:
		return http.StatusServiceUnavailable
	case types.ErrUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// =============================================================================
// 🛡️ 请求验证辅助函数
// =============================================================================

// DecodeJSONBody 解码 JSON 请求体，拒绝未知字段；失败时已写出错误响应
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil || r.Body == http.NoBody {
		err := types.NewError(types.ErrInvalidRequest, "request body is empty")
		WriteError(w, r, err, logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		apiErr := bodyError(err, "invalid JSON body")
		WriteError(w, r, apiErr, logger)
		return apiErr
	}
	return nil
}

// bodyError 区分超出 MaxBytesReader 限制与格式错误
func bodyError(err error, message string) *types.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return types.NewError(types.ErrPayloadTooLarge, "request body too large").WithCause(err)
	}
	return types.NewError(types.ErrInvalidRequest, message).WithCause(err)
}

// =============================================================================
// 📊 响应包装器（用于捕获状态码）
// =============================================================================

// ResponseWriter 包装 http.ResponseWriter 以捕获状态码与写出字节数
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Bytes      int64
	Written    bool
}

// NewResponseWriter 创建新的 ResponseWriter
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

// WriteHeader 重写 WriteHeader 以捕获状态码
func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write 重写 Write 以标记已写入
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.Bytes += int64(n)
	return n, err
}
