package handlers

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/pipeline"
	"github.com/BaSui01/migrationflow/pipeline/diagram"
	"github.com/BaSui01/migrationflow/pipeline/transfer"
	"github.com/BaSui01/migrationflow/types"
)

// =============================================================================
// 🧩 流水线模板 Handler
// =============================================================================

// CompileRecorder 记录流程图编译结果
type CompileRecorder interface {
	RecordDiagramCompile(result string)
}

// TemplateImporter 模板导入协作者
type TemplateImporter interface {
	Import(ctx context.Context, docs []pipeline.TemplateDocument) ([]transfer.Result, error)
}

// TemplateExporter 模板导出协作者
type TemplateExporter interface {
	Export(ctx context.Context) ([]pipeline.TemplateDocument, error)
}

// PipelineHandler 处理流程图上传与模板导入导出
type PipelineHandler struct {
	compiler *pipeline.Compiler
	importer TemplateImporter
	exporter TemplateExporter
	recorder CompileRecorder
	maxBody  int64
	logger   *zap.Logger
}

// NewPipelineHandler 创建处理器；maxBody <= 0 时使用 10 MiB
func NewPipelineHandler(compiler *pipeline.Compiler, importer TemplateImporter, exporter TemplateExporter, recorder CompileRecorder, maxBody int64, logger *zap.Logger) *PipelineHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &PipelineHandler{
		compiler: compiler,
		importer: importer,
		exporter: exporter,
		recorder: recorder,
		maxBody:  maxBody,
		logger:   logger.With(zap.String("component", "pipeline_handler")),
	}
}

// DiagramResponse 流程图上传结果
type DiagramResponse struct {
	DryRun    bool                        `json:"dry_run"`
	Templates []pipeline.TemplateDocument `json:"templates"`
	Imported  []transfer.Result           `json:"imported,omitempty"`
}

// HandleDiagram 处理 POST /api/v1/pipelines/diagrams[?dry_run=true]
func (h *PipelineHandler) HandleDiagram(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readBody(w, r)
	if !ok {
		return
	}

	diagrams, err := diagram.Parse(data)
	if err != nil {
		h.recordCompile("parse_error")
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "unreadable diagram markup").WithCause(err), h.logger)
		return
	}

	templates, err := h.compiler.CompileAll(diagrams)
	if err != nil {
		h.recordCompile("invalid")
		WriteErr(w, r, err, h.logger)
		return
	}
	h.recordCompile("success")

	resp := DiagramResponse{Templates: make([]pipeline.TemplateDocument, 0, len(templates))}
	for _, t := range templates {
		resp.Templates = append(resp.Templates, pipeline.FromTemplate(t))
	}

	resp.DryRun, _ = strconv.ParseBool(r.URL.Query().Get("dry_run"))
	if resp.DryRun {
		WriteSuccess(w, r, resp)
		return
	}

	results, err := h.importer.Import(r.Context(), resp.Templates)
	resp.Imported = results
	h.writeImport(w, r, resp, err)
}

// HandleImport 处理 POST /api/v1/pipelines/templates/import，接受 JSON 或 YAML
func (h *PipelineHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	format, ok := documentFormat(r.Header.Get("Content-Type"))
	if !ok {
		WriteErrorMessage(w, r, http.StatusUnsupportedMediaType, types.ErrUnsupportedType,
			"Content-Type must be application/json or application/yaml", h.logger)
		return
	}

	data, ok := h.readBody(w, r)
	if !ok {
		return
	}

	docs, err := pipeline.DecodeDocuments(data, format)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInvalidRequest, "invalid template documents").WithCause(err), h.logger)
		return
	}

	results, err := h.importer.Import(r.Context(), docs)
	h.writeImport(w, r, results, err)
}

// HandleExport 处理 GET /api/v1/pipelines/templates/export[?format=yaml]
func (h *PipelineHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	docs, err := h.exporter.Export(r.Context())
	if err != nil {
		WriteErr(w, r, err, h.logger)
		return
	}

	if pipeline.ParseFormat(r.URL.Query().Get("format")) != pipeline.FormatYAML {
		WriteSuccess(w, r, docs)
		return
	}

	var buf bytes.Buffer
	if err := pipeline.EncodeDocuments(&buf, docs, pipeline.FormatYAML); err != nil {
		WriteErr(w, r, err, h.logger)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="pipeline_templates.yaml"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeImport 批次部分失败时仍返回逐个模板的结果，调用方据此得知哪些模板已提交
func (h *PipelineHandler) writeImport(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err == nil {
		WriteSuccess(w, r, data)
		return
	}

	info := errorInfoFor(err)
	if verrs := pipeline.AsValidationErrors(err); len(verrs) > 0 {
		info.Message = "one or more templates were not imported"
		h.logger.Warn("template import rejected", zap.Strings("errors", verrs.Strings()))
	}
	writeErrorInfo(w, r, info, err, data, h.logger)
}

func (h *PipelineHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		WriteError(w, r, bodyError(err, "failed to read request body"), h.logger)
		return nil, false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "request body is empty", h.logger)
		return nil, false
	}
	return data, true
}

func (h *PipelineHandler) recordCompile(result string) {
	if h.recorder != nil {
		h.recorder.RecordDiagramCompile(result)
	}
}

// documentFormat 由 Content-Type 判断文档格式；缺省按 JSON 处理
func documentFormat(contentType string) (pipeline.Format, bool) {
	if contentType == "" {
		return pipeline.FormatJSON, true
	}
	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	switch {
	case media == "application/json":
		return pipeline.FormatJSON, true
	case strings.HasSuffix(media, "yaml") || strings.HasSuffix(media, "yml"):
		return pipeline.FormatYAML, true
	default:
		return "", false
	}
}
