package transfer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/pipeline"
)

// Lister 按写入顺序列出某个 schema 的全部记录
type Lister interface {
	Records(ctx context.Context, schema string) ([]map[string]any, error)
}

// Exporter 将已存储的模板导出为可移植文档
type Exporter struct {
	lister Lister
	logger *zap.Logger
}

// NewExporter 创建导出器
func NewExporter(lister Lister, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		lister: lister,
		logger: logger.With(zap.String("component", "template_exporter")),
	}
}

// Export 返回全部模板。模板 id、版本与审计信息不导出；任务 id、名称、自动化引用与后继原样保留。
func (e *Exporter) Export(ctx context.Context) ([]pipeline.TemplateDocument, error) {
	templates, err := e.lister.Records(ctx, pipeline.SchemaTemplate)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	tasks, err := e.lister.Records(ctx, pipeline.SchemaTask)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	byTemplate := make(map[string][]pipeline.TaskDocument, len(templates))
	for _, rec := range tasks {
		parent := str(rec, pipeline.FieldTemplateID)
		byTemplate[parent] = append(byTemplate[parent], pipeline.TaskDocument{
			ID:         str(rec, pipeline.FieldTaskID),
			Name:       str(rec, pipeline.FieldTaskName),
			Automation: str(rec, pipeline.FieldTaskAutomation),
			Type:       pipeline.TaskType(str(rec, pipeline.FieldTaskType)),
			Successors: strs(rec, pipeline.FieldTaskSuccessors),
		})
	}

	docs := make([]pipeline.TemplateDocument, 0, len(templates))
	for _, rec := range templates {
		id := str(rec, pipeline.FieldTemplateID)
		docs = append(docs, pipeline.TemplateDocument{
			Name:        str(rec, pipeline.FieldTemplateName),
			Description: str(rec, pipeline.FieldTemplateDescription),
			Tasks:       append([]pipeline.TaskDocument{}, byTemplate[id]...),
		})
	}

	e.logger.Debug("templates exported", zap.Int("templates", len(docs)), zap.Int("tasks", len(tasks)))
	return docs, nil
}

func str(rec map[string]any, field string) string {
	s, _ := rec[field].(string)
	return s
}

func strs(rec map[string]any, field string) []string {
	switch list := rec[field].(type) {
	case []string:
		if len(list) == 0 {
			return nil
		}
		return append([]string(nil), list...)
	case []any:
		var out []string
		for _, v := range list {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
