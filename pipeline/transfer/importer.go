package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/pipeline"
)

// Store 模板存储协作者
type Store interface {
	Create(ctx context.Context, schema string, record map[string]any) (pipeline.CreateResult, error)
	Delete(ctx context.Context, schema, id string) error
}

// Resolver 自动化脚本解析协作者，按 id 或名称返回零或一个脚本
type Resolver interface {
	Resolve(ctx context.Context, nameOrID string) ([]pipeline.ScriptRef, error)
}

// Recorder 导入结果上报
type Recorder interface {
	RecordTemplateImport(result string)
}

// Result 单个模板的导入结果
type Result struct {
	Name       string   `json:"name"`
	TemplateID string   `json:"template_id,omitempty"`
	Tasks      int      `json:"tasks"`
	Errors     []string `json:"errors,omitempty"`
}

// Importer 模板导入器。每个模板要么完整写入要么不留痕迹，批次整体不是原子的。
type Importer struct {
	store    Store
	resolver Resolver
	logger   *zap.Logger
	recorder Recorder
	newID    func() string
}

// ImporterOption 导入器可选项
type ImporterOption func(*Importer)

// WithRecorder 设置结果上报
func WithRecorder(r Recorder) ImporterOption {
	return func(im *Importer) {
		im.recorder = r
	}
}

// WithTaskIDGenerator 替换任务 id 生成函数
func WithTaskIDGenerator(fn func() string) ImporterOption {
	return func(im *Importer) {
		im.newID = fn
	}
}

// NewImporter 创建导入器
func NewImporter(store Store, resolver Resolver, logger *zap.Logger, opts ...ImporterOption) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	im := &Importer{
		store:    store,
		resolver: resolver,
		logger:   logger.With(zap.String("component", "template_importer")),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportTemplates 导入编译产物
func (im *Importer) ImportTemplates(ctx context.Context, templates []*pipeline.PipelineTemplate) ([]Result, error) {
	docs := make([]pipeline.TemplateDocument, len(templates))
	for i, t := range templates {
		docs[i] = pipeline.FromTemplate(t)
	}
	return im.Import(ctx, docs)
}

// Import 逐个导入模板文档。已成功的模板不会因后续模板失败而回滚。
func (im *Importer) Import(ctx context.Context, docs []pipeline.TemplateDocument) ([]Result, error) {
	results := make([]Result, 0, len(docs))
	var errs []error

	for _, doc := range docs {
		res, err := im.importOne(ctx, doc)
		if err != nil {
			res.Errors = errorStrings(err)
			errs = append(errs, err)
			im.record("failed")
			im.logger.Warn("template import failed",
				zap.String("template", doc.Name),
				zap.Error(err))
		} else {
			im.record("imported")
			im.logger.Info("template imported",
				zap.String("template", doc.Name),
				zap.String("template_id", res.TemplateID),
				zap.Int("tasks", res.Tasks))
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

func (im *Importer) importOne(ctx context.Context, doc pipeline.TemplateDocument) (Result, error) {
	res := Result{Name: doc.Name}
	tx := newTxn(im.store, im.logger, doc.Name)

	if err := tx.stageParent(ctx, doc.Description); err != nil {
		return res, err
	}

	ids, verrs := im.buildIDMap(doc)
	tasks, remapErrs := remap(doc, ids)
	verrs = append(verrs, remapErrs...)

	resolveErrs, err := im.resolveAutomation(ctx, doc.Name, tasks)
	if err != nil {
		return res, errors.Join(err, tx.compensate(ctx))
	}
	verrs = append(verrs, resolveErrs...)

	if len(verrs) > 0 {
		return res, errors.Join(verrs, tx.compensate(ctx))
	}

	if err := tx.stageChildren(ctx, tasks); err != nil {
		return res, errors.Join(err, tx.compensate(ctx))
	}
	if err := tx.commitChildren(ctx, tasks); err != nil {
		return res, errors.Join(err, tx.compensate(ctx))
	}

	res.TemplateID = tx.parentID
	res.Tasks = len(tasks)
	return res, nil
}

// buildIDMap 一次性构建旧 id 到新 id 的映射，构建后不再修改
func (im *Importer) buildIDMap(doc pipeline.TemplateDocument) (map[string]string, pipeline.ValidationErrors) {
	ids := make(map[string]string, len(doc.Tasks))
	var verrs pipeline.ValidationErrors
	for _, task := range doc.Tasks {
		if _, dup := ids[task.ID]; dup {
			verrs = append(verrs, &pipeline.ValidationError{
				Kind: pipeline.KindDuplicateTask,
				Path: pipeline.TaskPath(doc.Name, taskLabel(task)),
				Msg:  fmt.Sprintf("task id %q is used more than once", task.ID),
			})
			continue
		}
		ids[task.ID] = im.newID()
	}
	return ids, verrs
}

// remap 将后继引用替换为新 id，缺失的引用全部收集
func remap(doc pipeline.TemplateDocument, ids map[string]string) ([]taskRecord, pipeline.ValidationErrors) {
	var (
		tasks []taskRecord
		verrs pipeline.ValidationErrors
		seen  = make(map[string]bool, len(doc.Tasks))
	)
	for _, task := range doc.Tasks {
		if seen[task.ID] {
			continue
		}
		seen[task.ID] = true

		rec := taskRecord{
			id:         ids[task.ID],
			name:       task.Name,
			automation: task.Automation,
			typ:        task.Type,
			successors: make([]string, 0, len(task.Successors)),
		}
		for _, succ := range task.Successors {
			newID, ok := ids[succ]
			if !ok {
				verrs = append(verrs, &pipeline.ValidationError{
					Kind: pipeline.KindUnresolvedSuccessor,
					Path: pipeline.TaskPath(doc.Name, taskLabel(task)),
					Msg:  fmt.Sprintf("successor %q is not a task of this template", succ),
				})
				continue
			}
			rec.successors = append(rec.successors, newID)
		}
		tasks = append(tasks, rec)
	}
	return tasks, verrs
}

// resolveAutomation 原地将自动化引用解析为脚本 id
func (im *Importer) resolveAutomation(ctx context.Context, template string, tasks []taskRecord) (pipeline.ValidationErrors, error) {
	var verrs pipeline.ValidationErrors
	for i := range tasks {
		ref := strings.TrimSpace(tasks[i].automation)
		if ref == "" || strings.EqualFold(ref, pipeline.ManualAutomation) {
			tasks[i].automation = pipeline.ManualAutomation
			continue
		}

		scripts, err := im.resolver.Resolve(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("resolve automation %q: %w", ref, err)
		}
		if len(scripts) == 0 {
			verrs = append(verrs, &pipeline.ValidationError{
				Kind: pipeline.KindUnresolvedAutomation,
				Path: pipeline.TaskPath(template, tasks[i].name),
				Msg:  fmt.Sprintf("automation %q does not match any script", ref),
			})
			continue
		}
		tasks[i].automation = scripts[0].ID
	}
	return verrs, nil
}

func (im *Importer) record(result string) {
	if im.recorder != nil {
		im.recorder.RecordTemplateImport(result)
	}
}

func taskLabel(t pipeline.TaskDocument) string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

func errorStrings(err error) []string {
	if verrs := pipeline.AsValidationErrors(err); len(verrs) > 0 {
		return verrs.Strings()
	}
	return []string{err.Error()}
}
