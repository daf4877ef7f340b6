package transfer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/pipeline"
)

// taskRecord 重映射之后、待写入的任务
type taskRecord struct {
	id         string
	name       string
	automation string
	typ        pipeline.TaskType
	successors []string
}

func (r taskRecord) fields(templateID string, successors []string) map[string]any {
	rec := map[string]any{
		pipeline.FieldTaskID:         r.id,
		pipeline.FieldTemplateID:     templateID,
		pipeline.FieldTaskName:       r.name,
		pipeline.FieldTaskAutomation: r.automation,
		pipeline.FieldTaskSuccessors: successors,
	}
	if r.typ != "" {
		rec[pipeline.FieldTaskType] = string(r.typ)
	}
	return rec
}

// txn 单个模板的导入事务：stage 父记录，两遍写入子记录，失败时补偿删除
type txn struct {
	store    Store
	logger   *zap.Logger
	name     string
	parentID string
	written  []string
}

func newTxn(store Store, logger *zap.Logger, name string) *txn {
	return &txn{store: store, logger: logger, name: name}
}

func (t *txn) schemaErrors(path string, problems []string) pipeline.ValidationErrors {
	out := make(pipeline.ValidationErrors, 0, len(problems))
	for _, p := range problems {
		out = append(out, &pipeline.ValidationError{Kind: pipeline.KindSchema, Path: path, Msg: p})
	}
	return out
}

// stageParent 写入模板记录并记下新 id
func (t *txn) stageParent(ctx context.Context, description string) error {
	res, err := t.store.Create(ctx, pipeline.SchemaTemplate, map[string]any{
		pipeline.FieldTemplateName:        t.name,
		pipeline.FieldTemplateDescription: description,
	})
	if err != nil {
		return fmt.Errorf("create template %q: %w", t.name, err)
	}
	if !res.OK() {
		return t.schemaErrors(t.name, res.ValidationErrors)
	}
	t.parentID = res.ID
	return nil
}

// stageChildren 第一遍：清空后继写入全部任务，使后继引用在第二遍可解析
func (t *txn) stageChildren(ctx context.Context, tasks []taskRecord) error {
	for _, task := range tasks {
		if err := t.writeTask(ctx, task, []string{}); err != nil {
			return err
		}
		t.written = append(t.written, task.id)
	}
	return nil
}

// commitChildren 第二遍：写入真实后继
func (t *txn) commitChildren(ctx context.Context, tasks []taskRecord) error {
	for _, task := range tasks {
		if len(task.successors) == 0 {
			continue
		}
		if err := t.writeTask(ctx, task, task.successors); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) writeTask(ctx context.Context, task taskRecord, successors []string) error {
	res, err := t.store.Create(ctx, pipeline.SchemaTask, task.fields(t.parentID, successors))
	if err != nil {
		return fmt.Errorf("create task %q: %w", pipeline.TaskPath(t.name, task.name), err)
	}
	if !res.OK() {
		return t.schemaErrors(pipeline.TaskPath(t.name, task.name), res.ValidationErrors)
	}
	return nil
}

// compensate 逆序删除已写入的任务，最后删除模板记录
func (t *txn) compensate(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(t.written) - 1; i >= 0; i-- {
		if err := t.store.Delete(ctx, pipeline.SchemaTask, t.written[i]); err != nil {
			errs = append(errs, fmt.Errorf("delete task %s: %w", t.written[i], err))
		}
	}
	t.written = nil

	if t.parentID != "" {
		if err := t.store.Delete(ctx, pipeline.SchemaTemplate, t.parentID); err != nil {
			errs = append(errs, fmt.Errorf("delete template %s: %w", t.parentID, err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		t.logger.Error("import compensation incomplete",
			zap.String("template", t.name),
			zap.String("template_id", t.parentID),
			zap.Error(err))
	}
	return err
}
