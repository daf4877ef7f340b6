package store

import (
	"context"

	"github.com/BaSui01/migrationflow/pipeline"
	"github.com/BaSui01/migrationflow/types"
)

// ScriptResolver 按 id 或名称解析自动化脚本
type ScriptResolver struct {
	store *Store
}

// NewScriptResolver 创建脚本解析器
func NewScriptResolver(s *Store) *ScriptResolver {
	return &ScriptResolver{store: s}
}

// Resolve 先按 id 查找，再按 script_name 精确匹配，最多返回一个结果
func (r *ScriptResolver) Resolve(ctx context.Context, nameOrID string) ([]pipeline.ScriptRef, error) {
	if nameOrID == "" {
		return nil, nil
	}

	item, err := r.store.Get(ctx, pipeline.SchemaScript, nameOrID)
	switch {
	case err == nil:
		return []pipeline.ScriptRef{{ID: item.ID, Name: item.String(pipeline.FieldScriptName)}}, nil
	case !types.IsErrorCode(err, types.ErrNotFound):
		return nil, err
	}

	matches, err := r.store.ListBy(ctx, pipeline.SchemaScript, pipeline.FieldScriptName, nameOrID)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return []pipeline.ScriptRef{{ID: matches[0].ID, Name: matches[0].String(pipeline.FieldScriptName)}}, nil
}
