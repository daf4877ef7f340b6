package store

import (
	"fmt"
	"strings"

	"github.com/BaSui01/migrationflow/pipeline"
)

// FieldType 字段类型
type FieldType string

const (
	FieldString FieldType = "string"
	FieldList   FieldType = "list"
)

// Field 字段定义
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Ref 非空时，值（或列表元素）必须是该 schema 下已存在条目的 id
	Ref string
	// Literals 可代替引用的字面量（大小写不敏感）
	Literals []string
}

// Schema 条目 schema，Key 为主键属性名
type Schema struct {
	Name   string
	Key    string
	Fields []Field
}

// Registry schema 注册表
type Registry map[string]Schema

// DefaultRegistry 返回内置的四类条目 schema
func DefaultRegistry() Registry {
	r := Registry{}
	r.Register(Schema{
		Name: pipeline.SchemaTemplate,
		Key:  pipeline.FieldTemplateID,
		Fields: []Field{
			{Name: pipeline.FieldTemplateName, Type: FieldString, Required: true},
			{Name: pipeline.FieldTemplateDescription, Type: FieldString},
		},
	})
	r.Register(Schema{
		Name: pipeline.SchemaTask,
		Key:  pipeline.FieldTaskID,
		Fields: []Field{
			{Name: pipeline.FieldTemplateID, Type: FieldString, Required: true, Ref: pipeline.SchemaTemplate},
			{Name: pipeline.FieldTaskName, Type: FieldString, Required: true},
			{Name: pipeline.FieldTaskAutomation, Type: FieldString, Required: true, Ref: pipeline.SchemaScript, Literals: []string{pipeline.ManualAutomation}},
			{Name: pipeline.FieldTaskType, Type: FieldString, Literals: []string{string(pipeline.TaskManual), string(pipeline.TaskAutomated)}},
			{Name: pipeline.FieldTaskSuccessors, Type: FieldList, Ref: pipeline.SchemaTask},
		},
	})
	r.Register(Schema{
		Name: pipeline.SchemaScript,
		Key:  pipeline.FieldScriptID,
		Fields: []Field{
			{Name: pipeline.FieldScriptName, Type: FieldString, Required: true},
			{Name: pipeline.FieldScriptDescription, Type: FieldString},
		},
	})
	r.Register(Schema{
		Name: pipeline.SchemaServer,
		Key:  pipeline.FieldServerID,
		Fields: []Field{
			{Name: pipeline.FieldServerName, Type: FieldString, Required: true},
			{Name: pipeline.FieldWaveID, Type: FieldString},
			{Name: pipeline.FieldAccountID, Type: FieldString},
			{Name: pipeline.FieldRegion, Type: FieldString},
			{Name: pipeline.FieldSourceServerID, Type: FieldString},
			{Name: pipeline.FieldTargetInstanceID, Type: FieldString},
			{Name: pipeline.FieldReplicationStatus, Type: FieldString},
			{Name: pipeline.FieldInstanceStatus, Type: FieldString},
		},
	})
	return r
}

// Register 注册或替换 schema
func (r Registry) Register(s Schema) {
	r[s.Name] = s
}

// existsFunc 判断引用目标是否存在
type existsFunc func(schema, id string) (bool, error)

// validate 按 schema 校验记录，返回全部校验错误；error 仅表示查询失败
func (s Schema) validate(record map[string]any, exists existsFunc) ([]string, error) {
	var problems []string

	if v, ok := record[s.Key]; ok && v != nil {
		if _, isStr := v.(string); !isStr {
			problems = append(problems, fmt.Sprintf("%s: must be a string", s.Key))
		}
	}

	for _, f := range s.Fields {
		raw, present := record[f.Name]
		if !present || raw == nil {
			if f.Required {
				problems = append(problems, fmt.Sprintf("%s: required", f.Name))
			}
			continue
		}

		var values []string
		switch f.Type {
		case FieldList:
			list, ok := stringList(raw)
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: must be a list of strings", f.Name))
				continue
			}
			values = list
		default:
			str, ok := raw.(string)
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: must be a string", f.Name))
				continue
			}
			if str == "" {
				if f.Required {
					problems = append(problems, fmt.Sprintf("%s: required", f.Name))
				}
				continue
			}
			values = []string{str}
		}

		for _, v := range values {
			if isLiteral(v, f.Literals) {
				continue
			}
			if f.Ref == "" {
				if len(f.Literals) > 0 {
					problems = append(problems, fmt.Sprintf("%s: %q is not one of %s", f.Name, v, strings.Join(f.Literals, ", ")))
				}
				continue
			}
			ok, err := exists(f.Ref, v)
			if err != nil {
				return nil, err
			}
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: %s %q does not exist", f.Name, f.Ref, v))
			}
		}
	}
	return problems, nil
}

func isLiteral(v string, literals []string) bool {
	for _, l := range literals {
		if strings.EqualFold(v, l) {
			return true
		}
	}
	return false
}
