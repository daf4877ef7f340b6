package pipeline

import "strings"

// ManualAutomation is the automation reference of a task that an operator performs by hand.
const ManualAutomation = "Manual"

// TaskType classifies a task shape.
type TaskType string

const (
	TaskManual    TaskType = "manual"
	TaskAutomated TaskType = "automated"
)

// ParseTaskType maps a raw shape attribute to a TaskType (case-insensitive).
// Any other value reports false.
func ParseTaskType(raw string) (TaskType, bool) {
	switch TaskType(strings.ToLower(strings.TrimSpace(raw))) {
	case TaskManual:
		return TaskManual, true
	case TaskAutomated:
		return TaskAutomated, true
	default:
		return "", false
	}
}

// TaskNode is one step of a pipeline template.
type TaskNode struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	TemplateID string   `json:"template_id" yaml:"template_id"`
	Type       TaskType `json:"type" yaml:"type"`
	// Automation 为脚本 id、脚本名或 ManualAutomation
	Automation string   `json:"automation" yaml:"automation"`
	Successors []string `json:"successors" yaml:"successors"`
}

// IsManual reports whether the task has no automation attached.
func (t TaskNode) IsManual() bool {
	return t.Automation == "" || strings.EqualFold(t.Automation, ManualAutomation)
}

// PipelineTemplate is a compiled, not yet persisted, task graph.
type PipelineTemplate struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Tasks       []TaskNode `json:"tasks" yaml:"tasks"`
}

// Task returns the task with the given id.
func (p *PipelineTemplate) Task(id string) (TaskNode, bool) {
	for _, t := range p.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskNode{}, false
}
