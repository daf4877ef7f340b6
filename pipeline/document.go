package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a template document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a query value or media type to a Format. Unknown values default to JSON.
func ParseFormat(raw string) Format {
	raw = strings.ToLower(raw)
	if strings.Contains(raw, "yaml") || raw == "yml" {
		return FormatYAML
	}
	return FormatJSON
}

// TemplateDocument is the portable form of a stored template.
// It carries no template id, version or history.
type TemplateDocument struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Tasks       []TaskDocument `json:"tasks" yaml:"tasks"`
}

// TaskDocument is the portable form of one task. Ids are document-local.
type TaskDocument struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Automation string   `json:"automation,omitempty" yaml:"automation,omitempty"`
	Type       TaskType `json:"type,omitempty" yaml:"type,omitempty"`
	Successors []string `json:"successors,omitempty" yaml:"successors,omitempty"`
}

// FromTemplate converts a compiled template into a document.
func FromTemplate(t *PipelineTemplate) TemplateDocument {
	doc := TemplateDocument{
		Name:        t.Name,
		Description: t.Description,
		Tasks:       make([]TaskDocument, 0, len(t.Tasks)),
	}
	for _, task := range t.Tasks {
		doc.Tasks = append(doc.Tasks, TaskDocument{
			ID:         task.ID,
			Name:       task.Name,
			Automation: task.Automation,
			Type:       task.Type,
			Successors: append([]string(nil), task.Successors...),
		})
	}
	return doc
}

// EncodeDocuments writes docs in the given format.
func EncodeDocuments(w io.Writer, docs []TemplateDocument, format Format) error {
	if docs == nil {
		docs = []TemplateDocument{}
	}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			return fmt.Errorf("failed to marshal to YAML: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(docs); err != nil {
			return fmt.Errorf("failed to marshal to JSON: %w", err)
		}
		return nil
	}
}

// DecodeDocuments reads docs in the given format. A single document object is accepted too.
func DecodeDocuments(data []byte, format Format) ([]TemplateDocument, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty template document")
	}

	var docs []TemplateDocument
	switch format {
	case FormatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("failed to unmarshal from YAML: %w", err)
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.MappingNode {
			var doc TemplateDocument
			if err := node.Content[0].Decode(&doc); err != nil {
				return nil, fmt.Errorf("failed to unmarshal from YAML: %w", err)
			}
			return []TemplateDocument{doc}, nil
		}
		if err := node.Decode(&docs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal from YAML: %w", err)
		}
	default:
		if data[0] == '{' {
			var doc TemplateDocument
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("failed to unmarshal from JSON: %w", err)
			}
			return []TemplateDocument{doc}, nil
		}
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal from JSON: %w", err)
		}
	}
	return docs, nil
}
