package pipeline

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/pipeline/diagram"
)

// Shape attribute names recognised by the compiler. Lookup is case- and separator-insensitive.
const (
	AttrStartMarker  = "start marker"
	AttrTaskType     = "task type"
	AttrAutomationID = "automation id"
)

// Compiler turns parsed diagrams into pipeline templates.
type Compiler struct {
	logger *zap.Logger
	newID  func() string
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithIDGenerator overrides template id generation.
func WithIDGenerator(fn func() string) CompilerOption {
	return func(c *Compiler) {
		c.newID = fn
	}
}

// NewCompiler creates a compiler.
func NewCompiler(logger *zap.Logger, opts ...CompilerOption) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Compiler{
		logger: logger.With(zap.String("component", "pipeline_compiler")),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile builds one template from one diagram.
// A diagram without a start shape yields a *ValidationError; one without tasks yields ErrNoTasks.
func (c *Compiler) Compile(d diagram.Diagram) (*PipelineTemplate, error) {
	start, ok := c.findStart(d)
	if !ok {
		return nil, &ValidationError{
			Kind: KindMissingStartNode,
			Path: d.Name,
			Msg:  "no shape carries a start marker",
		}
	}

	tmpl := &PipelineTemplate{
		ID:          c.newID(),
		Name:        d.Name,
		Description: describe(start),
	}

	index := make(map[string]int)
	for _, s := range d.Shapes {
		if s.ID == start.ID {
			continue
		}
		raw, _ := s.Attr(AttrTaskType)
		typ, ok := ParseTaskType(raw)
		if !ok {
			continue
		}
		// 重复 id 只保留第一个
		if _, dup := index[s.ID]; dup {
			continue
		}

		automation := ManualAutomation
		if v, ok := s.Attr(AttrAutomationID); ok && v != "" {
			automation = v
		}

		index[s.ID] = len(tmpl.Tasks)
		tmpl.Tasks = append(tmpl.Tasks, TaskNode{
			ID:         s.ID,
			Name:       diagram.SanitizeLabel(s.Label),
			TemplateID: tmpl.ID,
			Type:       typ,
			Automation: automation,
			Successors: []string{},
		})
	}

	if len(tmpl.Tasks) == 0 {
		return nil, fmt.Errorf("%s: %w", d.Name, ErrNoTasks)
	}

	seen := make(map[[2]string]struct{})
	for _, e := range d.Edges {
		i, ok := index[e.Source]
		if !ok {
			continue
		}
		key := [2]string{e.Source, e.Target}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tmpl.Tasks[i].Successors = append(tmpl.Tasks[i].Successors, e.Target)
	}

	c.logger.Debug("diagram compiled",
		zap.String("diagram", d.Name),
		zap.String("template_id", tmpl.ID),
		zap.Int("tasks", len(tmpl.Tasks)))

	return tmpl, nil
}

// CompileAll compiles every diagram. Diagrams without tasks are skipped.
// Validation errors of all diagrams are reported together and no template is returned
// when any diagram fails.
func (c *Compiler) CompileAll(diagrams []diagram.Diagram) ([]*PipelineTemplate, error) {
	var (
		templates []*PipelineTemplate
		errs      []error
	)
	for _, d := range diagrams {
		tmpl, err := c.Compile(d)
		switch {
		case errors.Is(err, ErrNoTasks):
			c.logger.Info("skipping diagram without tasks", zap.String("diagram", d.Name))
		case err != nil:
			errs = append(errs, err)
		default:
			templates = append(templates, tmpl)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return templates, nil
}

func (c *Compiler) findStart(d diagram.Diagram) (diagram.Shape, bool) {
	var (
		start diagram.Shape
		found int
	)
	for _, s := range d.Shapes {
		if !s.HasAttr(AttrStartMarker) {
			continue
		}
		if found == 0 {
			start = s
		}
		found++
	}
	if found > 1 {
		c.logger.Warn("multiple start shapes, using the first",
			zap.String("diagram", d.Name),
			zap.String("start_id", start.ID),
			zap.Int("count", found))
	}
	return start, found > 0
}

func describe(start diagram.Shape) string {
	v, _ := start.Attr(AttrStartMarker)
	if desc := diagram.SanitizeLabel(v); desc != "" {
		return desc
	}
	return diagram.SanitizeLabel(start.Label)
}
