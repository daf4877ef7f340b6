package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/BaSui01/migrationflow/pipeline/diagram"
)

func fixedID(id string) CompilerOption {
	return WithIDGenerator(func() string { return id })
}

func shape(id, label string, attrs map[string]string) diagram.Shape {
	return diagram.Shape{ID: id, Label: label, Attrs: attrs}
}

func TestCompile_BuildsTemplate(t *testing.T) {
	d := diagram.Diagram{
		Name: "Wave 1",
		Shapes: []diagram.Shape{
			shape("s", "Start", map[string]string{"Start Marker": "<b>Rehost</b> the CRM"}),
			shape("a", "<div>Stop&nbsp;app</div>", map[string]string{"task_type": "Manual"}),
			shape("b", "Snapshot", map[string]string{"Task-Type": "AUTOMATED", "automation id": "snap-1"}),
			shape("c", "Verify", map[string]string{"tasktype": "automated", "automation_id": ""}),
			shape("n", "Sticky note", map[string]string{"task type": "comment"}),
			shape("x", "Unlabeled", nil),
		},
		Edges: []diagram.Edge{
			{Source: "s", Target: "a"},
			{Source: "a", Target: "b"},
			{Source: "a", Target: "c"},
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
			{Source: "c", Target: "n"},
			{Source: "n", Target: "a"},
		},
	}

	tmpl, err := NewCompiler(zap.NewNop(), fixedID("tmpl-1")).Compile(d)
	require.NoError(t, err)

	assert.Equal(t, "tmpl-1", tmpl.ID)
	assert.Equal(t, "Wave 1", tmpl.Name)
	assert.Equal(t, "Rehost the CRM", tmpl.Description)
	require.Len(t, tmpl.Tasks, 3)

	a, _ := tmpl.Task("a")
	assert.Equal(t, "Stop app", a.Name)
	assert.Equal(t, TaskManual, a.Type)
	assert.Equal(t, ManualAutomation, a.Automation)
	assert.Equal(t, []string{"b", "c"}, a.Successors)

	b, _ := tmpl.Task("b")
	assert.Equal(t, TaskAutomated, b.Type)
	assert.Equal(t, "snap-1", b.Automation)
	assert.Equal(t, []string{"c"}, b.Successors)

	// 空的 automation id 视为手工任务；指向非任务图形的连线保留
	c, _ := tmpl.Task("c")
	assert.Equal(t, ManualAutomation, c.Automation)
	assert.Equal(t, []string{"n"}, c.Successors)

	for _, task := range tmpl.Tasks {
		assert.Equal(t, "tmpl-1", task.TemplateID)
	}
	_, ok := tmpl.Task("s")
	assert.False(t, ok, "start shape must not become a task")
}

func TestCompile_DescriptionFallsBackToLabel(t *testing.T) {
	d := diagram.Diagram{
		Name: "fallback",
		Shapes: []diagram.Shape{
			shape("s", " <i>Go live</i> ", map[string]string{"start_marker": ""}),
			shape("t", "Task", map[string]string{"task_type": "manual"}),
		},
	}

	tmpl, err := NewCompiler(nil).Compile(d)
	require.NoError(t, err)
	assert.Equal(t, "Go live", tmpl.Description)
	assert.NotEmpty(t, tmpl.ID)
}

func TestCompile_MissingStart(t *testing.T) {
	d := diagram.Diagram{
		Name:   "Orphans",
		Shapes: []diagram.Shape{shape("t", "Task", map[string]string{"task_type": "manual"})},
	}

	_, err := NewCompiler(zap.NewNop()).Compile(d)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KindMissingStartNode, verr.Kind)
	assert.Equal(t, "Orphans", verr.Path)
}

func TestCompile_NoTasks(t *testing.T) {
	d := diagram.Diagram{
		Name:   "Empty",
		Shapes: []diagram.Shape{shape("s", "Start", map[string]string{"start marker": "x"})},
	}

	_, err := NewCompiler(zap.NewNop()).Compile(d)
	assert.ErrorIs(t, err, ErrNoTasks)
}

func TestCompile_FirstStartWins(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := diagram.Diagram{
		Name: "two starts",
		Shapes: []diagram.Shape{
			shape("s1", "First", map[string]string{"start marker": "first description"}),
			shape("t", "Task", map[string]string{"task_type": "manual"}),
			shape("s2", "Second", map[string]string{"start marker": "second description"}),
		},
	}

	tmpl, err := NewCompiler(zap.New(core)).Compile(d)
	require.NoError(t, err)
	assert.Equal(t, "first description", tmpl.Description)
	require.Len(t, tmpl.Tasks, 1)

	entries := logs.FilterMessage("multiple start shapes, using the first").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "s1", entries[0].ContextMap()["start_id"])
}

func TestCompileAll(t *testing.T) {
	valid := diagram.Diagram{
		Name: "ok",
		Shapes: []diagram.Shape{
			shape("s", "Start", map[string]string{"start marker": "desc"}),
			shape("t", "Task", map[string]string{"task_type": "manual"}),
		},
	}
	empty := diagram.Diagram{
		Name:   "legend",
		Shapes: []diagram.Shape{shape("s", "Start", map[string]string{"start marker": "desc"})},
	}
	broken := func(name string) diagram.Diagram {
		return diagram.Diagram{
			Name:   name,
			Shapes: []diagram.Shape{shape("t", "Task", map[string]string{"task_type": "manual"})},
		}
	}

	t.Run("skips diagrams without tasks", func(t *testing.T) {
		templates, err := NewCompiler(zap.NewNop()).CompileAll([]diagram.Diagram{valid, empty})
		require.NoError(t, err)
		require.Len(t, templates, 1)
		assert.Equal(t, "ok", templates[0].Name)
	})

	t.Run("reports every failing diagram", func(t *testing.T) {
		templates, err := NewCompiler(zap.NewNop()).CompileAll([]diagram.Diagram{broken("p1"), valid, broken("p2")})
		require.Error(t, err)
		assert.Nil(t, templates)

		verrs := AsValidationErrors(err)
		require.Len(t, verrs, 2)
		assert.Equal(t, "p1", verrs[0].Path)
		assert.Equal(t, "p2", verrs[1].Path)
	})
}

func TestCompile_FromMarkup(t *testing.T) {
	markup := `<mxfile><diagram id="d" name="Cutover">
<mxGraphModel><root>
  <object id="s" label="Start" start_marker="Cutover &amp; verify"><mxCell vertex="1"/></object>
  <object id="a" label="Stop services" task_type="manual"><mxCell vertex="1"/></object>
  <object id="b" label="Launch" task_type="automated" automation_id="launch-instances"><mxCell vertex="1"/></object>
  <mxCell id="e1" edge="1" source="s" target="a"/>
  <mxCell id="e2" edge="1" source="a" target="b"/>
</root></mxGraphModel>
</diagram></mxfile>`

	diagrams, err := diagram.Parse([]byte(markup))
	require.NoError(t, err)

	templates, err := NewCompiler(zap.NewNop()).CompileAll(diagrams)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "Cutover & verify", templates[0].Description)
	assert.Equal(t, []string{"b"}, templates[0].Tasks[0].Successors)
	assert.Equal(t, "launch-instances", templates[0].Tasks[1].Automation)
}

// 一个开始图形加 N 个任务图形，编译结果恰好有 N 个任务，描述来自开始标记
func TestProperty_CompileTaskCount(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 40).Draw(rt, "tasks")
		noise := rapid.IntRange(0, 10).Draw(rt, "noise")
		desc := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,30}[A-Za-z0-9]`).Draw(rt, "description")

		var shapes []diagram.Shape
		startAt := rapid.IntRange(0, n).Draw(rt, "start_position")
		for i := 0; i < n; i++ {
			if i == startAt {
				shapes = append(shapes, shape("start", "Start", map[string]string{"Start Marker": desc}))
			}
			typ := rapid.SampledFrom([]string{"manual", "Manual", "AUTOMATED", "automated"}).Draw(rt, fmt.Sprintf("type_%d", i))
			shapes = append(shapes, shape(fmt.Sprintf("t%d", i), fmt.Sprintf("Task %d", i), map[string]string{"task_type": typ}))
		}
		if startAt == n {
			shapes = append(shapes, shape("start", "Start", map[string]string{"Start Marker": desc}))
		}
		for i := 0; i < noise; i++ {
			shapes = append(shapes, shape(fmt.Sprintf("note%d", i), "note", nil))
		}

		tmpl, err := NewCompiler(zap.NewNop()).Compile(diagram.Diagram{Name: "prop", Shapes: shapes})
		if err != nil {
			rt.Fatalf("compile failed: %v", err)
		}
		if len(tmpl.Tasks) != n {
			rt.Fatalf("expected %d tasks, got %d", n, len(tmpl.Tasks))
		}
		if tmpl.Description != desc {
			rt.Fatalf("expected description %q, got %q", desc, tmpl.Description)
		}
	})
}
