package transfer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/internal/store"
	"github.com/BaSui01/migrationflow/pipeline"
	"github.com/BaSui01/migrationflow/pipeline/diagram"
	"github.com/BaSui01/migrationflow/pipeline/transfer"
	"github.com/BaSui01/migrationflow/testutil"
	"github.com/BaSui01/migrationflow/testutil/fixtures"
)

type harness struct {
	store    *store.Store
	importer *transfer.Importer
	exporter *transfer.Exporter
}

func newHarness(t *testing.T) harness {
	t.Helper()
	s := store.New(testutil.NewTestPool(t, &store.Item{}), zap.NewNop())
	res, err := s.Create(context.Background(), pipeline.SchemaScript, map[string]any{
		pipeline.FieldScriptID:   "script-launch",
		pipeline.FieldScriptName: "launch-cutover",
	})
	require.NoError(t, err)
	require.True(t, res.OK())

	return harness{
		store:    s,
		importer: transfer.NewImporter(s, store.NewScriptResolver(s), zap.NewNop()),
		exporter: transfer.NewExporter(s, zap.NewNop()),
	}
}

// shapeOf 用名称替换 id，得到与 id 无关的结构
type taskShape struct {
	Name       string
	Automation string
	Successors []string
}

func shapeOf(doc pipeline.TemplateDocument) []taskShape {
	names := make(map[string]string, len(doc.Tasks))
	for _, t := range doc.Tasks {
		names[t.ID] = t.Name
	}
	out := make([]taskShape, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		s := taskShape{Name: t.Name, Automation: t.Automation}
		for _, succ := range t.Successors {
			s.Successors = append(s.Successors, names[succ])
		}
		out = append(out, s)
	}
	return out
}

func TestRoundTrip_DiagramImportExport(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.TestContext(t)

	diagrams, err := diagram.Parse([]byte(fixtures.RehostDiagram))
	require.NoError(t, err)
	templates, err := pipeline.NewCompiler(zap.NewNop()).CompileAll(diagrams)
	require.NoError(t, err)

	_, err = h.importer.ImportTemplates(ctx, templates)
	require.NoError(t, err)

	first, err := h.exporter.Export(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "Rehost", first[0].Name)
	assert.Equal(t, "Rehost wave servers", first[0].Description)
	assert.Equal(t, []taskShape{
		{Name: "Stop application", Automation: pipeline.ManualAutomation, Successors: []string{"Launch cutover instances"}},
		{Name: "Launch cutover instances", Automation: "script-launch", Successors: []string{"Verify health"}},
		{Name: "Verify health", Automation: pipeline.ManualAutomation},
	}, shapeOf(first[0]))

	// Export(Import(Export(T))) 保持名称、自动化引用与后继结构
	_, err = h.importer.Import(ctx, first)
	require.NoError(t, err)

	second, err := h.exporter.Export(ctx)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].Name, second[1].Name)
	assert.Equal(t, first[0].Description, second[1].Description)
	assert.Equal(t, shapeOf(first[0]), shapeOf(second[1]))
	assert.NotEqual(t, first[0].Tasks[0].ID, second[1].Tasks[0].ID, "re-import creates new task ids")
}

func TestImport_UnresolvedSuccessorLeavesNoRows(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.TestContext(t)

	bad := fixtures.TemplateDocument("Replatform", "launch-cutover")
	bad.Tasks[1].Successors = []string{"nowhere"}

	_, err := h.importer.Import(ctx, []pipeline.TemplateDocument{bad})
	require.Error(t, err)

	verrs := pipeline.AsValidationErrors(err)
	require.Len(t, verrs, 1)
	assert.Equal(t, pipeline.KindUnresolvedSuccessor, verrs[0].Kind)
	assert.Equal(t, `Replatform\Run automation`, verrs[0].Path)

	templates, err := h.store.Count(ctx, pipeline.SchemaTemplate)
	require.NoError(t, err)
	tasks, err := h.store.Count(ctx, pipeline.SchemaTask)
	require.NoError(t, err)
	assert.Zero(t, templates)
	assert.Zero(t, tasks)
}

func TestImport_BatchKeepsEarlierTemplates(t *testing.T) {
	h := newHarness(t)
	ctx := testutil.TestContext(t)

	results, err := h.importer.Import(ctx, []pipeline.TemplateDocument{
		fixtures.TemplateDocument("Good", "launch-cutover"),
		fixtures.TemplateDocument("Bad", "unknown-script"),
	})
	require.Error(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Errors)
	assert.Equal(t, []string{`unresolved_automation: Bad\Run automation: automation "unknown-script" does not match any script`}, results[1].Errors)

	docs, err := h.exporter.Export(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Good", docs[0].Name)
	assert.Equal(t, "script-launch", docs[0].Tasks[1].Automation)
}
