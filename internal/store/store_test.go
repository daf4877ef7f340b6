package store

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/BaSui01/migrationflow/internal/database"
	"github.com/BaSui01/migrationflow/pipeline"
	"github.com/BaSui01/migrationflow/testutil"
	"github.com/BaSui01/migrationflow/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(testutil.NewTestPool(t, &Item{}), zap.NewNop())
}

func seedScript(t *testing.T, s *Store, id, name string) {
	t.Helper()
	res, err := s.Create(context.Background(), pipeline.SchemaScript, map[string]any{
		pipeline.FieldScriptID:   id,
		pipeline.FieldScriptName: name,
	})
	require.NoError(t, err)
	require.True(t, res.OK(), res.ValidationErrors)
}

func TestStore_CreateGeneratesID(t *testing.T) {
	s := New(testutil.NewTestPool(t, &Item{}), zap.NewNop(), WithIDGenerator(func() string { return "gen-1" }))
	ctx := testutil.TestContext(t)

	res, err := s.Create(ctx, pipeline.SchemaTemplate, map[string]any{pipeline.FieldTemplateName: "Rehost"})
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, "gen-1", res.ID)

	item, err := s.Get(ctx, pipeline.SchemaTemplate, "gen-1")
	require.NoError(t, err)
	assert.Equal(t, "Rehost", item.String(pipeline.FieldTemplateName))
	assert.Equal(t, "gen-1", item.String(pipeline.FieldTemplateID))
	assert.Equal(t, 1, item.Version)
	assert.False(t, item.History.CreatedAt.IsZero())
}

func TestStore_CreateWithKeyIsUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.TestContext(t)

	seedScript(t, s, "sc-1", "first")
	seedScript(t, s, "sc-1", "second")

	item, err := s.Get(ctx, pipeline.SchemaScript, "sc-1")
	require.NoError(t, err)
	assert.Equal(t, "second", item.String(pipeline.FieldScriptName))
	assert.Equal(t, 2, item.Version)
	assert.False(t, item.History.LastModifiedAt.IsZero())

	n, err := s.Count(ctx, pipeline.SchemaScript)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStore_CreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.TestContext(t)

	res, err := s.Create(ctx, pipeline.SchemaTemplate, map[string]any{pipeline.FieldTemplateName: "T"})
	require.NoError(t, err)
	templateID := res.ID
	seedScript(t, s, "sc-1", "snapshot")

	tests := []struct {
		name   string
		record map[string]any
		want   []string
	}{
		{
			name:   "missing required fields",
			record: map[string]any{},
			want: []string{
				"pipeline_template_id: required",
				"pipeline_template_task_name: required",
				"task_automation: required",
			},
		},
		{
			name: "dangling references",
			record: map[string]any{
				pipeline.FieldTemplateID:     "nope",
				pipeline.FieldTaskName:       "x",
				pipeline.FieldTaskAutomation: "missing-script",
				pipeline.FieldTaskSuccessors: []string{"ghost"},
			},
			want: []string{
				`pipeline_template_id: pipeline_template "nope" does not exist`,
				`task_automation: script "missing-script" does not exist`,
				`task_successors: pipeline_template_task "ghost" does not exist`,
			},
		},
		{
			name: "wrong types and literal",
			record: map[string]any{
				pipeline.FieldTemplateID:     templateID,
				pipeline.FieldTaskName:       42,
				pipeline.FieldTaskAutomation: "manual",
				pipeline.FieldTaskType:       "scheduled",
				pipeline.FieldTaskSuccessors: "not-a-list",
			},
			want: []string{
				"pipeline_template_task_name: must be a string",
				`task_type: "scheduled" is not one of manual, automated`,
				"task_successors: must be a list of strings",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Create(ctx, pipeline.SchemaTask, tt.record)
			require.NoError(t, err)
			assert.Empty(t, res.ID)
			assert.Equal(t, tt.want, res.ValidationErrors)
		})
	}

	n, err := s.Count(ctx, pipeline.SchemaTask)
	require.NoError(t, err)
	assert.Zero(t, n, "rejected records must not be written")

	// 合法记录：Manual 字面量与已存在的脚本 id 均可
	for _, automation := range []string{"Manual", "sc-1"} {
		res, err := s.Create(ctx, pipeline.SchemaTask, map[string]any{
			pipeline.FieldTemplateID:     templateID,
			pipeline.FieldTaskName:       "ok",
			pipeline.FieldTaskAutomation: automation,
			pipeline.FieldTaskSuccessors: []any{},
		})
		require.NoError(t, err)
		assert.True(t, res.OK(), res.ValidationErrors)
	}
}

func TestStore_UnknownSchema(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Create(context.Background(), "nope", map[string]any{})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestStore_DeleteAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.TestContext(t)
	seedScript(t, s, "sc-1", "snapshot")

	require.NoError(t, s.Delete(ctx, pipeline.SchemaScript, "sc-1"))

	_, err := s.Get(ctx, pipeline.SchemaScript, "sc-1")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))

	err = s.Delete(ctx, pipeline.SchemaScript, "sc-1")
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
}

func TestStore_ListKeepsWriteOrder(t *testing.T) {
	frozen := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := New(testutil.NewTestPool(t, &Item{}), zap.NewNop(), WithClock(func() time.Time { return frozen }))
	ctx := testutil.TestContext(t)

	for _, id := range []string{"z", "a", "m"} {
		seedScript(t, s, id, "script "+id)
	}

	items, err := s.List(ctx, pipeline.SchemaScript)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"z", "a", "m"}, []string{items[0].ID, items[1].ID, items[2].ID})

	records, err := s.Records(ctx, pipeline.SchemaScript)
	require.NoError(t, err)
	assert.Equal(t, "script z", records[0][pipeline.FieldScriptName])
}

func TestStore_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.TestContext(t)

	res, err := s.Create(ctx, pipeline.SchemaServer, map[string]any{
		pipeline.FieldServerID:   "srv-1",
		pipeline.FieldServerName: "web-01",
		pipeline.FieldWaveID:     "w1",
	})
	require.NoError(t, err)
	require.True(t, res.OK())

	res, err = s.Update(ctx, pipeline.SchemaServer, "srv-1", map[string]any{pipeline.FieldReplicationStatus: "Healthy"})
	require.NoError(t, err)
	assert.True(t, res.OK())

	item, err := s.Get(ctx, pipeline.SchemaServer, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "Healthy", item.String(pipeline.FieldReplicationStatus))
	assert.Equal(t, "web-01", item.String(pipeline.FieldServerName))
	assert.Equal(t, 2, item.Version)

	res, err = s.Update(ctx, pipeline.SchemaServer, "srv-1", map[string]any{pipeline.FieldServerName: ""})
	require.NoError(t, err)
	assert.False(t, res.OK())

	_, err = s.Update(ctx, pipeline.SchemaServer, "missing", map[string]any{})
	assert.True(t, types.IsErrorCode(err, types.ErrNotFound))
}

func TestScriptResolver(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.TestContext(t)
	seedScript(t, s, "sc-1", "snapshot-volumes")
	seedScript(t, s, "sc-2", "launch")

	r := NewScriptResolver(s)

	refs, err := r.Resolve(ctx, "sc-2")
	require.NoError(t, err)
	assert.Equal(t, []pipeline.ScriptRef{{ID: "sc-2", Name: "launch"}}, refs)

	refs, err = r.Resolve(ctx, "snapshot-volumes")
	require.NoError(t, err)
	assert.Equal(t, []pipeline.ScriptRef{{ID: "sc-1", Name: "snapshot-volumes"}}, refs)

	refs, err = r.Resolve(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestStatusWriter(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.TestContext(t)
	_, err := s.Create(ctx, pipeline.SchemaServer, map[string]any{
		pipeline.FieldServerID:   "srv-1",
		pipeline.FieldServerName: "db-01",
	})
	require.NoError(t, err)

	w := NewStatusWriter(s, pipeline.FieldInstanceStatus)

	code, err := w.WriteStatus(ctx, "srv-1", "Impaired - 1/2 checks passed")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	item, err := s.Get(ctx, pipeline.SchemaServer, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, "Impaired - 1/2 checks passed", item.String(pipeline.FieldInstanceStatus))

	code, err = w.WriteStatus(ctx, "srv-404", "Healthy")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStore_WaveServers(t *testing.T) {
	s := newTestStore(t)
	ctx := testutil.TestContext(t)
	for _, rec := range []map[string]any{
		{pipeline.FieldServerID: "a", pipeline.FieldServerName: "a", pipeline.FieldWaveID: "w1", pipeline.FieldAccountID: "111", pipeline.FieldRegion: "eu-west-1", pipeline.FieldSourceServerID: "s-a"},
		{pipeline.FieldServerID: "b", pipeline.FieldServerName: "b", pipeline.FieldWaveID: "w2"},
		{pipeline.FieldServerID: "c", pipeline.FieldServerName: "c", pipeline.FieldWaveID: "w1", pipeline.FieldReplicationStatus: "Healthy"},
	} {
		res, err := s.Create(ctx, pipeline.SchemaServer, rec)
		require.NoError(t, err)
		require.True(t, res.OK())
	}

	servers, err := s.WaveServers(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, servers, 2)
	assert.Equal(t, Server{ID: "a", Name: "a", WaveID: "w1", AccountID: "111", Region: "eu-west-1", SourceServerID: "s-a"}, servers[0])
	assert.Equal(t, "Healthy", servers[1].ReplicationStatus)
}

func TestStore_DatabaseFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	pool, err := database.NewPoolManager(gormDB, database.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}, zap.NewNop())
	require.NoError(t, err)
	s := New(pool, zap.NewNop())

	mock.ExpectQuery(`SELECT \* FROM "items"`).WillReturnError(errors.New("relation \"items\" does not exist"))
	_, err = s.List(context.Background(), pipeline.SchemaScript)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list script")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "items"`).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()
	err = s.Delete(context.Background(), pipeline.SchemaScript, "x")
	require.Error(t, err)
	assert.False(t, types.IsErrorCode(err, types.ErrNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}
