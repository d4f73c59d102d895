package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tsinling0525/flowrun/infra"
	"github.com/Tsinling0525/flowrun/model"
)

func TestQueries(t *testing.T) {
	assert.Contains(t, upsertWorkflowQuery, "ON CONFLICT (id) DO UPDATE")
	assert.NotContains(t, upsertWorkflowQuery, "user_id = EXCLUDED.user_id", "ownership must not change on update")
	assert.Contains(t, insertNodeResultQuery, "ON CONFLICT (execution_id, seq) DO NOTHING")
	assert.Contains(t, listNodeResultsQuery, "ORDER BY seq ASC")
	assert.Contains(t, selectExecutionQuery, "execution_id = $1")

	for name, q := range map[string]string{
		"upsertWorkflow":  upsertWorkflowQuery,
		"upsertExecution": upsertExecutionQuery,
		"insertNode":      insertNodeResultQuery,
	} {
		cols := strings.Count(q[strings.Index(q, "(")+1:strings.Index(q, ")")], ",") + 1
		assert.Contains(t, q, "$"+strconv.Itoa(cols)+")", name)
	}
}

type recordingDB struct {
	execs []string
	err   error
}

func (d *recordingDB) ExecContext(_ context.Context, q string, _ ...any) (sql.Result, error) {
	d.execs = append(d.execs, q)
	return nil, d.err
}

func (d *recordingDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (d *recordingDB) QueryRowContext(context.Context, string, ...any) *sql.Row { return nil }

func TestMigrate(t *testing.T) {
	db := &recordingDB{}
	require.NoError(t, Migrate(context.Background(), db))
	require.Len(t, db.execs, len(migrations))
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS workflows")

	db = &recordingDB{err: errors.New("permission denied")}
	err := Migrate(context.Background(), db)
	assert.ErrorContains(t, err, "migrate step 0")
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.withDefaults().Validate())
	assert.NoError(t, Config{URL: "postgres://localhost/flowrun"}.withDefaults().Validate())
	assert.Error(t, Config{URL: "x", MaxOpenConns: 2, MaxIdleConns: 3}.Validate())
}

func TestOutputCodec(t *testing.T) {
	b, err := encodeOutput(nil)
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = encodeOutput(map[string]any{"a": 1})
	require.NoError(t, err)
	v, err := decodeOutput(b)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)

	v, err = decodeOutput(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestHelpers(t *testing.T) {
	assert.ErrorIs(t, handleNotFound(sql.ErrNoRows), infra.ErrNotFound)
	assert.False(t, nullIfEmpty("").Valid)
	assert.True(t, nullIfEmpty("x").Valid)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))
	assert.Equal(t, time.UTC, normalizeTime(ts).Location())
	assert.False(t, normalizeTime(time.Time{}).IsZero())
}

func TestPersistWithoutID(t *testing.T) {
	db := &recordingDB{}
	assert.Error(t, New(db).PutWorkflow(context.Background(), model.StoredWorkflow{Name: "no id"}))
	assert.Empty(t, db.execs)
}
