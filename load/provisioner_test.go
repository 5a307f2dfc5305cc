package load

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/ChelseaRhea222/energy-eia-bigquery-etl/transform"
)

// mockWarehouse is an in-memory Warehouse for provisioner and loader tests.
type mockWarehouse struct {
	hasDataset bool
	hasTable   bool
	rows       []transform.NormalizedRecord

	datasetCheckErr error
	tableCheckErr   error
	createErr       error
	appendErr       error

	datasetCreates int
	tableCreates   int
	appendCalls    int
	tableSchema    []Column
	appendCtx      context.Context
}

func (m *mockWarehouse) DatasetExists(ctx context.Context) (bool, error) {
	return m.hasDataset, m.datasetCheckErr
}

func (m *mockWarehouse) CreateDataset(ctx context.Context) error {
	m.datasetCreates++
	if m.createErr != nil {
		return m.createErr
	}
	m.hasDataset = true
	return nil
}

func (m *mockWarehouse) TableExists(ctx context.Context) (bool, error) {
	return m.hasTable, m.tableCheckErr
}

func (m *mockWarehouse) CreateTable(ctx context.Context, schema []Column) error {
	m.tableCreates++
	if m.createErr != nil {
		return m.createErr
	}
	m.tableSchema = schema
	m.hasTable = true
	return nil
}

func (m *mockWarehouse) Append(ctx context.Context, rows []transform.NormalizedRecord) (int64, error) {
	m.appendCalls++
	m.appendCtx = ctx
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	m.rows = append(m.rows, rows...)
	return int64(len(rows)), nil
}

func (m *mockWarehouse) ListDatasets(ctx context.Context) ([]string, error) {
	if m.hasDataset {
		return []string{"energy"}, nil
	}
	return nil, nil
}

func (m *mockWarehouse) TableID() string { return "proj.energy.net_metering_annual" }

func (m *mockWarehouse) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestEnsureDatasetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	w := &mockWarehouse{}
	p := NewProvisioner(w, testLogger())

	created, err := p.EnsureDataset(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	for i := 0; i < 3; i++ {
		created, err = p.EnsureDataset(ctx)
		require.NoError(t, err)
		assert.False(t, created)
	}
	assert.Equal(t, 1, w.datasetCreates)
}

func TestEnsureTableIsIdempotent(t *testing.T) {
	ctx := context.Background()
	w := &mockWarehouse{hasDataset: true}
	p := NewProvisioner(w, testLogger())

	created, err := p.EnsureTable(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, Schema, w.tableSchema)

	created, err = p.EnsureTable(ctx)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, w.tableCreates)
}

func TestProvisionerFailures(t *testing.T) {
	boom := errors.New("permission denied")

	tests := []struct {
		name    string
		w       *mockWarehouse
		ensure  func(p *Provisioner) (bool, error)
		creates func(w *mockWarehouse) int
	}{
		{
			name:    "dataset check failure is not treated as absent",
			w:       &mockWarehouse{datasetCheckErr: boom},
			ensure:  func(p *Provisioner) (bool, error) { return p.EnsureDataset(context.Background()) },
			creates: func(w *mockWarehouse) int { return w.datasetCreates },
		},
		{
			name:    "table check failure is not treated as absent",
			w:       &mockWarehouse{tableCheckErr: boom},
			ensure:  func(p *Provisioner) (bool, error) { return p.EnsureTable(context.Background()) },
			creates: func(w *mockWarehouse) int { return w.tableCreates },
		},
		{
			name:    "dataset creation failure",
			w:       &mockWarehouse{createErr: boom},
			ensure:  func(p *Provisioner) (bool, error) { return p.EnsureDataset(context.Background()) },
			creates: func(w *mockWarehouse) int { return w.datasetCreates - 1 },
		},
		{
			name:    "table creation failure",
			w:       &mockWarehouse{createErr: boom},
			ensure:  func(p *Provisioner) (bool, error) { return p.EnsureTable(context.Background()) },
			creates: func(w *mockWarehouse) int { return w.tableCreates - 1 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvisioner(tt.w, testLogger())
			created, err := tt.ensure(p)
			require.Error(t, err)
			assert.False(t, created)
			assert.True(t, errors.Is(err, ErrProvisioning))
			assert.Contains(t, err.Error(), "permission denied")
			assert.Equal(t, 0, tt.creates(tt.w))
		})
	}
}

func TestProvisionerKeepsCause(t *testing.T) {
	w := &mockWarehouse{tableCheckErr: apiError(http.StatusForbidden)}
	_, err := NewProvisioner(w, testLogger()).EnsureTable(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProvisioning))

	var apiErr *googleapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Code)
}

func TestProvisionerWithDuckDB(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	defer db.Close()
	p := NewProvisioner(db, testLogger())

	for i, wantCreated := range []bool{true, false} {
		created, err := p.EnsureDataset(ctx)
		require.NoError(t, err)
		assert.Equal(t, wantCreated, created, "dataset call %d", i)

		created, err = p.EnsureTable(ctx)
		require.NoError(t, err)
		assert.Equal(t, wantCreated, created, "table call %d", i)
	}
}
