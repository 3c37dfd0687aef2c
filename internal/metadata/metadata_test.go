package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testColumnCSV = "column_order,source_column_name,source_column_type,dest_column_name,dest_column_type,transform_function,default_value,validation_rule,validation_action\n" +
	"1,id,int,order_id,int,,,order_id IS NOT NULL,DROP\n" +
	"2,ts,timestamp,order_ts,timestamp,,,,\n" +
	"3,amt,double,amount,double,,,,\n"

// buildConfigTree lays out one valid pipeline assembled from three
// fragment formats plus a CSV column file, and one broken pipeline.
func buildConfigTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	orders := filepath.Join(root, "pipelines", "sales", "orders")
	require.NoError(t, os.MkdirAll(orders, 0o755))
	writeFile(t, orders, "00_sources.yaml",
		"sources:\n"+
			"  - origin: landing/orders\n"+
			"    datatype: csv\n"+
			"    target: orders_raw\n"+
			"    params:\n"+
			"      header: true\n")
	writeFile(t, orders, "10_transformations.json",
		`{"transformations": [{"origin": "orders_raw", "target": "orders_clean", "config": "columns.csv"}]}`)
	writeFile(t, orders, "columns.csv", testColumnCSV)
	writeFile(t, orders, "20_destinations.toml",
		"[[destinations]]\norigin = \"orders_clean\"\ntarget = \"orders\"\nmode = \"append\"\n")

	broken := filepath.Join(root, "pipelines", "sales", "broken")
	require.NoError(t, os.MkdirAll(broken, 0o755))
	writeFile(t, broken, "destinations.yaml",
		"destinations:\n"+
			"  - origin: v\n"+
			"    target: broken\n"+
			"    mode: upsert\n")

	return root
}

func TestNewRequiresDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	path := writeFile(t, t.TempDir(), "file.txt", "not a dir")
	_, err = New(path)
	require.Error(t, err)
}

func TestAssembleMergesFragments(t *testing.T) {
	meta, err := New(buildConfigTree(t))
	require.NoError(t, err)

	configs, diagnostics := meta.Assemble()
	require.Len(t, configs, 1)
	require.Len(t, diagnostics, 1)

	cfg := configs[0]
	assert.Equal(t, "sales", cfg.TargetSchemaName)
	assert.Equal(t, "orders", cfg.PipelineName)
	require.Len(t, cfg.Sources, 1)
	require.Len(t, cfg.Transformations, 3)
	require.Len(t, cfg.Destinations, 1)
}

func TestAssembleEncodesSourceParams(t *testing.T) {
	meta, err := New(buildConfigTree(t))
	require.NoError(t, err)

	configs, _ := meta.Assemble()
	require.Len(t, configs, 1)
	assert.JSONEq(t, `{"header": true}`, configs[0].Sources[0].Params)
}

func TestAssembleExpandsColumnCSV(t *testing.T) {
	meta, err := New(buildConfigTree(t))
	require.NoError(t, err)

	configs, _ := meta.Assemble()
	require.Len(t, configs, 1)

	transformations := configs[0].Transformations
	require.Len(t, transformations, 3)
	for i, tr := range transformations {
		// Every generated row inherits the referencing entry's identity.
		assert.Equal(t, "orders_raw", tr.Origin)
		assert.Equal(t, "orders_clean", tr.Target)
		require.NotNil(t, tr.ColumnOrder)
		assert.Equal(t, i+1, *tr.ColumnOrder)
		assert.Empty(t, tr.SQLQuery)
	}

	require.Len(t, transformations[0].Validations, 1)
	assert.Equal(t, "order_id IS NOT NULL", transformations[0].Validations[0].Rule)
	assert.Equal(t, "DROP", transformations[0].Validations[0].Action)
	assert.Empty(t, transformations[1].Validations)
}

func TestAssembleIsolatesFailures(t *testing.T) {
	meta, err := New(buildConfigTree(t))
	require.NoError(t, err)

	configs, diagnostics := meta.Assemble()
	require.Len(t, configs, 1)
	require.Len(t, diagnostics, 1)
	assert.Contains(t, diagnostics[0].Error(), "sales.broken")
	assert.Contains(t, diagnostics[0].Error(), "upsert requires")
}

func TestAssembleIsIdempotent(t *testing.T) {
	meta, err := New(buildConfigTree(t))
	require.NoError(t, err)

	first, firstDiags := meta.Assemble()
	second, secondDiags := meta.Assemble()

	assert.Equal(t, first, second)
	assert.Len(t, secondDiags, len(firstDiags))
}

func TestAssembleSkipsStrayFiles(t *testing.T) {
	root := buildConfigTree(t)
	orders := filepath.Join(root, "pipelines", "sales", "orders")
	writeFile(t, orders, "notes.txt", "not a fragment")
	writeFile(t, orders, "half-written.json", `{"sources": [`)

	meta, err := New(root)
	require.NoError(t, err)

	configs, diagnostics := meta.Assemble()
	require.Len(t, configs, 1)
	require.Len(t, diagnostics, 1)
}

func TestAssembleEmptyTree(t *testing.T) {
	meta, err := New(t.TempDir())
	require.NoError(t, err)

	configs, diagnostics := meta.Assemble()
	assert.Empty(t, configs)
	assert.Empty(t, diagnostics)
}

func TestParseColumnOrder(t *testing.T) {
	order, ok := parseColumnOrder("12")
	assert.True(t, ok)
	assert.Equal(t, 12, order)

	_, ok = parseColumnOrder("")
	assert.False(t, ok)
	_, ok = parseColumnOrder("-1")
	assert.False(t, ok)
	_, ok = parseColumnOrder("1.5")
	assert.False(t, ok)
	_, ok = parseColumnOrder("abc")
	assert.False(t, ok)
}

func TestGroupMergesByIdentity(t *testing.T) {
	meta := &Metadata{ScalarMerge: LastWriteWins}

	candidates := meta.group([]map[string]interface{}{
		{
			"target_schema_name": "sales",
			"pipeline_name":      "orders",
			"sources":            []interface{}{"s1"},
		},
		{
			"target_schema_name": "sales",
			"pipeline_name":      "orders",
			"sources":            []interface{}{"s2"},
			"destinations":       []interface{}{"d1"},
		},
		{
			"target_schema_name": "hr",
			"pipeline_name":      "people",
			"sources":            []interface{}{"s3"},
		},
	})

	require.Len(t, candidates, 2)
	// Candidates come out ordered by (schema, pipeline) key.
	assert.Equal(t, "hr", candidates[0]["target_schema_name"])
	assert.Equal(t, "sales", candidates[1]["target_schema_name"])
	assert.Equal(t, []interface{}{"s1", "s2"}, candidates[1]["sources"])
	assert.Equal(t, []interface{}{"d1"}, candidates[1]["destinations"])
}

func TestGroupScalarLastWriteWins(t *testing.T) {
	meta := &Metadata{ScalarMerge: LastWriteWins}

	candidates := meta.group([]map[string]interface{}{
		{"target_schema_name": "s", "pipeline_name": "p", "owner": "alice", "sources": []interface{}{"s1"}},
		{"target_schema_name": "s", "pipeline_name": "p", "owner": "bob"},
	})

	require.Len(t, candidates, 1)
	assert.Equal(t, "bob", candidates[0]["owner"])
}
