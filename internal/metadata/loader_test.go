package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", `{"sources": [{"origin": "o", "datatype": "csv", "target": "t"}]}`)

	config := LoadFile(path)
	require.NotNil(t, config)
	sources, ok := config["sources"].([]interface{})
	require.True(t, ok)
	assert.Len(t, sources, 1)
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "sources:\n  - origin: o\n    datatype: csv\n    target: t\n")

	config := LoadFile(path)
	require.NotNil(t, config)
	assert.Contains(t, config, "sources")
}

func TestLoadFileYML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yml", "destinations:\n  - origin: v\n    target: t\n    mode: append\n")

	config := LoadFile(path)
	require.NotNil(t, config)
	assert.Contains(t, config, "destinations")
}

func TestLoadFileTOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.toml", "[[destinations]]\norigin = \"v\"\ntarget = \"t\"\nmode = \"append\"\n")

	config := LoadFile(path)
	require.NotNil(t, config)
	assert.Contains(t, config, "destinations")
}

func TestLoadFileMissing(t *testing.T) {
	assert.Nil(t, LoadFile(filepath.Join(t.TempDir(), "nope.json")))
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.ini", "[section]\nkey = value\n")
	assert.Nil(t, LoadFile(path))
}

func TestLoadFileMalformed(t *testing.T) {
	dir := t.TempDir()

	assert.Nil(t, LoadFile(writeFile(t, dir, "bad.json", `{"sources": [`)))
	assert.Nil(t, LoadFile(writeFile(t, dir, "bad.yaml", "sources: [unclosed\n  - broken")))
	assert.Nil(t, LoadFile(writeFile(t, dir, "bad.toml", "destinations = [{origin =")))
}

func TestLoadFileNonObjectContent(t *testing.T) {
	// A fragment must be a map at the top level.
	path := writeFile(t, t.TempDir(), "list.json", `[1, 2, 3]`)
	assert.Nil(t, LoadFile(path))
}
