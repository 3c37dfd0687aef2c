// Package metadata assembles validated pipeline configurations from a
// tree of on-disk fragment files. One run discovers every fragment under
// <config-dir>/pipelines, loads and stamps each file concurrently,
// enriches the per-stage entries, merges fragments belonging to the same
// logical pipeline, and validates each merged candidate.
package metadata

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/GeorgelPreput/pushcart-deploy/pkg/logger"
	"github.com/GeorgelPreput/pushcart-deploy/pkg/schema"
)

var supportedExtensions = map[string]bool{
	".json": true,
	".toml": true,
	".yaml": true,
	".yml":  true,
}

// ScalarMergeFunc resolves a scalar field contributed by more than one
// fragment of the same logical pipeline.
type ScalarMergeFunc func(key string, old, new interface{}) interface{}

// LastWriteWins is the default scalar merge policy. Fragment ordering is
// not an external contract, so pipelines should not rely on scalar
// collisions across fragments in the first place.
func LastWriteWins(key string, old, new interface{}) interface{} {
	return new
}

// Metadata assembles pipeline configurations from the fragment files
// under ConfigDir.
type Metadata struct {
	ConfigDir   string
	ScalarMerge ScalarMergeFunc
}

// New returns a Metadata rooted at configDir, which must be an existing
// directory.
func New(configDir string) (*Metadata, error) {
	info, err := os.Stat(configDir)
	if err != nil {
		return nil, fmt.Errorf("config directory %q: %w", configDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("config directory %q is not a directory", configDir)
	}
	return &Metadata{ConfigDir: configDir, ScalarMerge: LastWriteWins}, nil
}

// Assemble runs one full assembly pass: discover, load, enrich, merge,
// validate. Valid pipelines are returned alongside the validation
// diagnostics of the ones that failed; a broken pipeline never aborts the
// rest of the run.
func (m *Metadata) Assemble() ([]*schema.Configuration, []error) {
	configs := m.collect()
	enrichConfigs(configs)
	candidates := m.group(configs)

	var validated []*schema.Configuration
	var diagnostics []error

	for _, candidate := range candidates {
		cfg, err := schema.Validate(candidate)
		if err != nil {
			logger.Errorf("Pipeline failed validation: %v", err)
			diagnostics = append(diagnostics, err)
			continue
		}
		validated = append(validated, cfg)
	}

	logger.Infof("Assembled %d pipeline(s), %d failed validation", len(validated), len(diagnostics))
	return validated, diagnostics
}

// discover walks <ConfigDir>/pipelines for fragment files with a
// supported extension. The returned order is sorted so that repeated runs
// over an unchanged tree merge identically.
func (m *Metadata) discover() []string {
	root := filepath.Join(m.ConfigDir, "pipelines")

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && supportedExtensions[filepath.Ext(path)] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		logger.Warnf("Could not scan %s: %v", root, err)
	}

	sort.Strings(files)
	return files
}

// collect loads every discovered fragment concurrently, one task per
// file. Tasks share no state: each writes a complete map, or nil, into
// its own result slot, and the fan-in waits for all of them.
func (m *Metadata) collect() []map[string]interface{} {
	files := m.discover()
	results := make([]map[string]interface{}, len(files))

	var wg sync.WaitGroup
	for i, path := range files {
		wg.Add(1)
		go func(slot int, path string) {
			defer wg.Done()
			results[slot] = loadWithIdentity(path)
		}(i, path)
	}
	wg.Wait()

	configs := make([]map[string]interface{}, 0, len(results))
	for _, config := range results {
		if config != nil {
			configs = append(configs, config)
		}
	}
	return configs
}

// loadWithIdentity loads one fragment and stamps it with the identity its
// path encodes: the parent directory is the pipeline name, the
// grandparent the target schema name. Relative column-metadata CSV
// references are resolved against the fragment's own directory.
func loadWithIdentity(path string) map[string]interface{} {
	config := LoadFile(path)
	if config == nil {
		return nil
	}

	dir := filepath.Dir(path)
	config["pipeline_name"] = filepath.Base(dir)
	config["target_schema_name"] = filepath.Base(filepath.Dir(dir))

	if transformations, ok := config["transformations"].([]interface{}); ok {
		for _, entry := range transformations {
			t, isMap := entry.(map[string]interface{})
			if !isMap {
				continue
			}
			csvPath, isStr := t["config"].(string)
			if !isStr || csvPath == "" {
				continue
			}
			if _, err := os.Stat(csvPath); err != nil {
				resolved, absErr := filepath.Abs(filepath.Join(dir, csvPath))
				if absErr == nil {
					t["config"] = resolved
				}
			}
		}
	}
	return config
}

func enrichConfigs(configs []map[string]interface{}) {
	for _, config := range configs {
		if sources, ok := config["sources"].([]interface{}); ok {
			enrichSources(sources)
		}
		if transformations, ok := config["transformations"].([]interface{}); ok {
			config["transformations"] = enrichTransformations(transformations)
		}
	}
}

// enrichSources JSON-encodes structured reader params into the string
// form the schema expects.
func enrichSources(sources []interface{}) {
	for _, entry := range sources {
		source, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if params, isMap := source["params"].(map[string]interface{}); isMap {
			encoded, err := json.Marshal(params)
			if err != nil {
				logger.Warnf("Could not encode source params: %v", err)
				continue
			}
			source["params"] = string(encoded)
		}
	}
}

// enrichTransformations fans out every column-metadata CSV reference into
// one transformation entry per CSV row. The referencing entry is replaced
// by its rows; entries without a CSV reference pass through unchanged.
func enrichTransformations(transformations []interface{}) []interface{} {
	enriched := make([]interface{}, 0, len(transformations))
	for _, entry := range transformations {
		t, isMap := entry.(map[string]interface{})
		if !isMap {
			enriched = append(enriched, entry)
			continue
		}
		csvPath, isStr := t["config"].(string)
		if !isStr || csvPath == "" {
			enriched = append(enriched, entry)
			continue
		}

		rows, err := expandColumnCSV(csvPath, t)
		if err != nil {
			logger.Warnf("Skipping transformation config %s: %v", csvPath, err)
			continue
		}
		enriched = append(enriched, rows...)
	}
	return enriched
}

// expandColumnCSV turns the rows of one column-metadata file into
// transformation entries inheriting the referencing entry's origin and
// target identity.
func expandColumnCSV(path string, ref map[string]interface{}) ([]interface{}, error) {
	reader, err := OpenColumnCSV(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var rows []interface{}
	for reader.Next() {
		row := reader.Row()

		entry := make(map[string]interface{}, len(row)+3)
		for column, value := range row {
			entry[column] = value
		}

		if order, ok := parseColumnOrder(row["column_order"]); ok {
			entry["column_order"] = order
		} else {
			entry["column_order"] = nil
		}
		entry["origin"] = ref["origin"]
		entry["target"] = ref["target"]

		rule := row["validation_rule"]
		action := row["validation_action"]
		delete(entry, "validation_rule")
		delete(entry, "validation_action")
		if rule != "" && action != "" {
			entry["validations"] = []interface{}{
				map[string]interface{}{
					"validation_rule":   rule,
					"validation_action": action,
				},
			}
		}

		rows = append(rows, entry)
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// parseColumnOrder parses a CSV cell as a column order, accepting only
// plain unsigned digit strings.
func parseColumnOrder(cell string) (int, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	order := 0
	for _, r := range cell {
		if r < '0' || r > '9' {
			return 0, false
		}
		order = order*10 + int(r-'0')
	}
	return order, true
}

// pipelineKey identifies one logical pipeline.
type pipelineKey struct {
	Schema   string
	Pipeline string
}

// pipelineBuilder is the typed accumulator for one logical pipeline:
// stage lists append across fragments, every other field follows the
// scalar merge policy.
type pipelineBuilder struct {
	clusters        []interface{}
	sources         []interface{}
	transformations []interface{}
	destinations    []interface{}
	scalars         map[string]interface{}
}

func (b *pipelineBuilder) merge(config map[string]interface{}, scalarMerge ScalarMergeFunc) {
	for key, value := range config {
		switch key {
		case "clusters":
			b.clusters = appendStage(b.clusters, value)
		case "sources":
			b.sources = appendStage(b.sources, value)
		case "transformations":
			b.transformations = appendStage(b.transformations, value)
		case "destinations":
			b.destinations = appendStage(b.destinations, value)
		case "pipeline_name", "target_schema_name":
			// Carried by the group key.
		default:
			if old, exists := b.scalars[key]; exists {
				b.scalars[key] = scalarMerge(key, old, value)
			} else {
				b.scalars[key] = value
			}
		}
	}
}

func appendStage(stage []interface{}, value interface{}) []interface{} {
	if list, ok := value.([]interface{}); ok {
		return append(stage, list...)
	}
	return append(stage, value)
}

func (b *pipelineBuilder) candidate(key pipelineKey) map[string]interface{} {
	candidate := make(map[string]interface{}, len(b.scalars)+6)
	for k, v := range b.scalars {
		candidate[k] = v
	}
	candidate["target_schema_name"] = key.Schema
	candidate["pipeline_name"] = key.Pipeline
	if b.clusters != nil {
		candidate["clusters"] = b.clusters
	}
	if b.sources != nil {
		candidate["sources"] = b.sources
	}
	if b.transformations != nil {
		candidate["transformations"] = b.transformations
	}
	if b.destinations != nil {
		candidate["destinations"] = b.destinations
	}
	return candidate
}

// group merges all enriched fragments by (target schema, pipeline) into
// one candidate map per logical pipeline, ordered by key so that output
// does not depend on discovery order.
func (m *Metadata) group(configs []map[string]interface{}) []map[string]interface{} {
	scalarMerge := m.ScalarMerge
	if scalarMerge == nil {
		scalarMerge = LastWriteWins
	}

	builders := make(map[pipelineKey]*pipelineBuilder)
	for _, config := range configs {
		schemaName, _ := config["target_schema_name"].(string)
		pipelineName, _ := config["pipeline_name"].(string)
		key := pipelineKey{Schema: schemaName, Pipeline: pipelineName}

		builder := builders[key]
		if builder == nil {
			builder = &pipelineBuilder{scalars: make(map[string]interface{})}
			builders[key] = builder
		}
		builder.merge(config, scalarMerge)
	}

	keys := make([]pipelineKey, 0, len(builders))
	for key := range builders {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Schema != keys[j].Schema {
			return keys[i].Schema < keys[j].Schema
		}
		return keys[i].Pipeline < keys[j].Pipeline
	})

	candidates := make([]map[string]interface{}, 0, len(keys))
	for _, key := range keys {
		candidates = append(candidates, builders[key].candidate(key))
	}
	return candidates
}
