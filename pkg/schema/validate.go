package schema

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	actionPattern        = regexp.MustCompile(`^(LOG|DROP|FAIL)$`)
	autoscaleModePattern = regexp.MustCompile(`^(ENHANCED|LEGACY)$`)
	clusterLabelPattern  = regexp.MustCompile(`^(default|maintenance)$`)
	destModePattern      = regexp.MustCompile(`^(append|upsert)$`)
	columnTypePattern    = regexp.MustCompile(`^(string|int|double|date|timestamp|boolean|struct|array|map)$`)
)

// fieldRule is one row of the per-field constraint table. Field-level
// rules run before any cross-field invariant, and an entity's cross-field
// invariants run only when all of its fields passed.
type fieldRule struct {
	required bool
	minLen   int
	pattern  *regexp.Regexp
	toUpper  bool
	toLower  bool
}

type validator struct {
	pipeline string
	errs     Errors
}

func (v *validator) errorf(field, format string, args ...interface{}) {
	v.errs.add(v.pipeline, field, format, args...)
}

// stringField reads and normalizes one string field according to its
// constraint rule, recording any violation.
func (v *validator) stringField(m map[string]interface{}, at, name string, r fieldRule) string {
	field := at + "." + name
	if !present(m, name) {
		if r.required {
			v.errorf(field, "field required")
		}
		return ""
	}
	s, ok := asString(m[name])
	if !ok {
		v.errorf(field, "expected a string, got %T", m[name])
		return ""
	}
	if r.toUpper {
		s = strings.ToUpper(s)
	}
	if r.toLower {
		s = strings.ToLower(s)
	}
	if len(s) < r.minLen {
		v.errorf(field, "must not be empty")
		return s
	}
	if r.pattern != nil && !r.pattern.MatchString(s) {
		v.errorf(field, "value %q does not match %s", s, r.pattern)
	}
	return s
}

func (v *validator) intField(m map[string]interface{}, at, name string, required bool, min int) (int, bool) {
	field := at + "." + name
	if !present(m, name) {
		if required {
			v.errorf(field, "field required")
		}
		return 0, false
	}
	n, ok := asInt(m[name])
	if !ok {
		v.errorf(field, "expected an integer, got %v", m[name])
		return 0, false
	}
	if n < min {
		v.errorf(field, "must be at least %d, got %d", min, n)
		return n, false
	}
	return n, true
}

func (v *validator) stringMapField(m map[string]interface{}, at, name string) map[string]string {
	if !present(m, name) {
		return nil
	}
	out, ok := asStringMap(m[name])
	if !ok {
		v.errorf(at+"."+name, "expected a map, got %T", m[name])
		return nil
	}
	return out
}

func (v *validator) parseValidation(m map[string]interface{}, at string) Validation {
	return Validation{
		Rule:   v.stringField(m, at, "validation_rule", fieldRule{required: true, minLen: 1}),
		Action: v.stringField(m, at, "validation_action", fieldRule{required: true, minLen: 1, toUpper: true, pattern: actionPattern}),
	}
}

func (v *validator) parseValidations(m map[string]interface{}, at string) []Validation {
	if !present(m, "validations") {
		return nil
	}
	list, ok := asList(m["validations"])
	if !ok {
		v.errorf(at+".validations", "expected a list, got %T", m["validations"])
		return nil
	}
	out := make([]Validation, 0, len(list))
	before := len(v.errs)
	for i, entry := range list {
		entryAt := fmt.Sprintf("%s.validations[%d]", at, i)
		em, isMap := asMap(entry)
		if !isMap {
			v.errorf(entryAt, "expected a map, got %T", entry)
			continue
		}
		out = append(out, v.parseValidation(em, entryAt))
	}
	if len(v.errs) == before {
		v.checkConflictingActions(out, at)
	}
	return out
}

// checkConflictingActions rejects validation lists where one rule maps to
// more than one distinct action. Listing the same rule with the same
// action twice is allowed.
func (v *validator) checkConflictingActions(validations []Validation, at string) {
	actions := make(map[string]map[string]bool)
	for _, val := range validations {
		rule := strings.TrimSpace(val.Rule)
		if actions[rule] == nil {
			actions[rule] = make(map[string]bool)
		}
		actions[rule][val.Action] = true
	}
	rules := make([]string, 0, len(actions))
	for rule, set := range actions {
		if len(set) > 1 {
			rules = append(rules, rule)
		}
	}
	sort.Strings(rules)
	for _, rule := range rules {
		v.errorf(at+".validations", "different actions for the same validation rule %q", rule)
	}
}

func (v *validator) parseAutoscale(m map[string]interface{}, at string) *ClusterAutoscale {
	a := &ClusterAutoscale{Mode: v.stringField(m, at, "mode", fieldRule{required: true, minLen: 1, toUpper: true, pattern: autoscaleModePattern})}
	a.MinWorkers, _ = v.intField(m, at, "min_workers", true, 0)
	a.MaxWorkers, _ = v.intField(m, at, "max_workers", true, 0)
	return a
}

func (v *validator) parseCluster(m map[string]interface{}, at string) Cluster {
	before := len(v.errs)
	c := Cluster{
		Label:                v.stringField(m, at, "label", fieldRule{required: true, minLen: 1, toLower: true, pattern: clusterLabelPattern}),
		NodeTypeID:           v.stringField(m, at, "node_type_id", fieldRule{required: true, minLen: 1}),
		DriverNodeTypeID:     v.stringField(m, at, "driver_node_type_id", fieldRule{minLen: 1}),
		InstancePoolID:       v.stringField(m, at, "instance_pool_id", fieldRule{minLen: 1}),
		DriverInstancePoolID: v.stringField(m, at, "driver_instance_pool_id", fieldRule{minLen: 1}),
		PolicyID:             v.stringField(m, at, "policy_id", fieldRule{minLen: 1}),
		SparkConf:            v.stringMapField(m, at, "spark_conf"),
		AwsAttributes:        v.stringMapField(m, at, "aws_attributes"),
		CustomTags:           v.stringMapField(m, at, "custom_tags"),
		SparkEnvVars:         v.stringMapField(m, at, "spark_env_vars"),
	}
	if present(m, "ssh_public_keys") {
		keys, ok := asStringSlice(m["ssh_public_keys"])
		if !ok {
			v.errorf(at+".ssh_public_keys", "expected a list of strings")
		}
		c.SSHPublicKeys = keys
	}
	if present(m, "cluster_log_conf") {
		conf, ok := asMap(m["cluster_log_conf"])
		if !ok {
			v.errorf(at+".cluster_log_conf", "expected a map, got %T", m["cluster_log_conf"])
		} else {
			c.ClusterLogConf = make(map[string]map[string]string, len(conf))
			for k, val := range conf {
				inner, innerOK := asStringMap(val)
				if !innerOK {
					v.errorf(at+".cluster_log_conf."+k, "expected a map, got %T", val)
					continue
				}
				c.ClusterLogConf[k] = inner
			}
		}
	}
	if present(m, "init_scripts") {
		scripts, ok := asList(m["init_scripts"])
		if !ok {
			v.errorf(at+".init_scripts", "expected a list, got %T", m["init_scripts"])
		}
		c.InitScripts = scripts
	}
	if n, ok := v.intField(m, at, "num_workers", false, 0); ok && n > 0 {
		c.NumWorkers = &n
	}
	if present(m, "autoscale") {
		am, ok := asMap(m["autoscale"])
		if !ok {
			v.errorf(at+".autoscale", "expected a map, got %T", m["autoscale"])
		} else {
			c.Autoscale = v.parseAutoscale(am, at+".autoscale")
		}
	}
	if len(v.errs) == before {
		v.checkWorkersOrAutoscale(&c, at)
	}
	return c
}

// checkWorkersOrAutoscale enforces that exactly one sizing strategy is
// defined. A num_workers of zero counts as undefined.
func (v *validator) checkWorkersOrAutoscale(c *Cluster, at string) {
	hasWorkers := c.NumWorkers != nil && *c.NumWorkers > 0
	hasAutoscale := c.Autoscale != nil
	if !hasWorkers && !hasAutoscale {
		v.errorf(at, "no cluster sizing defined, provide either autoscale or num_workers")
	}
	if hasWorkers && hasAutoscale {
		v.errorf(at, "only one of autoscale or num_workers allowed")
	}
}

func (v *validator) parseSource(m map[string]interface{}, at string) Source {
	s := Source{
		Origin:   v.stringField(m, at, "origin", fieldRule{required: true, minLen: 1}),
		Datatype: v.stringField(m, at, "datatype", fieldRule{required: true, minLen: 1}),
		Target:   v.stringField(m, at, "target", fieldRule{required: true, minLen: 1}),
		Params:   v.stringField(m, at, "params", fieldRule{}),
	}
	s.Validations = v.parseValidations(m, at)
	return s
}

func (v *validator) parseTransformation(m map[string]interface{}, at string) Transformation {
	before := len(v.errs)
	t := Transformation{
		Origin:            v.stringField(m, at, "origin", fieldRule{required: true, minLen: 1}),
		Target:            v.stringField(m, at, "target", fieldRule{required: true, minLen: 1}),
		SourceColumnName:  v.stringField(m, at, "source_column_name", fieldRule{}),
		SourceColumnType:  v.stringField(m, at, "source_column_type", fieldRule{pattern: columnTypePattern}),
		DestColumnName:    v.stringField(m, at, "dest_column_name", fieldRule{}),
		DestColumnType:    v.stringField(m, at, "dest_column_type", fieldRule{pattern: columnTypePattern}),
		TransformFunction: v.stringField(m, at, "transform_function", fieldRule{}),
		SQLQuery:          v.stringField(m, at, "sql_query", fieldRule{minLen: 1}),
		DefaultValue:      v.stringField(m, at, "default_value", fieldRule{}),
	}
	if n, ok := v.intField(m, at, "column_order", false, 1); ok {
		t.ColumnOrder = &n
	}
	t.Validations = v.parseValidations(m, at)
	if len(v.errs) == before {
		v.checkColumnOrderOrQuery(&t, at)
	}
	return t
}

// checkColumnOrderOrQuery enforces that a transformation is either column
// metadata or a SQL query, exactly one of the two.
func (v *validator) checkColumnOrderOrQuery(t *Transformation, at string) {
	hasOrder := t.ColumnOrder != nil
	hasQuery := t.SQLQuery != ""
	if !hasOrder && !hasQuery {
		v.errorf(at, "no transformation defined, provide either column metadata or a sql_query")
	}
	if hasOrder && hasQuery {
		v.errorf(at, "only one of column metadata or sql_query allowed")
	}
}

func (v *validator) parseDestination(m map[string]interface{}, at string) Destination {
	before := len(v.errs)
	d := Destination{
		Origin:     v.stringField(m, at, "origin", fieldRule{required: true, minLen: 1}),
		Target:     v.stringField(m, at, "target", fieldRule{required: true, minLen: 1}),
		Mode:       v.stringField(m, at, "mode", fieldRule{required: true, minLen: 1, pattern: destModePattern}),
		SequenceBy: v.stringField(m, at, "sequence_by", fieldRule{minLen: 1}),
	}
	if path := v.stringField(m, at, "path", fieldRule{minLen: 1}); path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			v.errorf(at+".path", "cannot resolve path %q: %v", path, err)
		} else {
			d.Path = filepath.ToSlash(abs)
		}
	}
	if present(m, "keys") {
		keys, ok := asStringSlice(m["keys"])
		if !ok {
			v.errorf(at+".keys", "expected a list of strings")
		}
		for i, k := range keys {
			if k == "" {
				v.errorf(fmt.Sprintf("%s.keys[%d]", at, i), "must not be empty")
			}
		}
		d.Keys = keys
	}
	d.Validations = v.parseValidations(m, at)
	if len(v.errs) == before {
		v.checkUpsertKeys(&d, at)
	}
	return d
}

// checkUpsertKeys enforces the conditional requirement that upsert mode
// names its merge keys and sequencing column.
func (v *validator) checkUpsertKeys(d *Destination, at string) {
	if d.Mode == "upsert" && (len(d.Keys) == 0 || d.SequenceBy == "") {
		v.errorf(at, "mode upsert requires that keys and sequence_by are defined")
	}
}

// Validate turns a merged candidate map into a Configuration, or reports
// every violation found. Field-level constraints run first, then
// per-entity cross-field invariants, then the aggregate checks across the
// whole configuration. A candidate with any failure yields no
// Configuration at all.
func Validate(raw map[string]interface{}) (*Configuration, error) {
	cfg := &Configuration{}
	cfg.TargetSchemaName, _ = asString(raw["target_schema_name"])
	cfg.PipelineName, _ = asString(raw["pipeline_name"])

	v := &validator{pipeline: pipelineLabel(cfg.TargetSchemaName, cfg.PipelineName)}

	if present(raw, "clusters") {
		clusters, ok := asList(raw["clusters"])
		if !ok {
			v.errorf("clusters", "expected a list, got %T", raw["clusters"])
		} else {
			if len(clusters) > 1 {
				v.errorf("clusters", "at most one cluster allowed, got %d", len(clusters))
			}
			for i, entry := range clusters {
				at := fmt.Sprintf("clusters[%d]", i)
				cm, isMap := asMap(entry)
				if !isMap {
					v.errorf(at, "expected a map, got %T", entry)
					continue
				}
				cfg.Clusters = append(cfg.Clusters, v.parseCluster(cm, at))
			}
		}
	}

	forEachEntry(v, raw, "sources", func(m map[string]interface{}, at string) {
		cfg.Sources = append(cfg.Sources, v.parseSource(m, at))
	})
	forEachEntry(v, raw, "transformations", func(m map[string]interface{}, at string) {
		cfg.Transformations = append(cfg.Transformations, v.parseTransformation(m, at))
	})
	forEachEntry(v, raw, "destinations", func(m map[string]interface{}, at string) {
		cfg.Destinations = append(cfg.Destinations, v.parseDestination(m, at))
	})

	v.checkAtLeastOneStage(raw)
	v.checkUniqueTargets(cfg)

	if len(v.errs) > 0 {
		return nil, v.errs
	}
	return cfg, nil
}

func forEachEntry(v *validator, raw map[string]interface{}, stage string, parse func(map[string]interface{}, string)) {
	if !present(raw, stage) {
		return
	}
	list, ok := asList(raw[stage])
	if !ok {
		v.errorf(stage, "expected a list, got %T", raw[stage])
		return
	}
	for i, entry := range list {
		at := fmt.Sprintf("%s[%d]", stage, i)
		m, isMap := asMap(entry)
		if !isMap {
			v.errorf(at, "expected a map, got %T", entry)
			continue
		}
		parse(m, at)
	}
}

// checkAtLeastOneStage requires some deployable content: at least one of
// the stage lists must be non-empty. A fragment set defining only
// clusters is not a pipeline.
func (v *validator) checkAtLeastOneStage(raw map[string]interface{}) {
	for _, stage := range []string{"sources", "transformations", "destinations"} {
		if list, ok := asList(raw[stage]); ok && len(list) > 0 {
			return
		}
	}
	v.errorf("", "no stage definition found, define at least one of: sources, transformations, destinations")
}

// checkUniqueTargets enforces target uniqueness across sources, SQL-query
// transformations and destinations taken together. Column-metadata
// transformations address columns of a shared target and are excluded.
func (v *validator) checkUniqueTargets(cfg *Configuration) {
	counts := make(map[string]int)
	for _, s := range cfg.Sources {
		counts[s.Target]++
	}
	for _, t := range cfg.Transformations {
		if t.SQLQuery != "" {
			counts[t.Target]++
		}
	}
	for _, d := range cfg.Destinations {
		counts[d.Target]++
	}
	var duplicates []string
	for target, n := range counts {
		if target != "" && n > 1 {
			duplicates = append(duplicates, target)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		v.errorf("targets", "duplicate target values found: %s", strings.Join(duplicates, ", "))
	}
}

func pipelineLabel(schema, pipeline string) string {
	if schema == "" && pipeline == "" {
		return ""
	}
	return schema + "." + pipeline
}
