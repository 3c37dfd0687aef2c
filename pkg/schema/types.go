// Package schema defines the pipeline configuration entities and the
// validator that turns a merged candidate map into an immutable
// Configuration. Validation happens entirely at construction time: a
// Configuration returned by Validate is never mutated afterwards.
package schema

// Validation pairs a data quality rule with the action to take when the
// rule fails. Actions are normalized to upper case during validation.
type Validation struct {
	Rule   string `json:"validation_rule"`
	Action string `json:"validation_action"`
}

// ClusterAutoscale configures worker autoscaling for a cluster.
type ClusterAutoscale struct {
	MinWorkers int    `json:"min_workers"`
	MaxWorkers int    `json:"max_workers"`
	Mode       string `json:"mode"`
}

// Cluster is the execution cluster specification for a pipeline. Exactly
// one of NumWorkers or Autoscale must be set.
type Cluster struct {
	Label                string                       `json:"label"`
	NodeTypeID           string                       `json:"node_type_id"`
	SparkConf            map[string]string            `json:"spark_conf,omitempty"`
	AwsAttributes        map[string]string            `json:"aws_attributes,omitempty"`
	DriverNodeTypeID     string                       `json:"driver_node_type_id,omitempty"`
	SSHPublicKeys        []string                     `json:"ssh_public_keys,omitempty"`
	CustomTags           map[string]string            `json:"custom_tags,omitempty"`
	ClusterLogConf       map[string]map[string]string `json:"cluster_log_conf,omitempty"`
	SparkEnvVars         map[string]string            `json:"spark_env_vars,omitempty"`
	InitScripts          []interface{}                `json:"init_scripts,omitempty"`
	InstancePoolID       string                       `json:"instance_pool_id,omitempty"`
	DriverInstancePoolID string                       `json:"driver_instance_pool_id,omitempty"`
	PolicyID             string                       `json:"policy_id,omitempty"`
	NumWorkers           *int                         `json:"num_workers,omitempty"`
	Autoscale            *ClusterAutoscale            `json:"autoscale,omitempty"`
}

// Source describes where a pipeline reads data from and the view it lands
// in. Params holds reader options as a JSON-encoded string.
type Source struct {
	Origin      string       `json:"origin"`
	Datatype    string       `json:"datatype"`
	Target      string       `json:"target"`
	Params      string       `json:"params,omitempty"`
	Validations []Validation `json:"validations,omitempty"`
}

// Transformation is one transformation step. It is either column metadata
// (ColumnOrder plus the optional column fields) or a SQL query, never
// both and never neither.
type Transformation struct {
	Origin            string       `json:"origin"`
	Target            string       `json:"target"`
	ColumnOrder       *int         `json:"column_order,omitempty"`
	SourceColumnName  string       `json:"source_column_name,omitempty"`
	SourceColumnType  string       `json:"source_column_type,omitempty"`
	DestColumnName    string       `json:"dest_column_name,omitempty"`
	DestColumnType    string       `json:"dest_column_type,omitempty"`
	TransformFunction string       `json:"transform_function,omitempty"`
	SQLQuery          string       `json:"sql_query,omitempty"`
	DefaultValue      string       `json:"default_value,omitempty"`
	Validations       []Validation `json:"validations,omitempty"`
}

// Destination describes a table the pipeline writes to. Upsert mode
// requires Keys and SequenceBy.
type Destination struct {
	Origin      string       `json:"origin"`
	Target      string       `json:"target"`
	Mode        string       `json:"mode"`
	Path        string       `json:"path,omitempty"`
	Keys        []string     `json:"keys,omitempty"`
	SequenceBy  string       `json:"sequence_by,omitempty"`
	Validations []Validation `json:"validations,omitempty"`
}

// Configuration is the root aggregate for one logical pipeline, assembled
// from possibly many fragment files and carrying the identity derived
// from the fragment paths.
type Configuration struct {
	TargetSchemaName string           `json:"target_schema_name"`
	PipelineName     string           `json:"pipeline_name"`
	Clusters         []Cluster        `json:"clusters,omitempty"`
	Sources          []Source         `json:"sources,omitempty"`
	Transformations  []Transformation `json:"transformations,omitempty"`
	Destinations     []Destination    `json:"destinations,omitempty"`
}
