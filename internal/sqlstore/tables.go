package sqlstore

import "fmt"

// TableConfig configures the table names used by a Store, mirroring the
// teacher's TableConfig for its two-table schema, extended to our
// column families.
type TableConfig struct {
	Namespaces     string
	Graphs         string
	Content        string
	Tasks          string
	Executors      string
	StateChanges   string
	SchedulerState string
	StreamOffsets  string
}

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		Namespaces:     "coordinator_namespaces",
		Graphs:         "coordinator_graphs",
		Content:        "coordinator_content",
		Tasks:          "coordinator_tasks",
		Executors:      "coordinator_executors",
		StateChanges:   "coordinator_state_changes",
		SchedulerState: "coordinator_scheduler_state",
		StreamOffsets:  "coordinator_stream_offsets",
	}
}

// MigrationUp returns the SQL to create every coordinator table under
// the given dialect and table names.
func MigrationUp(d Dialect, c TableConfig) string {
	return fmt.Sprintf(`-- namespaces
CREATE TABLE %[1]s (
    name TEXT PRIMARY KEY,
    created_at %[9]s NOT NULL
);

-- extraction graphs, namespaced and versionless
CREATE TABLE %[2]s (
    namespace TEXT NOT NULL REFERENCES %[1]s(name),
    name TEXT NOT NULL,
    nodes_json TEXT NOT NULL,
    edges_json TEXT NOT NULL,
    start_fn TEXT NOT NULL,
    code_path TEXT NOT NULL,
    code_size BIGINT NOT NULL,
    code_sha256 TEXT NOT NULL,
    created_at %[9]s NOT NULL,
    tombstoned %[10]s NOT NULL DEFAULT false,
    PRIMARY KEY (namespace, name)
);

-- content forest: ingested roots and task-produced items
CREATE TABLE %[3]s (
    id TEXT PRIMARY KEY,
    namespace TEXT NOT NULL,
    graph_name TEXT NOT NULL,
    parent_id TEXT NOT NULL DEFAULT '',
    root_id TEXT NOT NULL,
    storage_url TEXT NOT NULL,
    size BIGINT NOT NULL,
    sha256 TEXT NOT NULL,
    mime TEXT NOT NULL,
    labels_json TEXT NOT NULL,
    created_at %[9]s NOT NULL,
    source_fn TEXT NOT NULL
);
CREATE INDEX idx_%[3]s_parent ON %[3]s(namespace, parent_id);

-- tasks: one row per (compute fn, input content) execution attempt
CREATE TABLE %[4]s (
    id TEXT PRIMARY KEY,
    namespace TEXT NOT NULL,
    graph_name TEXT NOT NULL,
    compute_fn_name TEXT NOT NULL,
    input_content_id TEXT NOT NULL,
    created_at %[9]s NOT NULL,
    outcome TEXT NOT NULL DEFAULT 'unknown',
    assigned_executor TEXT NOT NULL DEFAULT '',
    attempt INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX idx_%[4]s_unassigned ON %[4]s(namespace, outcome, assigned_executor);
CREATE INDEX idx_%[4]s_executor ON %[4]s(assigned_executor);
CREATE INDEX idx_%[4]s_graph ON %[4]s(namespace, graph_name);

-- registered executors
CREATE TABLE %[5]s (
    id TEXT PRIMARY KEY,
    runner_name TEXT NOT NULL,
    addr TEXT NOT NULL,
    labels_json TEXT NOT NULL,
    state TEXT NOT NULL,
    last_heartbeat_ts %[9]s NOT NULL,
    max_concurrent INTEGER NOT NULL,
    epoch TEXT NOT NULL
);

-- durable, strictly-ordered state change log
CREATE TABLE %[6]s (
    id %[11]s,
    kind TEXT NOT NULL,
    payload_json TEXT NOT NULL,
    created_at %[9]s NOT NULL,
    processed_at %[9]s,
    err TEXT NOT NULL DEFAULT ''
);
CREATE INDEX idx_%[6]s_processed ON %[6]s(processed_at);

-- singleton row holding the scheduler's resume cursor
CREATE TABLE %[7]s (
    id INTEGER PRIMARY KEY,
    cursor BIGINT NOT NULL
);

-- per-subscriber content-stream resume offsets
CREATE TABLE %[8]s (
    subscriber_key TEXT PRIMARY KEY,
    offset_value BIGINT NOT NULL
);
`, c.Namespaces, c.Graphs, c.Content, c.Tasks, c.Executors, c.StateChanges, c.SchedulerState, c.StreamOffsets,
		d.TimestampType, d.BooleanType, d.AutoIncrementPK)
}

// MigrationDown returns the SQL to drop every coordinator table, in
// dependency order.
func MigrationDown(c TableConfig) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
`, c.StreamOffsets, c.SchedulerState, c.StateChanges, c.Executors, c.Tasks, c.Content, c.Graphs, c.Namespaces)
}
