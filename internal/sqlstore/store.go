package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vertexflow/coordinator"
	"github.com/vertexflow/coordinator/store"
)

// nowUTC is used instead of the database server clock on backends
// (sqlite, mysql) whose driver versions here don't expose a RETURNING
// clause to read the server-assigned timestamp back.
func nowUTC() time.Time { return time.Now().UTC() }

// execer is the subset of *sql.DB / *sql.Tx that query methods need, so
// RunInTransaction can rebind a Store to run every call against one
// *sql.Tx without duplicating each CRUD method for the transactional
// case.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a database/sql-backed Store, parameterized by Dialect so the
// postgres, sqlite, and mysql packages can each supply a thin
// constructor around the same CRUD bodies, built with fmt.Sprintf
// table-name interpolation and driver-specific placeholders.
type Store struct {
	rawDB   *sql.DB // non-nil only on the top-level Store; used for Close and BeginTx
	conn    execer
	dialect Dialect
	tables  TableConfig
}

// New wraps db as a Store using dialect and the default table names.
func New(db *sql.DB, dialect Dialect) *Store {
	return NewWithConfig(db, dialect, DefaultTableConfig())
}

// NewWithConfig wraps db as a Store using dialect and custom table names.
func NewWithConfig(db *sql.DB, dialect Dialect, tables TableConfig) *Store {
	return &Store{rawDB: db, conn: db, dialect: dialect, tables: tables}
}

func (s *Store) ph(i int) string { return s.dialect.Placeholder(i) }

var _ store.Store = (*Store)(nil)

// Namespaces.

func (s *Store) PutNamespace(ctx context.Context, ns coordinator.Namespace) error {
	query := fmt.Sprintf(`INSERT INTO %s (name, created_at) VALUES (%s, %s) `,
		s.tables.Namespaces, s.ph(1), s.ph(2)) + s.dialect.UpsertClause(s.tables.Namespaces,
		[]string{"name"}, []string{"created_at"})
	_, err := s.conn.ExecContext(ctx, query, ns.Name, ns.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlstore: put namespace: %w", err)
	}
	return nil
}

func (s *Store) GetNamespace(ctx context.Context, name string) (coordinator.Namespace, error) {
	query := fmt.Sprintf(`SELECT name, created_at FROM %s WHERE name = %s`, s.tables.Namespaces, s.ph(1))
	var ns coordinator.Namespace
	err := s.conn.QueryRowContext(ctx, query, name).Scan(&ns.Name, &ns.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return coordinator.Namespace{}, store.ErrNotFound
	}
	if err != nil {
		return coordinator.Namespace{}, fmt.Errorf("sqlstore: get namespace: %w", err)
	}
	return ns, nil
}

func (s *Store) ListNamespaces(ctx context.Context) ([]coordinator.Namespace, error) {
	query := fmt.Sprintf(`SELECT name, created_at FROM %s ORDER BY name`, s.tables.Namespaces)
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list namespaces: %w", err)
	}
	defer rows.Close()

	var out []coordinator.Namespace
	for rows.Next() {
		var ns coordinator.Namespace
		if err := rows.Scan(&ns.Name, &ns.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlstore: scan namespace: %w", err)
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// Graphs.

func (s *Store) PutGraph(ctx context.Context, g coordinator.ComputeGraph) error {
	nodesJSON, err := encodeNodes(g.Nodes)
	if err != nil {
		return err
	}
	edgesJSON, err := encodeEdges(g.Edges)
	if err != nil {
		return err
	}

	cols := []string{"namespace", "name", "nodes_json", "edges_json", "start_fn", "code_path", "code_size", "code_sha256", "created_at", "tombstoned"}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = s.ph(i + 1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) `, s.tables.Graphs, join(cols, ", "), join(placeholders, ", ")) +
		s.dialect.UpsertClause(s.tables.Graphs, []string{"namespace", "name"}, cols[2:])

	_, err = s.conn.ExecContext(ctx, query,
		g.Namespace, g.Name, nodesJSON, edgesJSON, g.StartFn, g.Code.Path, g.Code.Size, g.Code.SHA256, g.CreatedAt, g.Tombstoned)
	if err != nil {
		return fmt.Errorf("sqlstore: put graph: %w", err)
	}
	return nil
}

func (s *Store) scanGraph(row *sql.Row) (coordinator.ComputeGraph, error) {
	var g coordinator.ComputeGraph
	var nodesJSON, edgesJSON string
	err := row.Scan(&g.Namespace, &g.Name, &nodesJSON, &edgesJSON, &g.StartFn,
		&g.Code.Path, &g.Code.Size, &g.Code.SHA256, &g.CreatedAt, &g.Tombstoned)
	if errors.Is(err, sql.ErrNoRows) {
		return coordinator.ComputeGraph{}, store.ErrNotFound
	}
	if err != nil {
		return coordinator.ComputeGraph{}, fmt.Errorf("sqlstore: scan graph: %w", err)
	}
	if g.Nodes, err = decodeNodes(nodesJSON); err != nil {
		return coordinator.ComputeGraph{}, err
	}
	if g.Edges, err = decodeEdges(edgesJSON); err != nil {
		return coordinator.ComputeGraph{}, err
	}
	return g, nil
}

func (s *Store) GetGraph(ctx context.Context, namespace, name string) (coordinator.ComputeGraph, error) {
	query := fmt.Sprintf(`SELECT namespace, name, nodes_json, edges_json, start_fn, code_path, code_size, code_sha256, created_at, tombstoned
		FROM %s WHERE namespace = %s AND name = %s`, s.tables.Graphs, s.ph(1), s.ph(2))
	row := s.conn.QueryRowContext(ctx, query, namespace, name)
	return s.scanGraph(row)
}

func (s *Store) ListGraphs(ctx context.Context, namespace string) ([]coordinator.ComputeGraph, error) {
	query := fmt.Sprintf(`SELECT namespace, name, nodes_json, edges_json, start_fn, code_path, code_size, code_sha256, created_at, tombstoned
		FROM %s WHERE namespace = %s ORDER BY name`, s.tables.Graphs, s.ph(1))
	rows, err := s.conn.QueryContext(ctx, query, namespace)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list graphs: %w", err)
	}
	defer rows.Close()

	var out []coordinator.ComputeGraph
	for rows.Next() {
		var g coordinator.ComputeGraph
		var nodesJSON, edgesJSON string
		if err := rows.Scan(&g.Namespace, &g.Name, &nodesJSON, &edgesJSON, &g.StartFn,
			&g.Code.Path, &g.Code.Size, &g.Code.SHA256, &g.CreatedAt, &g.Tombstoned); err != nil {
			return nil, fmt.Errorf("sqlstore: scan graph: %w", err)
		}
		if g.Nodes, err = decodeNodes(nodesJSON); err != nil {
			return nil, err
		}
		if g.Edges, err = decodeEdges(edgesJSON); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) TombstoneGraph(ctx context.Context, namespace, name string) error {
	query := fmt.Sprintf(`UPDATE %s SET tombstoned = %s WHERE namespace = %s AND name = %s`,
		s.tables.Graphs, s.boolLiteral(true), s.ph(1), s.ph(2))
	result, err := s.conn.ExecContext(ctx, query, namespace, name)
	if err != nil {
		return fmt.Errorf("sqlstore: tombstone graph: %w", err)
	}
	return s.requireRowsAffected(result)
}

// boolLiteral avoids a placeholder for the SET value so the same
// UPDATE works whether the driver binds bool natively (postgres,
// mysql) or expects 0/1 (older sqlite3 builds); the coordinator only
// ever sets this column to true here.
func (s *Store) boolLiteral(v bool) string {
	if s.dialect.Name == "sqlite" {
		if v {
			return "1"
		}
		return "0"
	}
	if v {
		return "true"
	}
	return "false"
}

func (s *Store) requireRowsAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Content.

func (s *Store) PutContent(ctx context.Context, c coordinator.Content) error {
	labelsJSON, err := encodeLabelsAny(c.Labels)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, namespace, graph_name, parent_id, root_id, storage_url, size, sha256, mime, labels_json, created_at, source_fn)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.tables.Content, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9), s.ph(10), s.ph(11), s.ph(12))
	_, err = s.conn.ExecContext(ctx, query, c.ID, c.Namespace, c.GraphName, c.ParentID, c.RootID,
		c.StorageURL, c.Size, c.SHA256, c.MIME, labelsJSON, c.CreatedAt, c.SourceFn)
	if err != nil {
		return translateUniqueViolation(err)
	}
	return nil
}

func (s *Store) scanContentRow(scan func(...any) error) (coordinator.Content, error) {
	var c coordinator.Content
	var labelsJSON string
	err := scan(&c.ID, &c.Namespace, &c.GraphName, &c.ParentID, &c.RootID,
		&c.StorageURL, &c.Size, &c.SHA256, &c.MIME, &labelsJSON, &c.CreatedAt, &c.SourceFn)
	if err != nil {
		return coordinator.Content{}, err
	}
	if c.Labels, err = decodeLabelsAny(labelsJSON); err != nil {
		return coordinator.Content{}, err
	}
	return c, nil
}

func (s *Store) GetContent(ctx context.Context, namespace, id string) (coordinator.Content, error) {
	query := fmt.Sprintf(`SELECT id, namespace, graph_name, parent_id, root_id, storage_url, size, sha256, mime, labels_json, created_at, source_fn
		FROM %s WHERE namespace = %s AND id = %s`, s.tables.Content, s.ph(1), s.ph(2))
	row := s.conn.QueryRowContext(ctx, query, namespace, id)
	c, err := s.scanContentRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return coordinator.Content{}, store.ErrNotFound
	}
	if err != nil {
		return coordinator.Content{}, fmt.Errorf("sqlstore: get content: %w", err)
	}
	return c, nil
}

func (s *Store) ListContentByParent(ctx context.Context, namespace, parentID string) ([]coordinator.Content, error) {
	query := fmt.Sprintf(`SELECT id, namespace, graph_name, parent_id, root_id, storage_url, size, sha256, mime, labels_json, created_at, source_fn
		FROM %s WHERE namespace = %s AND parent_id = %s ORDER BY id`, s.tables.Content, s.ph(1), s.ph(2))
	rows, err := s.conn.QueryContext(ctx, query, namespace, parentID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list content by parent: %w", err)
	}
	defer rows.Close()

	var out []coordinator.Content
	for rows.Next() {
		c, err := s.scanContentRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan content: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Tasks.

func (s *Store) PutTask(ctx context.Context, t coordinator.Task) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, namespace, graph_name, compute_fn_name, input_content_id, created_at, outcome, assigned_executor, attempt)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.tables.Tasks, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6), s.ph(7), s.ph(8), s.ph(9))
	_, err := s.conn.ExecContext(ctx, query, t.ID, t.Namespace, t.GraphName, t.ComputeFnName, t.InputContentID,
		t.CreatedAt, string(t.Outcome), t.AssignedExecutor, t.Attempt)
	if err != nil {
		return translateUniqueViolation(err)
	}
	return nil
}

func scanTask(scan func(...any) error) (coordinator.Task, error) {
	var t coordinator.Task
	var outcome string
	err := scan(&t.ID, &t.Namespace, &t.GraphName, &t.ComputeFnName, &t.InputContentID,
		&t.CreatedAt, &outcome, &t.AssignedExecutor, &t.Attempt)
	t.Outcome = coordinator.TaskOutcome(outcome)
	return t, err
}

func (s *Store) GetTask(ctx context.Context, id string) (coordinator.Task, error) {
	query := fmt.Sprintf(`SELECT id, namespace, graph_name, compute_fn_name, input_content_id, created_at, outcome, assigned_executor, attempt
		FROM %s WHERE id = %s`, s.tables.Tasks, s.ph(1))
	row := s.conn.QueryRowContext(ctx, query, id)
	t, err := scanTask(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return coordinator.Task{}, store.ErrNotFound
	}
	if err != nil {
		return coordinator.Task{}, fmt.Errorf("sqlstore: get task: %w", err)
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t coordinator.Task) error {
	query := fmt.Sprintf(`UPDATE %s SET outcome = %s, assigned_executor = %s, attempt = %s WHERE id = %s`,
		s.tables.Tasks, s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	result, err := s.conn.ExecContext(ctx, query, string(t.Outcome), t.AssignedExecutor, t.Attempt, t.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: update task: %w", err)
	}
	return s.requireRowsAffected(result)
}

func (s *Store) queryTasks(ctx context.Context, where string, args ...any) ([]coordinator.Task, error) {
	query := fmt.Sprintf(`SELECT id, namespace, graph_name, compute_fn_name, input_content_id, created_at, outcome, assigned_executor, attempt
		FROM %s WHERE %s ORDER BY id`, s.tables.Tasks, where)
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list tasks: %w", err)
	}
	defer rows.Close()

	var out []coordinator.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListUnassignedTasks(ctx context.Context, namespace string) ([]coordinator.Task, error) {
	if namespace == "" {
		return s.queryTasks(ctx, fmt.Sprintf("outcome = %s AND assigned_executor = ''", s.ph(1)), string(coordinator.TaskOutcomeUnknown))
	}
	return s.queryTasks(ctx, fmt.Sprintf("namespace = %s AND outcome = %s AND assigned_executor = ''", s.ph(1), s.ph(2)),
		namespace, string(coordinator.TaskOutcomeUnknown))
}

func (s *Store) ListTasksByExecutor(ctx context.Context, executorID string) ([]coordinator.Task, error) {
	return s.queryTasks(ctx, fmt.Sprintf("assigned_executor = %s", s.ph(1)), executorID)
}

func (s *Store) ListTasksByGraph(ctx context.Context, namespace, graphName string) ([]coordinator.Task, error) {
	return s.queryTasks(ctx, fmt.Sprintf("namespace = %s AND graph_name = %s", s.ph(1), s.ph(2)), namespace, graphName)
}

// Executors.

func (s *Store) PutExecutor(ctx context.Context, e coordinator.Executor) error {
	labelsJSON, err := encodeLabelSet(e.Labels)
	if err != nil {
		return err
	}
	cols := []string{"id", "runner_name", "addr", "labels_json", "state", "last_heartbeat_ts", "max_concurrent", "epoch"}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = s.ph(i + 1)
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) `, s.tables.Executors, join(cols, ", "), join(placeholders, ", ")) +
		s.dialect.UpsertClause(s.tables.Executors, []string{"id"}, cols[1:])
	_, err = s.conn.ExecContext(ctx, query, e.ID, e.RunnerName, e.Addr, labelsJSON, string(e.State), e.LastHeartbeatTS, e.MaxConcurrent, e.Epoch)
	if err != nil {
		return fmt.Errorf("sqlstore: put executor: %w", err)
	}
	return nil
}

func scanExecutor(scan func(...any) error) (coordinator.Executor, string, error) {
	var e coordinator.Executor
	var state, labelsJSON string
	err := scan(&e.ID, &e.RunnerName, &e.Addr, &labelsJSON, &state, &e.LastHeartbeatTS, &e.MaxConcurrent, &e.Epoch)
	e.State = coordinator.ExecutorState(state)
	return e, labelsJSON, err
}

func (s *Store) GetExecutor(ctx context.Context, id string) (coordinator.Executor, error) {
	query := fmt.Sprintf(`SELECT id, runner_name, addr, labels_json, state, last_heartbeat_ts, max_concurrent, epoch
		FROM %s WHERE id = %s`, s.tables.Executors, s.ph(1))
	row := s.conn.QueryRowContext(ctx, query, id)
	e, labelsJSON, err := scanExecutor(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return coordinator.Executor{}, store.ErrNotFound
	}
	if err != nil {
		return coordinator.Executor{}, fmt.Errorf("sqlstore: get executor: %w", err)
	}
	if e.Labels, err = decodeLabelSet(labelsJSON); err != nil {
		return coordinator.Executor{}, err
	}
	return e, nil
}

func (s *Store) ListExecutors(ctx context.Context) ([]coordinator.Executor, error) {
	query := fmt.Sprintf(`SELECT id, runner_name, addr, labels_json, state, last_heartbeat_ts, max_concurrent, epoch
		FROM %s ORDER BY id`, s.tables.Executors)
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list executors: %w", err)
	}
	defer rows.Close()

	var out []coordinator.Executor
	for rows.Next() {
		e, labelsJSON, err := scanExecutor(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scan executor: %w", err)
		}
		if e.Labels, err = decodeLabelSet(labelsJSON); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) DeleteExecutor(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, s.tables.Executors, s.ph(1))
	_, err := s.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("sqlstore: delete executor: %w", err)
	}
	return nil
}

// State changes.

func (s *Store) AppendStateChange(ctx context.Context, kind coordinator.StateChangeKind, payload any) (coordinator.StateChange, error) {
	payloadJSON, err := encodePayload(payload)
	if err != nil {
		return coordinator.StateChange{}, err
	}
	sc := coordinator.StateChange{Kind: kind, Payload: payload}

	if s.dialect.Name == "postgres" {
		query := fmt.Sprintf(`INSERT INTO %s (kind, payload_json, created_at) VALUES (%s, %s, NOW()) RETURNING id, created_at`,
			s.tables.StateChanges, s.ph(1), s.ph(2))
		err = s.conn.QueryRowContext(ctx, query, string(kind), payloadJSON).Scan(&sc.ID, &sc.CreatedAt)
		if err != nil {
			return coordinator.StateChange{}, fmt.Errorf("sqlstore: append state change: %w", err)
		}
		return sc, nil
	}

	// sqlite/mysql: no RETURNING support in the driver versions this
	// module targets, fall back to LastInsertId.
	query := fmt.Sprintf(`INSERT INTO %s (kind, payload_json, created_at) VALUES (%s, %s, %s)`,
		s.tables.StateChanges, s.ph(1), s.ph(2), s.ph(3))
	now := nowUTC()
	result, err := s.conn.ExecContext(ctx, query, string(kind), payloadJSON, now)
	if err != nil {
		return coordinator.StateChange{}, fmt.Errorf("sqlstore: append state change: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return coordinator.StateChange{}, fmt.Errorf("sqlstore: append state change: last insert id: %w", err)
	}
	sc.ID = uint64(id)
	sc.CreatedAt = now
	return sc, nil
}

func (s *Store) GetStateChange(ctx context.Context, id uint64) (coordinator.StateChange, error) {
	query := fmt.Sprintf(`SELECT id, kind, payload_json, created_at, processed_at, err FROM %s WHERE id = %s`,
		s.tables.StateChanges, s.ph(1))
	row := s.conn.QueryRowContext(ctx, query, id)
	sc, err := scanStateChange(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return coordinator.StateChange{}, store.ErrNotFound
	}
	if err != nil {
		return coordinator.StateChange{}, fmt.Errorf("sqlstore: get state change: %w", err)
	}
	return sc, nil
}

func scanStateChange(scan func(...any) error) (coordinator.StateChange, error) {
	var sc coordinator.StateChange
	var kind, payloadJSON string
	var processedAt sql.NullTime
	err := scan(&sc.ID, &kind, &payloadJSON, &sc.CreatedAt, &processedAt, &sc.Err)
	if err != nil {
		return coordinator.StateChange{}, err
	}
	sc.Kind = coordinator.StateChangeKind(kind)
	if processedAt.Valid {
		t := processedAt.Time
		sc.ProcessedAt = &t
	}
	sc.Payload, err = decodePayload(sc.Kind, payloadJSON)
	if err != nil {
		return coordinator.StateChange{}, err
	}
	return sc, nil
}

func (s *Store) ScanStateChanges(ctx context.Context, fromID uint64, limit int) (store.Page[coordinator.StateChange], error) {
	if fromID == 0 {
		fromID = 1
	}
	fetch := limit
	if fetch <= 0 {
		fetch = 1000
	}
	query := fmt.Sprintf(`SELECT id, kind, payload_json, created_at, processed_at, err
		FROM %s WHERE id >= %s ORDER BY id LIMIT %s`, s.tables.StateChanges, s.ph(1), s.ph(2))
	rows, err := s.conn.QueryContext(ctx, query, fromID, fetch+1)
	if err != nil {
		return store.Page[coordinator.StateChange]{}, fmt.Errorf("sqlstore: scan state changes: %w", err)
	}
	defer rows.Close()

	var out []coordinator.StateChange
	for rows.Next() {
		sc, err := scanStateChange(rows.Scan)
		if err != nil {
			return store.Page[coordinator.StateChange]{}, fmt.Errorf("sqlstore: scan state change: %w", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return store.Page[coordinator.StateChange]{}, err
	}

	page := store.Page[coordinator.StateChange]{}
	if len(out) > fetch {
		page.Items = out[:fetch]
		page.NextCursor = fmt.Sprintf("%d", page.Items[len(page.Items)-1].ID+1)
	} else {
		page.Items = out
	}
	return page, nil
}

func (s *Store) MarkStateChangeProcessed(ctx context.Context, id uint64, derivationErr string) error {
	var query string
	if s.dialect.Name == "postgres" {
		query = fmt.Sprintf(`UPDATE %s SET processed_at = NOW(), err = %s WHERE id = %s`, s.tables.StateChanges, s.ph(1), s.ph(2))
		result, err := s.conn.ExecContext(ctx, query, derivationErr, id)
		if err != nil {
			return fmt.Errorf("sqlstore: mark state change processed: %w", err)
		}
		return s.requireRowsAffected(result)
	}
	query = fmt.Sprintf(`UPDATE %s SET processed_at = %s, err = %s WHERE id = %s`, s.tables.StateChanges, s.ph(1), s.ph(2), s.ph(3))
	result, err := s.conn.ExecContext(ctx, query, nowUTC(), derivationErr, id)
	if err != nil {
		return fmt.Errorf("sqlstore: mark state change processed: %w", err)
	}
	return s.requireRowsAffected(result)
}

func (s *Store) PruneStateChangesBefore(ctx context.Context, id uint64) (int, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id < %s AND processed_at IS NOT NULL`, s.tables.StateChanges, s.ph(1))
	result, err := s.conn.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: prune state changes: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlstore: prune state changes: rows affected: %w", err)
	}
	return int(n), nil
}

// Scheduler cursor.

func (s *Store) GetSchedulerCursor(ctx context.Context) (uint64, error) {
	query := fmt.Sprintf(`SELECT cursor FROM %s WHERE id = 1`, s.tables.SchedulerState)
	var cursor uint64
	err := s.conn.QueryRowContext(ctx, query).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlstore: get scheduler cursor: %w", err)
	}
	return cursor, nil
}

func (s *Store) SetSchedulerCursor(ctx context.Context, id uint64) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, cursor) VALUES (1, %s) `, s.tables.SchedulerState, s.ph(1)) +
		s.dialect.UpsertClause(s.tables.SchedulerState, []string{"id"}, []string{"cursor"})
	_, err := s.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("sqlstore: set scheduler cursor: %w", err)
	}
	return nil
}

// Stream offsets.

func (s *Store) GetStreamOffset(ctx context.Context, subscriberKey string) (uint64, bool, error) {
	query := fmt.Sprintf(`SELECT offset_value FROM %s WHERE subscriber_key = %s`, s.tables.StreamOffsets, s.ph(1))
	var offset uint64
	err := s.conn.QueryRowContext(ctx, query, subscriberKey).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlstore: get stream offset: %w", err)
	}
	return offset, true, nil
}

func (s *Store) SetStreamOffset(ctx context.Context, subscriberKey string, offset uint64) error {
	query := fmt.Sprintf(`INSERT INTO %s (subscriber_key, offset_value) VALUES (%s, %s) `, s.tables.StreamOffsets, s.ph(1), s.ph(2)) +
		s.dialect.UpsertClause(s.tables.StreamOffsets, []string{"subscriber_key"}, []string{"offset_value"})
	_, err := s.conn.ExecContext(ctx, query, subscriberKey, offset)
	if err != nil {
		return fmt.Errorf("sqlstore: set stream offset: %w", err)
	}
	return nil
}

func (s *Store) ListStreamOffsets(ctx context.Context) ([]uint64, error) {
	query := fmt.Sprintf(`SELECT offset_value FROM %s`, s.tables.StreamOffsets)
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list stream offsets: %w", err)
	}
	defer rows.Close()

	var offsets []uint64
	for rows.Next() {
		var offset uint64
		if err := rows.Scan(&offset); err != nil {
			return nil, fmt.Errorf("sqlstore: list stream offsets: scan: %w", err)
		}
		offsets = append(offsets, offset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: list stream offsets: %w", err)
	}
	return offsets, nil
}

// RunInTransaction runs fn against a Store whose conn is bound to a
// single *sql.Tx, so every call fn makes through tx participates in one
// database/sql transaction, committed only if fn returns nil.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.rawDB == nil {
		return errors.New("sqlstore: RunInTransaction called on a store already inside a transaction")
	}
	sqlTx, err := s.rawDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin transaction: %w", err)
	}
	txScoped := &Store{conn: sqlTx, dialect: s.dialect, tables: s.tables}
	if err := fn(ctx, txScoped); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.rawDB == nil {
		return nil
	}
	return s.rawDB.Close()
}

func translateUniqueViolation(err error) error {
	if err == nil {
		return nil
	}
	// database/sql has no portable "unique violation" sentinel across
	// drivers; each backend's own package wraps this with driver-specific
	// detection (see store/postgres, store/sqlite, store/mysql) before
	// falling back to this generic wrap.
	return fmt.Errorf("sqlstore: %w", err)
}
