package sqlstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTableConfig(t *testing.T) {
	c := DefaultTableConfig()
	assert.Equal(t, "coordinator_namespaces", c.Namespaces)
	assert.Equal(t, "coordinator_tasks", c.Tasks)
	assert.Equal(t, "coordinator_state_changes", c.StateChanges)
}

func TestMigrationUpCreatesEveryTable(t *testing.T) {
	c := DefaultTableConfig()
	for _, d := range []Dialect{Postgres, SQLite, MySQL} {
		sql := MigrationUp(d, c)
		for _, table := range []string{c.Namespaces, c.Graphs, c.Content, c.Tasks, c.Executors, c.StateChanges, c.SchedulerState, c.StreamOffsets} {
			assert.Contains(t, sql, "CREATE TABLE "+table, "dialect %s missing table %s", d.Name, table)
		}
	}
}

func TestMigrationDownDropsInDependencyOrder(t *testing.T) {
	c := DefaultTableConfig()
	sql := MigrationDown(c)

	graphsIdx := strings.Index(sql, c.Graphs)
	namespacesIdx := strings.Index(sql, c.Namespaces)
	contentIdx := strings.Index(sql, "DROP TABLE IF EXISTS "+c.Content)

	assert.True(t, contentIdx < graphsIdx, "content should drop before graphs")
	assert.True(t, graphsIdx < namespacesIdx, "graphs should drop before namespaces (FK on namespace)")
}
