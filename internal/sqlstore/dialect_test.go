package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1", Postgres.Placeholder(1))
	assert.Equal(t, "$12", Postgres.Placeholder(12))
	assert.Equal(t, "?", SQLite.Placeholder(1))
	assert.Equal(t, "?", MySQL.Placeholder(3))
}

func TestUpsertClauses(t *testing.T) {
	t.Run("postgres uses ON CONFLICT DO UPDATE with EXCLUDED", func(t *testing.T) {
		clause := Postgres.UpsertClause("t", []string{"id"}, []string{"a", "b"})
		assert.Contains(t, clause, "ON CONFLICT (id) DO UPDATE SET")
		assert.Contains(t, clause, "a = EXCLUDED.a")
		assert.Contains(t, clause, "b = EXCLUDED.b")
	})

	t.Run("sqlite uses ON CONFLICT DO UPDATE with excluded", func(t *testing.T) {
		clause := SQLite.UpsertClause("t", []string{"id"}, []string{"a"})
		assert.Contains(t, clause, "ON CONFLICT(id) DO UPDATE SET")
		assert.Contains(t, clause, "a = excluded.a")
	})

	t.Run("mysql uses ON DUPLICATE KEY UPDATE", func(t *testing.T) {
		clause := MySQL.UpsertClause("t", []string{"id"}, []string{"a", "b"})
		assert.Contains(t, clause, "ON DUPLICATE KEY UPDATE")
		assert.Contains(t, clause, "a = VALUES(a)")
		assert.Contains(t, clause, "b = VALUES(b)")
	})
}
