package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vertexflow/coordinator/store"
)

func TestNewImplementsStore(t *testing.T) {
	var s store.Store = New(nil)
	assert.NotNil(t, s)
}

func TestMigrationUpUsesSQLiteSyntax(t *testing.T) {
	sql := MigrationUp(DefaultTableConfig())
	assert.Contains(t, sql, "INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.Contains(t, sql, "DATETIME")
	assert.NotContains(t, sql, "BIGSERIAL")
}
