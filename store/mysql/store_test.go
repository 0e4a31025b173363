package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vertexflow/coordinator/store"
)

func TestNewImplementsStore(t *testing.T) {
	var s store.Store = New(nil)
	assert.NotNil(t, s)
}

func TestMigrationUpUsesMySQLSyntax(t *testing.T) {
	sql := MigrationUp(DefaultTableConfig())
	assert.Contains(t, sql, "BIGINT PRIMARY KEY AUTO_INCREMENT")
	assert.Contains(t, sql, "DATETIME")
}
