package database

import (
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(Config{Host: "db.internal", User: "saga", Password: "p@ss", Name: "medisaga"})

	parsed, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.internal:3306", parsed.Addr)
	assert.Equal(t, "saga", parsed.User)
	assert.Equal(t, "p@ss", parsed.Passwd)
	assert.Equal(t, "medisaga", parsed.DBName)
	assert.True(t, parsed.ParseTime)
}

func TestOpenSQLite(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: "file:open_test?mode=memory&cache=shared", LogLevel: "silent"})
	require.NoError(t, err)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")

	_, err = Open(Config{Driver: "postgres"})
	assert.ErrorContains(t, err, "requires DB_DSN")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, parseLogLevel("silent"))
	assert.Equal(t, gormlogger.Info, parseLogLevel("INFO"))
	assert.Equal(t, gormlogger.Warn, parseLogLevel(""))
}
