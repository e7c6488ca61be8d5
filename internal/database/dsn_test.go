package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "tuntas", Name: "tuntasinaja"})
	require.NoError(t, err)
	require.Equal(t, "host=localhost port=5432 user=tuntas dbname=tuntasinaja TimeZone=UTC sslmode=disable", dsn)

	dsn, err = buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.internal",
		Port:     6543,
		Password: "pass",
		Options:  map[string]string{"sslmode": "require", "TimeZone": "Asia/Jakarta"},
	})
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=6543 user=user dbname=db password=pass TimeZone=Asia/Jakarta sslmode=require", dsn)

	_, err = buildPostgresDSN(Config{})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "tuntas", Name: "tuntasinaja"})
	require.NoError(t, err)
	require.Equal(t, "tuntas@tcp(127.0.0.1:3306)/tuntasinaja?charset=utf8mb4&loc=UTC&parseTime=True", dsn)

	dsn, err = buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "db.internal",
		Port:     3307,
		Options:  map[string]string{"tls": "skip-verify"},
	})
	require.NoError(t, err)
	require.Equal(t, "user:secret@tcp(db.internal:3307)/db?charset=utf8mb4&loc=UTC&parseTime=True&tls=skip-verify", dsn)

	_, err = buildMySQLDSN(Config{Host: "localhost"})
	require.Error(t, err)
}

func TestDSNOverrideWins(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://u@h/db"})
	require.NoError(t, err)
	require.Equal(t, "postgres://u@h/db", dsn)

	dsn, err = buildMySQLDSN(Config{DSN: "u@tcp(h:1)/db"})
	require.NoError(t, err)
	require.Equal(t, "u@tcp(h:1)/db", dsn)
}

func TestSQLiteDSN(t *testing.T) {
	dsn, err := sqliteDSN(Config{})
	require.NoError(t, err)
	require.Equal(t, memoryDSN, dsn)

	dsn, err = sqliteDSN(Config{Path: ":MEMORY:"})
	require.NoError(t, err)
	require.Equal(t, memoryDSN, dsn)

	dir := t.TempDir()
	dsn, err = sqliteDSN(Config{Path: filepath.Join(dir, "data", "app.db")})
	require.NoError(t, err)
	require.Contains(t, dsn, "_journal_mode=WAL")
	require.DirExists(t, filepath.Join(dir, "data"))
}

func TestMergeOptionsIsSorted(t *testing.T) {
	got := mergeOptions(map[string]string{"b": "1", "a": "2"}, map[string]string{"b": "3", "c": "4"})
	require.Equal(t, []string{"a=2", "b=3", "c=4"}, got)
}
