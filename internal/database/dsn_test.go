package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{User: "duebell", Name: "duebell", Password: "secret"})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=localhost")
	require.Contains(t, dsn, "port=5432")
	require.Contains(t, dsn, "dbname=duebell")
	require.Contains(t, dsn, "sslmode=disable")
}

func TestBuildPostgresDSNRequiresUser(t *testing.T) {
	_, err := buildPostgresDSN(Config{Name: "duebell"})
	require.Error(t, err)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{User: "duebell", Password: "secret", Name: "duebell", Host: "db", Port: 3307})
	require.NoError(t, err)
	require.Contains(t, dsn, "duebell:secret@tcp(db:3307)/duebell?")
	require.Contains(t, dsn, "parseTime=True")
}

func TestDSNOverrideWins(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{DSN: "postgres://override"})
	require.NoError(t, err)
	require.Equal(t, "postgres://override", dsn)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}
