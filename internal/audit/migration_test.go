package audit_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// The append-only trigger must write the violation row over its own dblink
// connection. An in-transaction INSERT would be rolled back together with
// the raised exception, leaving audit_violations empty.
func TestAppendOnlyTriggerWritesViolationOutOfBand(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "migrations", "000002_audit_chain.up.sql"))
	require.NoError(t, err)
	sql := string(raw)

	require.Contains(t, sql, "CREATE EXTENSION IF NOT EXISTS dblink")

	insertAt := strings.Index(sql, "dblink_exec")
	raiseAt := strings.Index(sql, "RAISE EXCEPTION")
	require.NotEqual(t, -1, insertAt)
	require.NotEqual(t, -1, raiseAt)
	require.Less(t, insertAt, raiseAt, "violation row must be written before the raise")

	// Guard against regressing to a same-transaction insert.
	require.NotContains(t, sql, "VALUES (TG_OP")
}
