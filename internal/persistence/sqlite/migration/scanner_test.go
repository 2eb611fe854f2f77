package migration

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	t.Run("orders by numeric version and reads descriptions", func(t *testing.T) {
		fsys := fstest.MapFS{
			"010_add_index.sql":          {Data: []byte("CREATE INDEX idx ON t(a);")},
			"002_second.sql":             {Data: []byte("-- Description: Second step\nCREATE TABLE u (id TEXT);")},
			"001_create_things.sql":      {Data: []byte("CREATE TABLE t (a TEXT);")},
			"README.md":                  {Data: []byte("ignored")},
			"nested/003_not_scanned.sql": {Data: []byte("SELECT 1;")},
		}
		// The gap between 002 and 010 is the manager's concern, not the scanner's.
		migrations, err := Scan(fsys)
		require.NoError(t, err)
		require.Len(t, migrations, 3)
		assert.Equal(t, []string{"001", "002", "010"}, []string{migrations[0].Version, migrations[1].Version, migrations[2].Version})
		assert.Equal(t, "create things", migrations[0].Description)
		assert.Equal(t, "Second step", migrations[1].Description)
		assert.Len(t, migrations[0].Checksum, 64)
	})

	t.Run("rejects malformed names", func(t *testing.T) {
		_, err := Scan(fstest.MapFS{"create.sql": {Data: []byte("SELECT 1;")}})
		assert.ErrorIs(t, err, ErrInvalidMigrationFile)
	})

	t.Run("rejects comment-only files", func(t *testing.T) {
		_, err := Scan(fstest.MapFS{"001_empty.sql": {Data: []byte("-- nothing here\n")}})
		assert.ErrorIs(t, err, ErrInvalidMigrationFile)
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		_, err := Scan(fstest.MapFS{
			"001_a.sql":  {Data: []byte("SELECT 1;")},
			"0001_b.sql": {Data: []byte("SELECT 2;")},
		})
		assert.ErrorIs(t, err, ErrDuplicateVersion)
	})
}

func TestSplitStatements(t *testing.T) {
	statements := splitStatements("-- header\nCREATE TABLE a (x TEXT);\n\n-- between\nCREATE TABLE b (y TEXT);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x TEXT)", "CREATE TABLE b (y TEXT)"}, statements)
}

func TestSplitStatements_CommentsAndLiterals(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "semicolon inside a comment line",
			content: "-- one row per user; times are UTC\nCREATE TABLE t (x INT);",
			want:    []string{"CREATE TABLE t (x INT)"},
		},
		{
			name:    "trailing comment with semicolon",
			content: "CREATE TABLE t (\n    x INT -- stored; never null\n);",
			want:    []string{"CREATE TABLE t (\nx INT\n)"},
		},
		{
			name:    "semicolon and dashes inside a string literal",
			content: "INSERT INTO t VALUES ('a;b -- c', 'it''s');\nSELECT 1;",
			want:    []string{"INSERT INTO t VALUES ('a;b -- c', 'it''s')", "SELECT 1"},
		},
		{
			name:    "missing final semicolon",
			content: "SELECT 1",
			want:    []string{"SELECT 1"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, splitStatements(tc.content))
		})
	}
}

func TestMigration_Statements(t *testing.T) {
	migrations, err := Scan(fstest.MapFS{
		"001_init.sql": {Data: []byte("-- Description: Init; with a semicolon\nCREATE TABLE t (x INT);\nCREATE INDEX i ON t(x);\n")},
	})
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	assert.Equal(t, "Init; with a semicolon", migrations[0].Description)
	assert.Equal(t, []string{"CREATE TABLE t (x INT)", "CREATE INDEX i ON t(x)"}, migrations[0].Statements())
}
