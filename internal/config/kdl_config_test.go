package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pnperrors "github.com/standardbeagle/pnpmatch/internal/errors"
	"github.com/standardbeagle/pnpmatch/internal/matcher"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, matcher.DefaultSizeCodes, cfg.Match.SizeCodes)
	assert.Equal(t, 0, cfg.Columns.ID)
	assert.Equal(t, 1, cfg.Columns.Footprint)
	assert.Equal(t, 2, cfg.Columns.Comment)
	assert.Equal(t, 3, cfg.Columns.Rotation)
	assert.Equal(t, 1, cfg.Columns.HeaderRows)
	assert.Equal(t, DefaultStorePattern, cfg.Store.Pattern)
	assert.False(t, cfg.Batch.Parallel)
	assert.Equal(t, "table", cfg.Output.Format)
}

func TestParseKDL_AllSections(t *testing.T) {
	kdlContent := `
project {
    name "board-a"
}
columns {
    id 5
    footprint 6
    comment 7
    rotation 8
    header_rows 2
    delimiter ";"
}
store {
    pattern "db_*.txt"
    file_prefix "db_"
}
match {
    size_codes "0603" "0402"
}
batch {
    parallel true
    workers 3
    chunk_size 50
}
watch {
    enabled false
    debounce_ms 900
}
output {
    format "json"
    max_candidates 5
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)

	assert.Equal(t, "board-a", cfg.Project.Name)
	assert.Equal(t, Columns{ID: 5, Footprint: 6, Comment: 7, Rotation: 8, HeaderRows: 2, Delimiter: ";"}, cfg.Columns)
	assert.Equal(t, "db_*.txt", cfg.Store.Pattern)
	assert.Equal(t, "db_", cfg.Store.FilePrefix)
	assert.Equal(t, []string{"0603", "0402"}, cfg.Match.SizeCodes)
	assert.True(t, cfg.Batch.Parallel)
	assert.Equal(t, 3, cfg.Batch.Workers)
	assert.Equal(t, 50, cfg.Batch.ChunkSize)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, 900, cfg.Watch.DebounceMs)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, 5, cfg.Output.MaxCandidates)
}

func TestParseKDL_PartialSectionKeepsDefaults(t *testing.T) {
	cfg, err := parseKDL(`
batch {
    parallel true
}
`)
	require.NoError(t, err)

	assert.True(t, cfg.Batch.Parallel)
	assert.Equal(t, 0, cfg.Batch.Workers)
	assert.Equal(t, matcher.DefaultSizeCodes, cfg.Match.SizeCodes)
}

func TestParseKDL_TruncatedBlockRejected(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"unclosed batch", `batch { parallel true`, ErrUnclosedBlock},
		{"unclosed columns", "columns { footprint 1 ", ErrUnclosedBlock},
		{"nested unclosed", "store {\n    dir \"db\"\nbatch {\n    workers 2\n}\n", ErrUnclosedBlock},
		{"stray close", "batch {\n    workers 2\n}\n}\n", ErrUnexpectedClose},
		{"unterminated string", `store { dir "db }`, ErrUnterminated},
		{"unterminated comment", "/* batch { }", ErrUnterminated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseKDL(tt.content)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var cfgErr *pnperrors.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, "syntax", cfgErr.Field)
		})
	}
}

func TestParseKDL_BracesInStringsAndComments(t *testing.T) {
	cfg, err := parseKDL(`
// a { in a line comment
/* and } in a block comment */
store {
    pattern "components_{a,b}_*.txt"
    file_prefix "parts\"{"
}
batch {
    workers 3
}
`)
	require.NoError(t, err)
	assert.Equal(t, "components_{a,b}_*.txt", cfg.Store.Pattern)
	assert.Equal(t, `parts"{`, cfg.Store.FilePrefix)
	assert.Equal(t, 3, cfg.Batch.Workers)

	// raw strings and nested comments
	assert.NoError(t, checkBlocks("store {\n    file_prefix r#\"a\"}\"#\n}\n/* x /* { */ } */\n"))
}

func TestCheckBlocks_ReportsLine(t *testing.T) {
	err := checkBlocks("project {\n}\nbatch {\n    parallel true\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestLoadWithRoot_ProjectFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`
store {
    dir "db"
}
batch {
    workers 2
}
`), 0644))

	cfg, err := LoadWithRoot("", dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "db"), cfg.Store.Dir)
	assert.Equal(t, 2, cfg.Batch.Workers)
}

func TestLoadWithRoot_GlobalThenProject(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, ConfigFileName), []byte(`
batch {
    workers 6
    chunk_size 10
}
`), 0644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`
batch {
    workers 2
}
`), 0644))

	cfg, err := LoadWithRoot("", dir)
	require.NoError(t, err)

	// Project overrides workers, global chunk size survives
	assert.Equal(t, 2, cfg.Batch.Workers)
	assert.Equal(t, 10, cfg.Batch.ChunkSize)
}

func TestLoadWithRoot_NoFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	cfg, err := LoadWithRoot("", dir)
	require.NoError(t, err)

	abs, _ := filepath.Abs(dir)
	assert.Equal(t, abs, cfg.Project.Root)
	assert.Equal(t, abs, cfg.Store.Dir)
}
