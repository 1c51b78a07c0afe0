package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/pnpmatch/internal/config"
	"github.com/standardbeagle/pnpmatch/internal/session"
	"github.com/standardbeagle/pnpmatch/internal/store"
	"github.com/standardbeagle/pnpmatch/internal/testhelpers"
	"github.com/standardbeagle/pnpmatch/internal/types"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default(t.TempDir())
	st := store.New([]types.ComponentName{
		{Name: "0603_R_10k"},
		{Name: "0805_R_10k"},
		{Name: "SOIC8_NE555"},
		{Name: "0603_R_1k", Hidden: true},
	})
	return NewServer(cfg, st)
}

func call(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), params interface{}, out interface{}) *mcp.CallToolResult {
	t.Helper()
	args, err := json.Marshal(params)
	require.NoError(t, err)

	result, err := handler(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: args},
	})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	if out != nil {
		require.NoError(t, json.Unmarshal([]byte(text.Text), out))
	}
	return result
}

func TestMatchPart(t *testing.T) {
	s := testServer(t)

	var resp MatchPartResponse
	result := call(t, s.handleMatchPart, MatchPartParams{Footprint: "0603_R", Comment: "10k"}, &resp)
	assert.False(t, result.IsError)
	assert.Equal(t, types.ClassAutoExact, resp.Classification)
	assert.Equal(t, "0603_R_10k", resp.Selection)
	assert.Empty(t, resp.Candidates)

	var filtered MatchPartResponse
	call(t, s.handleMatchPart, MatchPartParams{Footprint: "R0805", Comment: "10K"}, &filtered)
	assert.Equal(t, types.ClassFiltered, filtered.Classification)
	assert.Equal(t, "0805 10k", filtered.Selection)
	assert.Equal(t, []string{"0805_R_10k"}, filtered.Candidates)
}

func TestMatchPart_NoMatchTruncated(t *testing.T) {
	s := testServer(t)

	var resp MatchPartResponse
	call(t, s.handleMatchPart, MatchPartParams{Footprint: "QFN", Comment: "STM32", Max: 2}, &resp)
	assert.Equal(t, types.ClassNoMatch, resp.Classification)
	assert.Equal(t, []string{"0603_R_10k", "0805_R_10k"}, resp.Candidates)
	assert.Equal(t, 3, resp.TotalCandidates)
	assert.True(t, resp.Truncated)
}

func TestMatchPart_InvalidParams(t *testing.T) {
	s := testServer(t)

	result, err := s.handleMatchPart(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(`{"footprint": 7}`)},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestFilterComponents(t *testing.T) {
	s := testServer(t)

	var resp FilterResponse
	call(t, s.handleFilterComponents, FilterParams{Query: "0603 1"}, &resp)
	assert.Equal(t, []string{"0603_R_10k"}, resp.Names)
	assert.Equal(t, "*0603*1*", resp.Pattern)

	var hidden FilterResponse
	call(t, s.handleFilterComponents, FilterParams{Query: "0603 1", IncludeHidden: true}, &hidden)
	assert.Equal(t, []string{"0603_R_10k", "0603_R_1k"}, hidden.Names)

	var none FilterResponse
	call(t, s.handleFilterComponents, FilterParams{Query: "nothing"}, &none)
	assert.Equal(t, []string{}, none.Names)
	assert.Equal(t, 0, none.Total)
}

func TestProcessFile_Grid(t *testing.T) {
	s := testServer(t)
	path := testhelpers.WritePnP(t, t.TempDir(), "board.csv",
		testhelpers.PnPRow{"R1", "0603_R", "10k", "90"},
		testhelpers.PnPRow{"U1", "TSSOP8", "NE555", "0"},
		testhelpers.PnPRow{"Q1", "SOT23", "BC847", "0"},
	)

	var resp ProcessFileResponse
	zero := 0
	result := call(t, s.handleProcessFile, ProcessFileParams{Path: path, MaxCandidates: &zero}, &resp)
	require.False(t, result.IsError)

	require.Equal(t, 3, resp.Rows)
	assert.Equal(t, "R1", resp.Records[0].ID)
	assert.Equal(t, types.ClassAutoExact, resp.Records[0].Classification)
	assert.Equal(t, types.ClassFiltered, resp.Records[1].Classification)
	assert.Equal(t, types.ClassNoMatch, resp.Records[2].Classification)
	assert.Len(t, resp.Records[2].Candidates, 3)
	assert.Equal(t, map[string]int{"AUTO_EXACT": 1, "FILTERED": 1, "NO_MATCH": 1}, resp.Summary)
}

func TestProcessFile_Session(t *testing.T) {
	s := testServer(t)
	path := filepath.Join(t.TempDir(), "wip.toml")
	f := &session.File{Records: []session.Record{
		{Item: "R1 | 0603_R | 10k", Marker: "MANUAL", Selection: "0805_R_10k"},
	}}
	require.NoError(t, f.Save(path))

	var resp ProcessFileResponse
	call(t, s.handleProcessFile, ProcessFileParams{Path: path}, &resp)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, types.ClassManual, resp.Records[0].Classification)
	assert.Equal(t, "0805_R_10k", resp.Records[0].Selection)
}

func TestProcessFile_Errors(t *testing.T) {
	s := testServer(t)

	result := call(t, s.handleProcessFile, ProcessFileParams{}, nil)
	assert.True(t, result.IsError)

	result = call(t, s.handleProcessFile, ProcessFileParams{Path: filepath.Join(t.TempDir(), "missing.csv")}, nil)
	assert.True(t, result.IsError)

	path := filepath.Join(t.TempDir(), "bad.toml")
	bad := &session.File{Records: []session.Record{{Item: "only | two"}}}
	require.NoError(t, bad.Save(path))
	result = call(t, s.handleProcessFile, ProcessFileParams{Path: path}, nil)
	assert.True(t, result.IsError, "malformed session items abort the batch")
}

func TestNewServer_LoadsLatestOrEmpty(t *testing.T) {
	cfg := config.Default(t.TempDir())
	s := NewServer(cfg, nil)

	st, err := s.currentStore()
	assert.Equal(t, 0, st.Len())
	assert.True(t, errors.Is(err, store.ErrNoDatabase))

	var resp MatchPartResponse
	call(t, s.handleMatchPart, MatchPartParams{Footprint: "0603_R", Comment: "10k"}, &resp)
	assert.Equal(t, types.ClassNoMatch, resp.Classification)
	assert.NotEmpty(t, resp.Warning)

	s.SetStore(store.New([]types.ComponentName{{Name: "0603_R_10k"}}))
	var after MatchPartResponse
	call(t, s.handleMatchPart, MatchPartParams{Footprint: "0603_R", Comment: "10k"}, &after)
	assert.Equal(t, types.ClassAutoExact, after.Classification)
	assert.Empty(t, after.Warning)
}
