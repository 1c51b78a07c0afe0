// Package mcp exposes component matching as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/pnpmatch/internal/batch"
	"github.com/standardbeagle/pnpmatch/internal/config"
	"github.com/standardbeagle/pnpmatch/internal/debug"
	"github.com/standardbeagle/pnpmatch/internal/grid"
	"github.com/standardbeagle/pnpmatch/internal/matcher"
	"github.com/standardbeagle/pnpmatch/internal/session"
	"github.com/standardbeagle/pnpmatch/internal/store"
	"github.com/standardbeagle/pnpmatch/internal/types"
	"github.com/standardbeagle/pnpmatch/internal/version"
)

// Server serves the matching tools. The component store is loaded once and
// can be swapped with SetStore; each tool call works on the store current at
// its start.
type Server struct {
	cfg       *config.Config
	server    *mcp.Server
	matcher   *matcher.Matcher
	processor *batch.Processor

	mu       sync.RWMutex
	store    *store.Store
	storeErr error
}

// NewServer creates a server. A nil store loads the latest database from
// the configured directory, falling back to an empty store.
func NewServer(cfg *config.Config, st *store.Store) *Server {
	var storeErr error
	if st == nil {
		st, storeErr = store.LoadLatestOrEmpty(cfg.Store.Dir, cfg.Store.Pattern)
	}

	m := matcher.New(cfg.Match.SizeCodes)
	s := &Server{
		cfg:       cfg,
		matcher:   m,
		processor: batch.NewProcessor(m, batch.StrategyFor(cfg.Batch)),
		store:     st,
		storeErr:  storeErr,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "pnpmatch",
		Version: version.Version,
	}, nil)
	s.registerTools()

	debug.LogMCP("server ready with %d component names\n", st.Len())
	return s
}

// SetStore replaces the component store used by later tool calls.
func (s *Server) SetStore(st *store.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = st
	s.storeErr = nil
}

func (s *Server) currentStore() (*store.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store, s.storeErr
}

// Start runs the server on stdio until ctx ends or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	debug.LogMCP("starting MCP server with stdio transport\n")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "match_part",
		Description: "Resolve one PnP footprint/comment pair to canonical component names. Tries footprint_comment exactly, then a glob filter on size code + comment, then the comment alone.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"footprint": {
					Type:        "string",
					Description: "Footprint text from the PnP file, e.g. \"0603_R\" or \"CAPC0805(2012)100_L\"",
				},
				"comment": {
					Type:        "string",
					Description: "Comment/value text from the PnP file, e.g. \"10k\"",
				},
				"max": {
					Type:        "integer",
					Description: "Maximum candidates returned (0 = all)",
				},
			},
			Required: []string{"footprint", "comment"},
		},
	}, s.handleMatchPart)

	s.server.AddTool(&mcp.Tool{
		Name:        "filter_components",
		Description: "Search component names with whitespace-separated keywords that must appear in order, case-insensitively.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Keywords, e.g. \"0603 10k\". Empty matches everything.",
				},
				"include_hidden": {
					Type:        "boolean",
					Description: "Also search hidden names",
				},
				"max": {
					Type:        "integer",
					Description: "Maximum names returned (0 = all)",
				},
			},
		},
	}, s.handleFilterComponents)

	s.server.AddTool(&mcp.Tool{
		Name:        "process_file",
		Description: "Match every row of a PnP file (CSV/TSV) or a saved session (.toml) and return one record per row in file order.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "PnP file or session file path",
				},
				"max_candidates": {
					Type:        "integer",
					Description: "Maximum candidates per row (default from config, 0 = all)",
				},
			},
			Required: []string{"path"},
		},
	}, s.handleProcessFile)
}

// MatchPartParams are the match_part arguments.
type MatchPartParams struct {
	Footprint string `json:"footprint"`
	Comment   string `json:"comment"`
	Max       int    `json:"max,omitempty"`
}

// MatchPartResponse is the match_part result.
type MatchPartResponse struct {
	Footprint       string               `json:"footprint"`
	Comment         string               `json:"comment"`
	Classification  types.Classification `json:"classification"`
	Selection       string               `json:"selection"`
	Candidates      []string             `json:"candidates"`
	TotalCandidates int                  `json:"total_candidates"`
	Truncated       bool                 `json:"truncated,omitempty"`
	Warning         string               `json:"warning,omitempty"`
}

func (s *Server) handleMatchPart(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params MatchPartParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("match_part", fmt.Errorf("invalid parameters: %w", err))
	}

	st, storeErr := s.currentStore()
	result := s.matcher.Match(params.Footprint, params.Comment, st.Snapshot())
	candidates, truncated := truncate(result.Candidates, params.Max)

	resp := MatchPartResponse{
		Footprint:       params.Footprint,
		Comment:         params.Comment,
		Classification:  result.Classification,
		Selection:       result.Selection,
		Candidates:      nonNil(candidates),
		TotalCandidates: len(result.Candidates),
		Truncated:       truncated,
	}
	if storeErr != nil {
		resp.Warning = storeErr.Error()
	}
	return createJSONResponse(resp)
}

// FilterParams are the filter_components arguments.
type FilterParams struct {
	Query         string `json:"query"`
	IncludeHidden bool   `json:"include_hidden,omitempty"`
	Max           int    `json:"max,omitempty"`
}

// FilterResponse is the filter_components result.
type FilterResponse struct {
	Query     string   `json:"query"`
	Pattern   string   `json:"pattern"`
	Names     []string `json:"names"`
	Total     int      `json:"total"`
	Truncated bool     `json:"truncated,omitempty"`
}

func (s *Server) handleFilterComponents(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params FilterParams
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return createErrorResponse("filter_components", fmt.Errorf("invalid parameters: %w", err))
		}
	}

	st, _ := s.currentStore()
	all := st.Filtered(params.Query, !params.IncludeHidden)
	names, truncated := truncate(all, params.Max)

	return createJSONResponse(FilterResponse{
		Query:     params.Query,
		Pattern:   store.QueryPattern(params.Query),
		Names:     nonNil(names),
		Total:     len(all),
		Truncated: truncated,
	})
}

// ProcessFileParams are the process_file arguments.
type ProcessFileParams struct {
	Path          string `json:"path"`
	MaxCandidates *int   `json:"max_candidates,omitempty"`
}

// ProcessFileResponse is the process_file result.
type ProcessFileResponse struct {
	Path        string              `json:"path"`
	Rows        int                 `json:"rows"`
	Summary     map[string]int      `json:"summary"`
	Records     []types.MatchRecord `json:"records"`
	Diagnostics []string            `json:"diagnostics,omitempty"`
	Warning     string              `json:"warning,omitempty"`
}

func (s *Server) handleProcessFile(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params ProcessFileParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("process_file", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Path == "" {
		return createErrorResponse("process_file", errors.New("path is required"))
	}

	rows, err := s.loadRows(params.Path)
	if err != nil {
		return createErrorResponse("process_file", err)
	}

	// each file is a new run
	st, storeErr := s.currentStore()
	report, err := s.processor.Run(ctx, rows, st, true)
	if err != nil {
		return createErrorResponse("process_file", err)
	}
	records := report.Records

	maxCandidates := s.cfg.Output.MaxCandidates
	if params.MaxCandidates != nil {
		maxCandidates = *params.MaxCandidates
	}

	resp := ProcessFileResponse{
		Path:    params.Path,
		Rows:    len(records),
		Summary: make(map[string]int),
		Records: records,
	}
	for i := range records {
		resp.Summary[records[i].Classification.String()]++
		records[i].Candidates, _ = truncate(records[i].Candidates, maxCandidates)
	}
	for _, d := range report.Diagnostics {
		resp.Diagnostics = append(resp.Diagnostics, d.Error())
	}
	if storeErr != nil {
		resp.Warning = storeErr.Error()
	}
	return createJSONResponse(resp)
}

// loadRows reads a saved session (.toml) or a PnP grid.
func (s *Server) loadRows(path string) ([]batch.RowSource, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		f, err := session.Load(path)
		if err != nil {
			return nil, err
		}
		return batch.FromSession(f), nil
	}

	g, err := grid.ReadFile(path, s.cfg.Columns.DelimiterRune())
	if err != nil {
		return nil, err
	}
	return batch.FromGrid(g, s.cfg.Columns), nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
