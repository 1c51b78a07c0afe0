package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	pnperrors "github.com/standardbeagle/pnpmatch/internal/errors"
)

var (
	ErrUnclosedBlock   = errors.New("unclosed block")
	ErrUnexpectedClose = errors.New("unexpected '}'")
	ErrUnterminated    = errors.New("unterminated string or comment")
)

// LoadKDLFile applies the KDL file at path on top of cfg. A missing file is
// not an error; the returned bool reports whether the file existed.
func LoadKDLFile(path string, cfg *Config) (bool, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := applyKDL(string(content), cfg); err != nil {
		return true, fmt.Errorf("%s: %w", path, err)
	}

	// Relative store dirs resolve against the directory holding the config file
	if cfg.Store.Dir != "" && !filepath.IsAbs(cfg.Store.Dir) {
		cfg.Store.Dir = filepath.Clean(filepath.Join(filepath.Dir(path), cfg.Store.Dir))
	}
	return true, nil
}

// parseKDL parses content over the built-in defaults
func parseKDL(content string) (*Config, error) {
	defaultRoot, _ := os.Getwd()
	cfg := Default(defaultRoot)
	if err := applyKDL(content, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyKDL(content string, cfg *Config) error {
	// kdl-go accepts a document that ends inside a block, so a truncated
	// file would apply silently
	if err := checkBlocks(content); err != nil {
		return pnperrors.NewConfigError("syntax", "", err)
	}

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children { // project { name "board-a" }
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "columns":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "id":
					if v, ok := firstIntArg(cn); ok {
						cfg.Columns.ID = v
					}
				case "footprint":
					if v, ok := firstIntArg(cn); ok {
						cfg.Columns.Footprint = v
					}
				case "comment":
					if v, ok := firstIntArg(cn); ok {
						cfg.Columns.Comment = v
					}
				case "rotation":
					if v, ok := firstIntArg(cn); ok {
						cfg.Columns.Rotation = v
					}
				case "header_rows":
					if v, ok := firstIntArg(cn); ok {
						cfg.Columns.HeaderRows = v
					}
				case "delimiter":
					if s, ok := firstStringArg(cn); ok {
						cfg.Columns.Delimiter = s
					}
				}
			}
		case "store":
			for _, cn := range n.Children {
				assignSimpleString(cn, "dir", func(v string) { cfg.Store.Dir = v })
				assignSimpleString(cn, "pattern", func(v string) { cfg.Store.Pattern = v })
				assignSimpleString(cn, "file_prefix", func(v string) { cfg.Store.FilePrefix = v })
				assignSimpleString(cn, "timestamp_layout", func(v string) { cfg.Store.TimestampLayout = v })
			}
		case "match":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "size_codes":
					if codes := collectStringArgs(cn); len(codes) > 0 {
						cfg.Match.SizeCodes = codes
					}
				}
			}
		case "batch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "parallel":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Batch.Parallel = b
					}
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Batch.Workers = v
					}
				case "chunk_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Batch.ChunkSize = v
					}
				}
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watch.Enabled = b
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Watch.DebounceMs = v
					}
				}
			}
		case "output":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "format":
					if s, ok := firstStringArg(cn); ok {
						cfg.Output.Format = s
					}
				case "max_candidates":
					if v, ok := firstIntArg(cn); ok {
						cfg.Output.MaxCandidates = v
					}
				}
			}
		default:
			log.Printf("WARNING: unknown section '%s' in KDL config", nodeName(n))
		}
	}

	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		log.Printf("WARNING: invalid integer value for '%s' in KDL config, got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// collectStringArgs reads inline arguments (size_codes "0402" "0603") or,
// failing that, block children (size_codes { "0402"; "0603" }).
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				// In block format the node name itself is the string value
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// checkBlocks verifies that every '{' outside strings and comments has a
// matching '}' and that strings and block comments are terminated.
func checkBlocks(content string) error {
	var open []int // line of each unclosed '{'
	line := 1
	for i := 0; i < len(content); i++ {
		switch c := content[i]; {
		case c == '\n':
			line++
		case c == '"':
			end := strings.IndexFunc(content[i+1:], quoteEnd(content[i+1:]))
			if end < 0 {
				return fmt.Errorf("line %d: %w", line, ErrUnterminated)
			}
			line += strings.Count(content[i:i+1+end], "\n")
			i += 1 + end
		case c == 'r' && rawStringStart(content[i:]) > 0:
			hashes := rawStringStart(content[i:]) - 2
			closer := "\"" + strings.Repeat("#", hashes)
			body := i + 2 + hashes
			end := strings.Index(content[body:], closer)
			if end < 0 {
				return fmt.Errorf("line %d: %w", line, ErrUnterminated)
			}
			line += strings.Count(content[i:body+end], "\n")
			i = body + end + len(closer) - 1
		case c == '/' && strings.HasPrefix(content[i:], "//"):
			nl := strings.IndexByte(content[i:], '\n')
			if nl < 0 {
				return blocksResult(open)
			}
			i += nl - 1
		case c == '/' && strings.HasPrefix(content[i:], "/*"):
			end, lines := blockCommentEnd(content[i:])
			if end < 0 {
				return fmt.Errorf("line %d: %w", line, ErrUnterminated)
			}
			line += lines
			i += end - 1
		case c == '{':
			open = append(open, line)
		case c == '}':
			if len(open) == 0 {
				return fmt.Errorf("line %d: %w", line, ErrUnexpectedClose)
			}
			open = open[:len(open)-1]
		}
	}
	return blocksResult(open)
}

func blocksResult(open []int) error {
	if len(open) > 0 {
		return fmt.Errorf("line %d: %w", open[len(open)-1], ErrUnclosedBlock)
	}
	return nil
}

// quoteEnd returns a matcher for the closing quote of an escaped string body.
func quoteEnd(body string) func(rune) bool {
	escaped := false
	return func(r rune) bool {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			return true
		}
		return false
	}
}

// rawStringStart returns the length of a raw string opener (r"  r#"  r##" ...)
// at the start of s, or 0.
func rawStringStart(s string) int {
	n := 1
	for n < len(s) && s[n] == '#' {
		n++
	}
	if n < len(s) && s[n] == '"' {
		return n + 1
	}
	return 0
}

// blockCommentEnd returns the offset just past a (nestable) /* */ comment at
// the start of s and the newlines inside it, or -1.
func blockCommentEnd(s string) (int, int) {
	depth, lines := 0, 0
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "/*"):
			depth++
			i++
		case strings.HasPrefix(s[i:], "*/"):
			depth--
			i++
			if depth == 0 {
				return i + 1, lines
			}
		case s[i] == '\n':
			lines++
		}
	}
	return -1, lines
}
