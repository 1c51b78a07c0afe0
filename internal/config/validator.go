package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	pnperrors "github.com/standardbeagle/pnpmatch/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateColumns(&cfg.Columns); err != nil {
		return pnperrors.NewConfigError("columns", "", err)
	}

	if err := v.validateStore(&cfg.Store); err != nil {
		return pnperrors.NewConfigError("store", cfg.Store.Pattern, err)
	}

	if err := v.validateMatch(&cfg.Match); err != nil {
		return pnperrors.NewConfigError("match.size_codes", strings.Join(cfg.Match.SizeCodes, ","), err)
	}

	if err := v.validateBatch(&cfg.Batch); err != nil {
		return pnperrors.NewConfigError("batch", "", err)
	}

	if err := v.validateOutput(&cfg.Output); err != nil {
		return pnperrors.NewConfigError("output.format", cfg.Output.Format, err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateColumns(c *Columns) error {
	for name, idx := range map[string]int{
		"id":        c.ID,
		"footprint": c.Footprint,
		"comment":   c.Comment,
		"rotation":  c.Rotation,
	} {
		if idx < 0 {
			return fmt.Errorf("%s column cannot be negative, got %d", name, idx)
		}
	}
	if c.HeaderRows < 0 {
		return fmt.Errorf("header_rows cannot be negative, got %d", c.HeaderRows)
	}
	if c.Footprint == c.Comment {
		return fmt.Errorf("footprint and comment share column %d", c.Footprint)
	}
	if len([]rune(c.Delimiter)) > 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter)
	}
	return nil
}

func (v *Validator) validateStore(s *Store) error {
	if s.Pattern != "" && !doublestar.ValidatePattern(s.Pattern) {
		return fmt.Errorf("invalid store pattern %q", s.Pattern)
	}
	if s.TimestampLayout != "" {
		// The layout must round-trip to a fixed width or filename order breaks
		a := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC).Format(s.TimestampLayout)
		b := time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC).Format(s.TimestampLayout)
		if len(a) != len(b) {
			return fmt.Errorf("timestamp layout %q is not fixed-width", s.TimestampLayout)
		}
	}
	return nil
}

func (v *Validator) validateMatch(m *Match) error {
	if len(m.SizeCodes) == 0 {
		return errors.New("at least one size code is required")
	}
	for _, code := range m.SizeCodes {
		if strings.TrimSpace(code) == "" {
			return errors.New("size codes cannot be blank")
		}
	}
	return nil
}

func (v *Validator) validateBatch(b *Batch) error {
	// Workers: 0 means auto-detect (set by smart defaults)
	if b.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", b.Workers)
	}
	if b.ChunkSize < 0 {
		return fmt.Errorf("chunk_size cannot be negative, got %d", b.ChunkSize)
	}
	return nil
}

func (v *Validator) validateOutput(o *Output) error {
	switch o.Format {
	case "", "table", "json":
	default:
		return fmt.Errorf("unknown output format %q", o.Format)
	}
	if o.MaxCandidates < 0 {
		return fmt.Errorf("max_candidates cannot be negative, got %d", o.MaxCandidates)
	}
	return nil
}

// setSmartDefaults applies smart defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	// cores-1 leaves headroom for the UI thread, minimum of 1
	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = cfg.Batch.WorkerCount()
	}

	if cfg.Store.Pattern == "" {
		cfg.Store.Pattern = DefaultStorePattern
	}
	if cfg.Store.FilePrefix == "" {
		cfg.Store.FilePrefix = DefaultStoreFilePrefix
	}
	if cfg.Store.TimestampLayout == "" {
		cfg.Store.TimestampLayout = DefaultTimestampLayout
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = cfg.Project.Root
	}

	if cfg.Output.Format == "" {
		cfg.Output.Format = "table"
	}

	if cfg.Watch.DebounceMs <= 0 {
		cfg.Watch.DebounceMs = 300
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
