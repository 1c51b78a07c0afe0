// Package batch resolves every row of a PnP file or saved session to a
// match record.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/standardbeagle/pnpmatch/internal/cache"
	"github.com/standardbeagle/pnpmatch/internal/debug"
	pnperrors "github.com/standardbeagle/pnpmatch/internal/errors"
	"github.com/standardbeagle/pnpmatch/internal/matcher"
	"github.com/standardbeagle/pnpmatch/internal/store"
	"github.com/standardbeagle/pnpmatch/internal/types"
)

// Processor runs batches. The cache persists across Process calls as long
// as the store fingerprint stays the same; NewRun discards it.
//
// A Processor runs one batch at a time.
type Processor struct {
	matcher  cache.Matcher
	strategy Strategy
	cache    *cache.MatchCache

	runMu sync.Mutex

	diagMu      sync.Mutex
	diagnostics []*pnperrors.RowMatchError
}

// NewProcessor creates a processor. A nil strategy means Sequential.
func NewProcessor(m cache.Matcher, strategy Strategy) *Processor {
	if strategy == nil {
		strategy = Sequential{}
	}
	return &Processor{
		matcher:  m,
		strategy: strategy,
		cache:    cache.New(),
	}
}

// job is a row after field extraction.
type job struct {
	id        string
	footprint string
	comment   string
	rotation  string
	display   string
	restore   restorer
	err       error
}

// Process resolves rows against st and returns one record per row, in input
// order. A ParseError from a saved row aborts the batch; any other per-row
// failure degrades that row to NO_MATCH and is kept in Diagnostics. When ctx
// is cancelled, no records are returned.
func (p *Processor) Process(ctx context.Context, rows []RowSource, st *store.Store) ([]types.MatchRecord, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	return p.process(ctx, rows, st)
}

// Report is the outcome of one batch.
type Report struct {
	Records     []types.MatchRecord
	Diagnostics []*pnperrors.RowMatchError
}

// Run is Process returning the records together with the diagnostics of the
// same run. With fresh set the cache is discarded first, as NewRun does.
// Reset, matching and the diagnostics read all happen under the run lock.
func (p *Processor) Run(ctx context.Context, rows []RowSource, st *store.Store, fresh bool) (*Report, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if fresh {
		p.cache.Reset()
	}
	records, err := p.process(ctx, rows, st)
	if err != nil {
		return nil, err
	}
	return &Report{Records: records, Diagnostics: p.Diagnostics()}, nil
}

func (p *Processor) process(ctx context.Context, rows []RowSource, st *store.Store) ([]types.MatchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if st == nil {
		st = store.Empty()
	}
	p.resetDiagnostics()
	start := time.Now()

	jobs, err := extract(rows)
	if err != nil {
		return nil, err
	}
	layout(jobs)

	snap := st.Snapshot()
	p.cache.Bind(snap.Fingerprint())

	out := make([]types.MatchRecord, len(jobs))
	row := func(i int, resolve resolveFunc) {
		out[i] = p.resolveRow(i, &jobs[i], snap, resolve)
	}
	if err := p.strategy.run(ctx, len(jobs), p.cache, snap, p.matcher, row); err != nil {
		debug.LogBatch("batch abandoned after %v: %v\n", time.Since(start), err)
		return nil, err
	}

	stats := p.cache.Stats()
	debug.LogBatch("%s batch: %d rows, %d visible names, %d cache entries, %d row errors in %v\n",
		p.strategy.Name(), len(out), snap.Len(), stats.Entries, len(p.Diagnostics()), time.Since(start))
	return out, nil
}

// extract pulls the fields out of every row before any matching starts.
func extract(rows []RowSource) ([]job, error) {
	jobs := make([]job, len(rows))
	for i, r := range rows {
		j := &jobs[i]
		id, footprint, comment, err := r.ExtractFootprintComment()
		if err != nil {
			var parseErr *pnperrors.ParseError
			if errors.As(err, &parseErr) {
				parseErr.RowIndex = i
				return nil, parseErr
			}
			j.err = err
		}
		j.id, j.footprint, j.comment = id, footprint, comment
		j.rotation = r.Rotation()
		if rs, ok := r.(restorer); ok {
			j.restore = rs
		}
	}
	return jobs, nil
}

// layout computes the id and footprint column widths once for the whole
// batch and pads every display string to them.
func layout(jobs []job) {
	idWidth, fpWidth := 0, 0
	for i := range jobs {
		idWidth = max(idWidth, utf8.RuneCountInString(jobs[i].id))
		fpWidth = max(fpWidth, utf8.RuneCountInString(jobs[i].footprint))
	}
	for i := range jobs {
		j := &jobs[i]
		j.display = fmt.Sprintf("%-*s | %-*s | %s", idWidth, j.id, fpWidth, j.footprint, j.comment)
	}
}

func (p *Processor) resolveRow(i int, j *job, snap *store.Snapshot, resolve resolveFunc) (rec types.MatchRecord) {
	rec = types.MatchRecord{
		RowIndex:  i,
		ID:        j.id,
		Footprint: j.footprint,
		Comment:   j.comment,
		Rotation:  j.rotation,
		Display:   j.display,
	}

	defer func() {
		if r := recover(); r != nil {
			p.degrade(&rec, snap, fmt.Errorf("panic: %v", r))
		}
	}()

	if j.err != nil {
		p.degrade(&rec, snap, j.err)
		return rec
	}

	rec.Apply(resolve(j.footprint, j.comment))
	if j.restore != nil {
		j.restore.Restore(&rec)
	}
	return rec
}

// degrade turns rec into a NO_MATCH row offering every visible name.
func (p *Processor) degrade(rec *types.MatchRecord, snap *store.Snapshot, cause error) {
	err := pnperrors.NewRowMatchError(rec.RowIndex, rec.Footprint, rec.Comment, cause)
	debug.LogBatch("%v\n", err)
	rec.Apply(matcher.NoMatch(snap))

	p.diagMu.Lock()
	p.diagnostics = append(p.diagnostics, err)
	p.diagMu.Unlock()
}

func (p *Processor) resetDiagnostics() {
	p.diagMu.Lock()
	p.diagnostics = nil
	p.diagMu.Unlock()
}

// Diagnostics returns the row errors of the last run, ordered by row.
func (p *Processor) Diagnostics() []*pnperrors.RowMatchError {
	p.diagMu.Lock()
	defer p.diagMu.Unlock()

	out := append([]*pnperrors.RowMatchError(nil), p.diagnostics...)
	sort.Slice(out, func(i, j int) bool { return out[i].RowIndex < out[j].RowIndex })
	return out
}

// Cache returns the processor's match cache.
func (p *Processor) Cache() *cache.MatchCache {
	return p.cache
}

// Strategy returns the scheduling strategy.
func (p *Processor) Strategy() Strategy {
	return p.strategy
}

// NewRun discards cached results, as needed when a new PnP file is loaded.
func (p *Processor) NewRun() {
	p.runMu.Lock()
	defer p.runMu.Unlock()
	p.cache.Reset()
	p.resetDiagnostics()
}
