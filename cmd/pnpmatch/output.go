package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/standardbeagle/pnpmatch/internal/config"
	"github.com/standardbeagle/pnpmatch/internal/types"
)

// batchReport is the JSON form of a batch run.
type batchReport struct {
	Rows       int                 `json:"rows"`
	Exportable int                 `json:"exportable"`
	Summary    map[string]int      `json:"summary"`
	Records    []types.MatchRecord `json:"records"`
}

func limit(list []string, max int) ([]string, int) {
	if max <= 0 || len(list) <= max {
		return list, 0
	}
	return list[:max], len(list) - max
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRecords writes one block per row. Display strings are already padded
// so the item column lines up.
func printRecords(w io.Writer, out config.Output, records []types.MatchRecord) error {
	summary := make(map[string]int)
	for i := range records {
		summary[records[i].Classification.String()]++
	}

	if out.Format == "json" {
		for i := range records {
			records[i].Candidates, _ = limit(records[i].Candidates, out.MaxCandidates)
		}
		return writeJSON(w, batchReport{
			Rows:       len(records),
			Exportable: exportable(records),
			Summary:    summary,
			Records:    records,
		})
	}

	for _, r := range records {
		fmt.Fprintf(w, "%s  %-10s  %s\n", r.Display, r.Classification, r.Selection)
		shown, more := limit(r.Candidates, out.MaxCandidates)
		if r.Classification == types.ClassFiltered || r.Classification == types.ClassNoMatch {
			for _, cand := range shown {
				fmt.Fprintf(w, "    %s\n", cand)
			}
			if more > 0 {
				fmt.Fprintf(w, "    ... %d more\n", more)
			}
		}
	}

	parts := make([]string, 0, 5)
	for _, c := range []types.Classification{
		types.ClassAutoExact, types.ClassFiltered, types.ClassNoMatch, types.ClassManual, types.ClassRemoved,
	} {
		if n := summary[c.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", c, n))
		}
	}
	fmt.Fprintf(w, "\n%d rows, %d exportable (%s)\n", len(records), exportable(records), strings.Join(parts, " "))
	return nil
}

func printNames(w io.Writer, out config.Output, names []string) error {
	if out.Format == "json" {
		if names == nil {
			names = []string{}
		}
		return writeJSON(w, names)
	}
	for _, n := range names {
		fmt.Fprintln(w, n)
	}
	return nil
}

type componentJSON struct {
	Name   string `json:"name"`
	Hidden bool   `json:"hidden"`
}

func printComponents(w io.Writer, out config.Output, list []types.ComponentName) error {
	if out.Format == "json" {
		items := make([]componentJSON, 0, len(list))
		for _, n := range list {
			items = append(items, componentJSON{Name: n.Name, Hidden: n.Hidden})
		}
		return writeJSON(w, items)
	}
	for _, n := range list {
		flag := ""
		if n.Hidden {
			flag = "  (hidden)"
		}
		fmt.Fprintf(w, "%s%s\n", n.Name, flag)
	}
	return nil
}
