package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/njsecure/orbit/diag"
	"github.com/njsecure/orbit/ingest"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
)

// printer renders command output as pterm text or JSON.
type printer struct {
	w      io.Writer
	format string
}

func (p printer) isJSON() bool { return p.format == formatJSON }

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) section(title string) {
	fmt.Fprint(p.w, pterm.DefaultSection.Sprintln(title))
}

func (p printer) info(format string, args ...any) {
	fmt.Fprint(p.w, pterm.Info.Sprintfln(format, args...))
}

func (p printer) success(format string, args ...any) {
	fmt.Fprint(p.w, pterm.Success.Sprintfln(format, args...))
}

func (p printer) warning(format string, args ...any) {
	fmt.Fprint(p.w, pterm.Warning.Sprintfln(format, args...))
}

func (p printer) table(header []string, rows [][]string) error {
	data := pterm.TableData{header}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	fmt.Fprintln(p.w, out)
	return nil
}

// countRows turns a count map into rows sorted by key.
func countRows[K ~string](counts map[K]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(counts[K(k)])})
	}
	return rows
}

// printResult renders a run: status line, object counts, diagnostic counts
// and the first maxDiags diagnostics.
func (p printer) printResult(res *ingest.Result, maxDiags int) error {
	p.section(fmt.Sprintf("%s (%s)", res.Source, res.Location))

	switch {
	case res.Aborted():
		p.warning("run aborted with %d diagnostic(s)", len(res.Diagnostics))
	case !res.IsValid():
		p.warning("accepted %d of %d object(s), %d rejected",
			res.ObjectCount(), res.Summary.Input, res.Summary.Rejected)
	default:
		p.success("accepted %d of %d object(s)", res.ObjectCount(), res.Summary.Input)
	}
	p.info("run %s, allow-list %s, %s", res.RunID, res.Summary.AllowListVersion, res.Summary.Elapsed())

	if len(res.Summary.ObjectCounts) > 0 {
		if err := p.table([]string{"Type", "Count"}, countRows(res.Summary.ObjectCounts)); err != nil {
			return err
		}
	}

	if n := len(res.Summary.Learned); n > 0 {
		p.success("learned %d new triple(s)", n)
	}

	if len(res.Diagnostics) == 0 {
		return nil
	}
	if err := p.table([]string{"Kind", "Count"}, countRows(res.Summary.KindCounts)); err != nil {
		return err
	}

	shown := res.Diagnostics
	if maxDiags >= 0 && len(shown) > maxDiags {
		shown = shown[:maxDiags]
	}
	if err := p.table([]string{"Severity", "Kind", "Ref", "Message", "Confidence"}, diagnosticRows(shown)); err != nil {
		return err
	}
	if hidden := len(res.Diagnostics) - len(shown); hidden > 0 {
		p.info("%d more diagnostic(s) not shown", hidden)
	}
	return nil
}

func diagnosticRows(diags diag.List) [][]string {
	rows := make([][]string, 0, len(diags))
	for _, d := range diags {
		confidence := ""
		if d.Confidence != nil {
			confidence = strconv.FormatFloat(*d.Confidence, 'f', 2, 64)
		}
		rows = append(rows, []string{string(d.Severity), string(d.Kind), d.Ref.String(), d.Message, confidence})
	}
	return rows
}
