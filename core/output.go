package core

import (
	"encoding/json"
	"fmt"
	"os"
)

// Printer handles all display output for the CLI.
type Printer struct {
	JSON    bool
	Verbose bool
	Writer  *os.File
}

// NewPrinter creates a default Printer writing to stdout.
func NewPrinter(jsonMode, verbose bool) *Printer {
	return &Printer{JSON: jsonMode, Verbose: verbose, Writer: os.Stdout}
}

// PrintReport renders a finalized RunReport to the configured output.
func (p *Printer) PrintReport(r *RunReport) {
	if p.JSON {
		b, _ := json.MarshalIndent(r, "", "  ")
		fmt.Fprintln(p.Writer, string(b))
		return
	}
	p.printText(r)
}

func (p *Printer) printText(r *RunReport) {
	if p.Verbose {
		for _, o := range r.Outcomes {
			p.printOutcome(o)
		}
		fmt.Fprintln(p.Writer)
	}

	s := r.Summary
	fmt.Fprintf(p.Writer, "Matched %d %s, %d missing, %d failed.\n",
		s.Matched, plural(s.Matched, "file", "files"),
		s.MissingMedia, s.ApplyFailed+s.MalformedSidecar)
	if s.MissingOriginals > 0 {
		fmt.Fprintf(p.Writer, "%d edited %s had no pre-edit original.\n",
			s.MissingOriginals, plural(s.MissingOriginals, "file", "files"))
	}
	if r.DryRun {
		fmt.Fprintln(p.Writer, "Dry-run: no files were modified or moved.")
	}
}

func (p *Printer) printOutcome(o RestoreOutcome) {
	switch o.Kind {
	case OutcomeMatched:
		note := ""
		if o.Applied.EmbedError != "" {
			note = " (timestamps only: " + o.Applied.EmbedError + ")"
		}
		fmt.Fprintf(p.Writer, "✓ %s -> %s%s\n", o.Media, o.Dest, note)
	case OutcomeMissingMedia:
		fmt.Fprintf(p.Writer, "? %s: no media found for %q\n", o.Sidecar, o.Declared)
	case OutcomeMalformedSidecar:
		fmt.Fprintf(p.Writer, "✗ %s: %s\n", o.Sidecar, o.Reason)
	case OutcomeApplyFailed:
		fmt.Fprintf(p.Writer, "✗ %s: %s\n", o.Media, o.Reason)
	}
}

// PrintInfo prints an info line (suppressed in JSON mode).
func (p *Printer) PrintInfo(msg string) {
	if !p.JSON {
		fmt.Fprintln(p.Writer, msg)
	}
}

// PrintError prints an error to stderr.
func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, "✗ Error: "+msg)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
