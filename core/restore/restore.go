// Package restore drives the pipeline: it enumerates sidecars, runs
// extract → match → apply → organize for each one, and accumulates the
// RunReport.
package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/axatjpr/photometa-restore/core"
	"github.com/axatjpr/photometa-restore/core/apply"
	"github.com/axatjpr/photometa-restore/core/match"
	"github.com/axatjpr/photometa-restore/core/organize"
	"github.com/axatjpr/photometa-restore/core/sidecar"
)

// Coordinator owns one run over a source tree. Each sidecar's pipeline
// completes before the next begins, so no two stages ever race over a file.
type Coordinator struct {
	cfg core.Config

	matchedRoot string
	rawRoot     string
	logs        *runLogs

	// Per-directory state, keyed by path relative to the source root.
	indexes map[string]*match.Index
	taken   map[string]map[string]struct{}
}

// New builds a Coordinator for the given configuration.
func New(cfg core.Config) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		indexes: make(map[string]*match.Index),
		taken:   make(map[string]map[string]struct{}),
	}
}

// Run processes every sidecar under the source directory and returns the
// finalized report. The only fatal error is failing to enumerate the
// source tree (or to create the destination trees); per-sidecar failures
// are isolated into their outcomes. Cancellation is honoured between
// sidecars, never mid-file, so the report stays consistent.
func (c *Coordinator) Run(ctx context.Context) (*core.RunReport, error) {
	report := &core.RunReport{
		SourceDir: c.cfg.SourceDir,
		DryRun:    c.cfg.DryRun,
		StartedAt: time.Now(),
	}

	sidecars, err := c.discover()
	if err != nil {
		return nil, fmt.Errorf("enumerating source directory: %w", err)
	}

	if !c.cfg.DryRun {
		c.matchedRoot, c.rawRoot, err = organize.EnsureTrees(c.cfg)
		if err != nil {
			return nil, fmt.Errorf("creating destination trees: %w", err)
		}
		c.logs, err = openRunLogs(c.cfg)
		if err != nil {
			return nil, fmt.Errorf("creating log files: %w", err)
		}
		defer c.logs.close()
	} else {
		c.matchedRoot = filepath.Join(c.cfg.SourceDir, c.cfg.MatchedDirName)
		c.rawRoot = filepath.Join(c.cfg.SourceDir, c.cfg.EditedRawDirName)
	}

	cancelled := false
	for _, rel := range sidecars {
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if cancelled {
			break
		}
		out := c.process(rel)
		report.Outcomes = append(report.Outcomes, out)
		c.logOutcome(out)
	}

	report.FinishedAt = time.Now()
	report.Finalize()
	if cancelled {
		return report, ctx.Err()
	}
	return report, nil
}

// discover walks the source tree for sidecar files, skipping our own
// output trees. Shorter names sort first so plain originals are consumed
// before their numbered duplicates.
func (c *Coordinator) discover() ([]string, error) {
	root := filepath.Clean(c.cfg.SourceDir)
	skip := map[string]struct{}{
		c.cfg.MatchedDirName:   {},
		c.cfg.EditedRawDirName: {},
		c.cfg.LogsDirName:      {},
	}

	var found []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if _, ok := skip[d.Name()]; ok && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(d.Name()) != ".json" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		found = append(found, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool {
		a, b := filepath.Base(found[i]), filepath.Base(found[j])
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return found[i] < found[j]
	})
	return found, nil
}

// process runs the full pipeline for one sidecar and produces its single
// terminal outcome.
func (c *Coordinator) process(rel string) core.RestoreOutcome {
	out := core.RestoreOutcome{Sidecar: rel}
	absSidecar := filepath.Join(c.cfg.SourceDir, rel)

	rec, err := sidecar.Load(absSidecar)
	if err != nil {
		out.Kind = core.OutcomeMalformedSidecar
		out.Reason = err.Error()
		return out
	}
	out.Declared = rec.Title

	dir := filepath.Dir(rel)
	ix, err := c.index(dir)
	if err != nil {
		out.Kind = core.OutcomeApplyFailed
		out.Reason = err.Error()
		return out
	}

	cand, ok := match.Resolve(rec, filepath.Base(rel), ix, c.cfg)
	if !ok {
		out.Kind = core.OutcomeMissingMedia
		return out
	}
	out.Media = filepath.Join(dir, cand.Name)
	out.Tier = cand.Tier.String()
	out.OriginalMissing = cand.OriginalMissing

	destName := organize.UniqueName(cand.Name, c.takenIn(dir))
	destAbs := filepath.Join(c.matchedRoot, dir, destName)
	destRel, _ := filepath.Rel(c.cfg.SourceDir, destAbs)

	if c.cfg.DryRun {
		c.claim(dir, destName)
		ix.Remove(cand.Name)
		if cand.OriginalName != "" {
			ix.Remove(cand.OriginalName)
		}
		out.Kind = core.OutcomeMatched
		out.Dest = destRel
		return out
	}

	absMedia := filepath.Join(c.cfg.SourceDir, dir, cand.Name)
	applied, err := apply.Apply(absMedia, rec, c.cfg)
	out.Applied = applied
	if err != nil {
		out.Kind = core.OutcomeApplyFailed
		out.Reason = err.Error()
		return out
	}

	if err := organize.MoveFile(absMedia, destAbs, c.cfg); err != nil {
		out.Kind = core.OutcomeApplyFailed
		out.Reason = fmt.Sprintf("moving to matched tree: %v", err)
		return out
	}
	c.claim(dir, destName)
	ix.Remove(cand.Name)

	if cand.Edited && cand.OriginalName != "" {
		rawAbs := filepath.Join(c.rawRoot, dir, cand.OriginalName)
		absOrig := filepath.Join(c.cfg.SourceDir, dir, cand.OriginalName)
		if err := organize.MoveFile(absOrig, rawAbs, c.cfg); err != nil {
			out.Kind = core.OutcomeApplyFailed
			out.Dest = destRel
			out.Reason = fmt.Sprintf("moving pre-edit original: %v", err)
			return out
		}
		ix.Remove(cand.OriginalName)
	}

	// The sidecar has served its purpose; removing it is what makes a
	// second run over the same tree a no-op.
	if err := os.Remove(absSidecar); err != nil {
		c.logs.errorf("removing sidecar %s: %v", rel, err)
	}

	out.Kind = core.OutcomeMatched
	out.Dest = destRel
	return out
}

// index returns the cached directory listing for dir, reading it on first
// use. Moves performed later remove names through the Index, so the cache
// never goes stale within a run.
func (c *Coordinator) index(dir string) (*match.Index, error) {
	if ix, ok := c.indexes[dir]; ok {
		return ix, nil
	}
	entries, err := os.ReadDir(filepath.Join(c.cfg.SourceDir, dir))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	ix := match.NewIndex(names)
	c.indexes[dir] = ix
	return ix, nil
}

func (c *Coordinator) takenIn(dir string) map[string]struct{} {
	t, ok := c.taken[dir]
	if !ok {
		t = make(map[string]struct{})
		c.taken[dir] = t
	}
	return t
}

func (c *Coordinator) claim(dir, name string) {
	c.takenIn(dir)[name] = struct{}{}
}

// logOutcome mirrors each outcome into the missing-files and errors
// artifacts.
func (c *Coordinator) logOutcome(out core.RestoreOutcome) {
	switch out.Kind {
	case core.OutcomeMissingMedia:
		c.logs.missingf("%s (sidecar %s)", out.Declared, out.Sidecar)
	case core.OutcomeMalformedSidecar:
		c.logs.errorf("%s: %s", out.Sidecar, out.Reason)
	case core.OutcomeApplyFailed:
		c.logs.errorf("%s: %s", out.Sidecar, out.Reason)
	}
	if out.OriginalMissing {
		c.logs.missingf("pre-edit original for %s (sidecar %s)", out.Media, out.Sidecar)
	}
	if out.Applied.EmbedError != "" {
		c.logs.errorf("%s: metadata embedding failed, timestamps only: %s", out.Media, out.Applied.EmbedError)
	}
}
