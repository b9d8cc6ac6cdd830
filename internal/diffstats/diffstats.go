// Package diffstats counts changed lines in unified diffs and hands the
// counts to the engine as diff statistics.
package diffstats

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"pkt.systems/pslog"
	"pkt.systems/sidetabs/schema"
)

// Sink receives statistics for the base file at uri.
type Sink interface {
	ApplyDiffStats(ctx context.Context, uri string, stats schema.DiffStats) (int, error)
}

// FileStats is the line count of one file in a patch.
type FileStats struct {
	Path    string
	Added   int
	Removed int
	Binary  bool
}

// Parse reads a unified or git diff and returns per-file line counts in
// patch order.
func Parse(r io.Reader) ([]FileStats, error) {
	files, _, err := gitdiff.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}
	out := make([]FileStats, 0, len(files))
	for _, f := range files {
		name := f.NewName
		if f.IsDelete || name == "" {
			name = f.OldName
		}
		stats := FileStats{Path: name, Binary: f.IsBinary}
		for _, frag := range f.TextFragments {
			stats.Added += int(frag.LinesAdded)
			stats.Removed += int(frag.LinesDeleted)
		}
		out = append(out, stats)
	}
	return out, nil
}

// URIFor returns the file locator of a patch path relative to root.
func URIFor(root, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	return "file://" + filepath.ToSlash(filepath.Clean(path))
}

// Apply parses the patch and forwards every text file's counts to sink. It
// returns the number of tabs the sink updated.
func Apply(ctx context.Context, sink Sink, root string, r io.Reader) (int, error) {
	files, err := Parse(r)
	if err != nil {
		return 0, err
	}
	log := pslog.Ctx(ctx)
	total := 0
	for _, f := range files {
		if f.Binary {
			log.Trace("diffstats binary skipped", "path", f.Path)
			continue
		}
		n, err := sink.ApplyDiffStats(ctx, URIFor(root, f.Path), schema.DiffStats{LinesAdded: f.Added, LinesRemoved: f.Removed})
		if err != nil {
			return total, fmt.Errorf("apply stats %s: %w", f.Path, err)
		}
		total += n
	}
	log.Debug("diffstats applied", "files", len(files), "tabs", total)
	return total, nil
}
