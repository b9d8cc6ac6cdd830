// Package gitstatus decorates resources with their status in a git work
// tree.
package gitstatus

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	git "github.com/go-git/go-git/v5"
	ignore "github.com/sabhiram/go-gitignore"
	"pkt.systems/pslog"
	"pkt.systems/sidetabs/internal/classify"
	"pkt.systems/sidetabs/schema"
)

// Provider answers git status queries from a cached snapshot of a work
// tree. Refresh replaces the snapshot.
type Provider struct {
	root string
	repo *git.Repository
	log  pslog.Logger

	mu     sync.RWMutex
	status map[string]schema.GitStatus
	ignore *ignore.GitIgnore
	branch string
}

// Open finds the repository containing path and takes a first snapshot.
func Open(path string, logger pslog.Logger) (*Provider, error) {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	p := &Provider{
		root:   filepath.Clean(wt.Filesystem.Root()),
		repo:   repo,
		log:    logger,
		status: make(map[string]schema.GitStatus),
	}
	if err := p.Refresh(); err != nil {
		return nil, err
	}
	return p, nil
}

// Root returns the top of the work tree.
func (p *Provider) Root() string {
	return p.root
}

// Refresh recomputes the work tree status.
func (p *Provider) Refresh() error {
	wt, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return fmt.Errorf("worktree status: %w", err)
	}
	next := make(map[string]schema.GitStatus, len(st))
	for path, fs := range st {
		if s := mapStatus(fs); s != schema.GitStatusNone {
			next[filepath.ToSlash(path)] = s
		}
	}
	gi, err := ignore.CompileIgnoreFile(filepath.Join(p.root, ".gitignore"))
	if err != nil {
		gi = nil
	}
	branch := ""
	if head, err := p.repo.Head(); err == nil && head.Name().IsBranch() {
		branch = head.Name().Short()
	}
	p.mu.Lock()
	p.status = next
	p.ignore = gi
	p.branch = branch
	p.mu.Unlock()
	p.log.Debug("gitstatus refreshed", "root", p.root, "changed", len(next), "branch", branch)
	return nil
}

func mapStatus(fs *git.FileStatus) schema.GitStatus {
	switch {
	case fs.Staging == git.UpdatedButUnmerged || fs.Worktree == git.UpdatedButUnmerged:
		return schema.GitStatusConflict
	case fs.Worktree == git.Untracked:
		return schema.GitStatusUntracked
	case fs.Staging == git.Added:
		return schema.GitStatusAdded
	case fs.Staging == git.Deleted || fs.Worktree == git.Deleted:
		return schema.GitStatusDeleted
	case fs.Staging == git.Modified || fs.Worktree == git.Modified,
		fs.Staging == git.Renamed || fs.Staging == git.Copied:
		return schema.GitStatusModified
	default:
		return schema.GitStatusNone
	}
}

// relative maps a resource locator to a slash separated path inside the
// work tree.
func (p *Provider) relative(uri string) (string, bool) {
	locator := classify.NormalizeLocator(uri)
	if !strings.HasPrefix(locator, "file://") {
		return "", false
	}
	rel, err := filepath.Rel(p.root, filepath.FromSlash(classify.Path(locator)))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// GitStatus reports the status of the file at uri. Files outside the work
// tree and clean files report none.
func (p *Provider) GitStatus(uri string) schema.GitStatus {
	rel, ok := p.relative(uri)
	if !ok {
		return schema.GitStatusNone
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if s, ok := p.status[rel]; ok {
		return s
	}
	if p.ignore != nil && p.ignore.MatchesPath(rel) {
		return schema.GitStatusIgnored
	}
	return schema.GitStatusNone
}

// Branch returns the checked out branch, or "" for a detached head.
func (p *Provider) Branch() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.branch
}

// Changed returns every path with a non-clean status.
func (p *Provider) Changed() map[string]schema.GitStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]schema.GitStatus, len(p.status))
	for k, v := range p.status {
		out[k] = v
	}
	return out
}
