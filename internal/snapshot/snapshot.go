// Package snapshot implements the content-addressed, git-backed worktree
// store used by the session revert engine. It keeps its own shadow git
// repository under <worktree>/.opencode/snapshot (a separate GIT_DIR over
// the real work tree) so the worktree itself need not be a git repository.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// FileDiff is a single file's line-count delta between two snapshots.
type FileDiff struct {
	Path      string
	Additions int
	Deletions int
}

// Patch names a snapshot hash and the files within it that should be
// restored by Revert.
type Patch struct {
	Hash  string
	Files []string
}

// Store drives the shadow git repository for one worktree.
type Store struct {
	worktree string
}

// New returns a Store scoped to worktree.
func New(worktree string) *Store {
	return &Store{worktree: worktree}
}

func (s *Store) gitDir() string {
	return filepath.Join(s.worktree, ".opencode", "snapshot")
}

// Track stages the entire worktree (excluding the shadow repo itself) and
// returns the resulting tree hash, a 40-character hex string.
func (s *Store) Track(ctx context.Context) (string, error) {
	gitDir, err := s.ensureRepo(ctx)
	if err != nil {
		return "", err
	}
	if err := s.addAll(ctx, gitDir); err != nil {
		return "", err
	}
	out, err := s.git(ctx, gitDir, "write-tree")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Restore replaces the worktree contents with the tree named by hash.
func (s *Store) Restore(ctx context.Context, hash string) error {
	gitDir, err := s.ensureRepo(ctx)
	if err != nil {
		return err
	}
	if _, err := s.git(ctx, gitDir, "read-tree", hash); err != nil {
		return err
	}
	if _, err := s.git(ctx, gitDir, "checkout-index", "-a", "-f"); err != nil {
		return err
	}
	return nil
}

// Diff stages the current worktree and reports numstat deltas against
// fromHash. Binary files report 0/0.
func (s *Store) Diff(ctx context.Context, fromHash string) ([]FileDiff, error) {
	gitDir, err := s.ensureRepo(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.addAll(ctx, gitDir); err != nil {
		return nil, err
	}
	out, err := s.git(ctx, gitDir,
		"-c", "core.autocrlf=false",
		"-c", "core.quotepath=false",
		"diff", "--no-ext-diff", "--numstat", fromHash, "--", ".")
	if err != nil {
		log.Debug().Err(err).Str("from", fromHash).Msg("snapshot: diff failed, returning empty diff")
		return nil, nil
	}
	return parseNumstat(out), nil
}

// DiffFull reports numstat deltas between two arbitrary tree hashes,
// irrespective of the current worktree state.
func (s *Store) DiffFull(ctx context.Context, from, to string) ([]FileDiff, error) {
	gitDir, err := s.ensureRepo(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.git(ctx, gitDir,
		"-c", "core.autocrlf=false",
		"-c", "core.quotepath=false",
		"diff", "--no-ext-diff", "--no-renames", "--numstat", from, to, "--", ".")
	if err != nil {
		log.Debug().Err(err).Str("from", from).Str("to", to).Msg("snapshot: diff_full failed, returning empty diff")
		return nil, nil
	}
	return parseNumstat(out), nil
}

// Revert checks out the listed files from each patch's hash into the
// worktree; a file absent from that tree is deleted locally instead. Files
// are deduplicated in first-seen order across patches.
func (s *Store) Revert(ctx context.Context, patches []Patch) error {
	gitDir, err := s.ensureRepo(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, patch := range patches {
		for _, file := range patch.Files {
			rel := s.relativeToWorktree(file)
			if rel == "" || seen[rel] {
				continue
			}
			seen[rel] = true

			if _, err := s.git(ctx, gitDir, "checkout", patch.Hash, "--", rel); err != nil {
				existsInTree := false
				if out, lsErr := s.git(ctx, gitDir, "ls-tree", patch.Hash, "--", rel); lsErr == nil {
					existsInTree = strings.TrimSpace(out) != ""
				}
				if !existsInTree {
					abs := file
					if !filepath.IsAbs(abs) {
						abs = filepath.Join(s.worktree, rel)
					}
					_ = os.Remove(abs)
				}
			}
		}
	}
	return nil
}

func (s *Store) relativeToWorktree(input string) string {
	if filepath.IsAbs(input) {
		rel, err := filepath.Rel(s.worktree, input)
		if err != nil {
			return ""
		}
		return rel
	}
	return input
}

func (s *Store) ensureRepo(ctx context.Context) (string, error) {
	gitDir := s.gitDir()
	if err := os.MkdirAll(filepath.Dir(gitDir), 0o755); err != nil {
		return "", fmt.Errorf("snapshot: create snapshot parent dir: %w", err)
	}

	if _, err := os.Stat(filepath.Join(gitDir, "HEAD")); err != nil {
		cmd := exec.CommandContext(ctx, "git", "init", "--quiet")
		cmd.Dir = s.worktree
		cmd.Env = append(os.Environ(), "GIT_DIR="+gitDir, "GIT_WORK_TREE="+s.worktree)
		if out, err := cmd.CombinedOutput(); err != nil {
			return "", fmt.Errorf("snapshot: git init failed: %s: %w", strings.TrimSpace(string(out)), err)
		}
		if _, err := s.git(ctx, gitDir, "config", "core.autocrlf", "false"); err != nil {
			log.Debug().Err(err).Msg("snapshot: could not set core.autocrlf on shadow repo")
		}
	}

	return gitDir, nil
}

// addAll stages the worktree while excluding the shadow repo's own
// directory, trying three exclude-pattern spellings for git version
// compatibility (pathspec magic differs across git releases).
func (s *Store) addAll(ctx context.Context, gitDir string) error {
	variants := [][]string{
		{"add", "-A", "--", ".", ":(exclude).opencode/snapshot"},
		{"add", "-A", "--", ".", ":!/.opencode/snapshot"},
		{"add", "-A", "--", ".", ":!.opencode/snapshot"},
	}
	var lastErr error
	for _, args := range variants {
		if _, err := s.git(ctx, gitDir, args...); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("snapshot: failed to stage worktree with snapshot-dir exclusion: %w", lastErr)
}

func (s *Store) git(ctx context.Context, gitDir string, args ...string) (string, error) {
	fullArgs := append([]string{"--git-dir", gitDir, "--work-tree", s.worktree}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	cmd.Dir = s.worktree
	out, err := cmd.Output()
	if err != nil {
		stderr := ""
		if ee, ok := err.(*exec.ExitError); ok {
			stderr = strings.TrimSpace(string(ee.Stderr))
		}
		return "", fmt.Errorf("snapshot: git %s: %s: %w", strings.Join(args, " "), stderr, err)
	}
	return string(out), nil
}

func parseNumstat(output string) []FileDiff {
	var diffs []FileDiff
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) < 3 {
			continue
		}
		isBinary := parts[0] == "-" && parts[1] == "-"
		additions, deletions := 0, 0
		if !isBinary {
			additions, _ = strconv.Atoi(parts[0])
			deletions, _ = strconv.Atoi(parts[1])
		}
		diffs = append(diffs, FileDiff{Path: parts[2], Additions: additions, Deletions: deletions})
	}
	return diffs
}
