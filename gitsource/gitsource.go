package gitsource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/zenibako/orgsync-golang/metadata"
)

// projectConfigFile is the optional project file that scopes preload to
// explicit source directories.
const projectConfigFile = "orgsync.json"

// Repo implements the engine's version-control collaborator over a local
// git repository.
type Repo struct {
	repo *git.Repository
	root string
}

// Open opens the repository containing dir, searching upwards for the .git
// directory the way the git CLI does.
func Open(dir string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %v", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %v", err)
	}
	return &Repo{repo: repo, root: wt.Filesystem.Root()}, nil
}

// Root returns the worktree root directory.
func (r *Repo) Root() string {
	return r.root
}

// ChangedFiles returns the paths added, copied, modified, renamed, or
// type-changed by the commit; deletions are excluded. A merge commit whose
// first-parent diff is empty is diffed against the merge base of its first
// two parents instead, so the merged-in work is still visible.
func (r *Repo) ChangedFiles(commitID string) ([]string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(commitID))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve commit %s: %v", commitID, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %v", commitID, err)
	}

	if commit.NumParents() == 0 {
		return filesInCommit(commit)
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("failed to read parent of %s: %v", commitID, err)
	}
	files, err := diffFiles(parent, commit)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 && commit.NumParents() > 1 {
		log.Debugf("Commit %s is a merge with no first-parent diff, falling back to merge base", commitID)
		second, err := commit.Parent(1)
		if err != nil {
			return nil, fmt.Errorf("failed to read second parent of %s: %v", commitID, err)
		}
		bases, err := parent.MergeBase(second)
		if err != nil {
			return nil, fmt.Errorf("failed to find merge base for %s: %v", commitID, err)
		}
		if len(bases) == 0 {
			return nil, fmt.Errorf("no merge base found for commit %s", commitID)
		}
		files, err = diffFiles(bases[0], commit)
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// PackageDirectories reads the project's explicit source directory scoping
// from orgsync.json at the worktree root. A project without the file defines
// no scoping.
func (r *Repo) PackageDirectories() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(r.root, projectConfigFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", projectConfigFile, err)
	}
	var config struct {
		PackageDirectories []struct {
			Path string `json:"path"`
		} `json:"packageDirectories"`
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %v", projectConfigFile, err)
	}
	var dirs []string
	for _, d := range config.PackageDirectories {
		if d.Path != "" {
			dirs = append(dirs, d.Path)
		}
	}
	return dirs, nil
}

// BehindUpstream reports how many commits HEAD is behind its configured
// upstream branch, or nil when no upstream is configured or the upstream
// ref has never been fetched.
func (r *Repo) BehindUpstream() (*metadata.UpstreamStatus, error) {
	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD: %v", err)
	}
	if !head.Name().IsBranch() {
		return nil, nil
	}
	cfg, err := r.repo.Config()
	if err != nil {
		return nil, fmt.Errorf("failed to read repository config: %v", err)
	}
	branch, ok := cfg.Branches[head.Name().Short()]
	if !ok || branch.Remote == "" || branch.Merge == "" {
		return nil, nil
	}
	upstreamName := plumbing.NewRemoteReferenceName(branch.Remote, branch.Merge.Short())
	upstream, err := r.repo.Reference(upstreamName, true)
	if err != nil {
		log.Debugf("Upstream ref %s not present locally: %v", upstreamName, err)
		return nil, nil
	}

	headAncestors, err := r.ancestorSet(head.Hash())
	if err != nil {
		return nil, err
	}
	count := 0
	iter, err := r.repo.Log(&git.LogOptions{From: upstream.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to walk upstream history: %v", err)
	}
	defer iter.Close()
	err = iter.ForEach(func(c *object.Commit) error {
		if !headAncestors[c.Hash] {
			count++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count upstream commits: %v", err)
	}
	if count == 0 {
		return nil, nil
	}
	return &metadata.UpstreamStatus{Count: count, Upstream: upstreamName.Short()}, nil
}

func (r *Repo) ancestorSet(from plumbing.Hash) (map[plumbing.Hash]bool, error) {
	set := make(map[plumbing.Hash]bool)
	iter, err := r.repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history: %v", err)
	}
	defer iter.Close()
	err = iter.ForEach(func(c *object.Commit) error {
		set[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect ancestors: %v", err)
	}
	return set, nil
}

// diffFiles lists the non-deleted paths changed between two commits.
// Rename detection is on, so a renamed file contributes its new path only.
func diffFiles(from, to *object.Commit) ([]string, error) {
	fromTree, err := from.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %v", from.Hash, err)
	}
	toTree, err := to.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %v", to.Hash, err)
	}
	changes, err := object.DiffTreeWithOptions(context.Background(), fromTree, toTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %v", err)
	}
	var files []string
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("failed to classify change: %v", err)
		}
		if action == merkletrie.Delete {
			continue
		}
		files = append(files, change.To.Name)
	}
	return files, nil
}

// filesInCommit lists every path in a parentless (initial) commit.
func filesInCommit(commit *object.Commit) ([]string, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %v", commit.Hash, err)
	}
	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files of %s: %v", commit.Hash, err)
	}
	return files, nil
}
