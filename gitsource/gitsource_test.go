package gitsource

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func testSignature() *object.Signature {
	return &object.Signature{
		Name:  "Test Author",
		Email: "author@example.com",
		When:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func initRepo(t *testing.T) (*git.Repository, *git.Worktree, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit failed: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree failed: %v", err)
	}
	return repo, wt, dir
}

func commitFiles(t *testing.T, wt *git.Worktree, dir, msg string, files map[string]string) plumbing.Hash {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(path); err != nil {
			t.Fatalf("Add(%s) failed: %v", path, err)
		}
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: testSignature()})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return hash
}

func sortedChangedFiles(t *testing.T, r *Repo, commitID string) []string {
	t.Helper()
	files, err := r.ChangedFiles(commitID)
	if err != nil {
		t.Fatalf("ChangedFiles(%s) failed: %v", commitID, err)
	}
	sort.Strings(files)
	return files
}

func TestChangedFilesInitialCommit(t *testing.T) {
	_, wt, dir := initRepo(t)
	hash := commitFiles(t, wt, dir, "initial sources", map[string]string{
		"src/classes/Invoice.cls": "public class Invoice {}",
		"README.md":               "readme",
	})

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	files := sortedChangedFiles(t, repo, hash.String())
	want := []string{"README.md", "src/classes/Invoice.cls"}
	if len(files) != len(want) || files[0] != want[0] || files[1] != want[1] {
		t.Errorf("ChangedFiles = %v, want %v", files, want)
	}
}

func TestChangedFilesExcludesDeletions(t *testing.T) {
	_, wt, dir := initRepo(t)
	commitFiles(t, wt, dir, "initial", map[string]string{
		"src/classes/Invoice.cls": "public class Invoice {}",
		"src/classes/Old.cls":     "public class Old {}",
	})

	if _, err := wt.Remove("src/classes/Old.cls"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	second := commitFiles(t, wt, dir, "drop Old, add Payment", map[string]string{
		"src/classes/Payment.cls": "public class Payment {}",
	})

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	files := sortedChangedFiles(t, repo, second.String())
	if len(files) != 1 || files[0] != "src/classes/Payment.cls" {
		t.Errorf("Expected only the added file, got %v", files)
	}
}

func TestChangedFilesUnknownCommit(t *testing.T) {
	_, wt, dir := initRepo(t)
	commitFiles(t, wt, dir, "initial", map[string]string{"a.txt": "a"})

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := repo.ChangedFiles("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"); err == nil {
		t.Error("Expected an error for an unknown commit")
	}
}

// TestChangedFilesMergeFallback builds an "ours" merge: the merge commit
// keeps its first parent's tree, so the first-parent diff is empty and the
// merged-in work only shows up against the merge base.
func TestChangedFilesMergeFallback(t *testing.T) {
	gitRepo, wt, dir := initRepo(t)

	base := commitFiles(t, wt, dir, "base", map[string]string{"base.txt": "base"})

	if err := wt.Checkout(&git.CheckoutOptions{
		Create: true,
		Branch: plumbing.NewBranchReferenceName("feature"),
		Hash:   base,
	}); err != nil {
		t.Fatalf("Checkout feature failed: %v", err)
	}
	featureTip := commitFiles(t, wt, dir, "feature work", map[string]string{
		"src/classes/Feature.cls": "public class Feature {}",
	})

	if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName("master")}); err != nil {
		t.Fatalf("Checkout master failed: %v", err)
	}
	mainTip := commitFiles(t, wt, dir, "main work", map[string]string{
		"src/classes/Main.cls": "public class Main {}",
	})

	// go-git has no merge porcelain, so build the merge commit by hand:
	// tree taken wholesale from the first parent.
	mainCommit, err := gitRepo.CommitObject(mainTip)
	if err != nil {
		t.Fatalf("CommitObject failed: %v", err)
	}
	merge := &object.Commit{
		Author:       *testSignature(),
		Committer:    *testSignature(),
		Message:      "merge feature into master",
		TreeHash:     mainCommit.TreeHash,
		ParentHashes: []plumbing.Hash{mainTip, featureTip},
	}
	encoded := gitRepo.Storer.NewEncodedObject()
	if err := merge.Encode(encoded); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	mergeHash, err := gitRepo.Storer.SetEncodedObject(encoded)
	if err != nil {
		t.Fatalf("SetEncodedObject failed: %v", err)
	}

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	files := sortedChangedFiles(t, repo, mergeHash.String())
	if len(files) != 1 || files[0] != "src/classes/Main.cls" {
		t.Errorf("Expected the merge diffed against the merge base, got %v", files)
	}
}

func TestPackageDirectories(t *testing.T) {
	_, wt, dir := initRepo(t)
	commitFiles(t, wt, dir, "project config", map[string]string{
		"orgsync.json": `{"packageDirectories":[{"path":"force-app"},{"path":"unpackaged"},{"path":""}]}`,
	})

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	dirs, err := repo.PackageDirectories()
	if err != nil {
		t.Fatalf("PackageDirectories failed: %v", err)
	}
	if len(dirs) != 2 || dirs[0] != "force-app" || dirs[1] != "unpackaged" {
		t.Errorf("PackageDirectories = %v", dirs)
	}
}

func TestPackageDirectoriesMissingFile(t *testing.T) {
	_, wt, dir := initRepo(t)
	commitFiles(t, wt, dir, "initial", map[string]string{"a.txt": "a"})

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	dirs, err := repo.PackageDirectories()
	if err != nil {
		t.Fatalf("PackageDirectories failed: %v", err)
	}
	if dirs != nil {
		t.Errorf("Expected no scoping without the project file, got %v", dirs)
	}
}

func TestBehindUpstream(t *testing.T) {
	gitRepo, wt, dir := initRepo(t)
	older := commitFiles(t, wt, dir, "first", map[string]string{"a.txt": "a"})
	newer := commitFiles(t, wt, dir, "second", map[string]string{"b.txt": "b"})

	repo, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// No upstream configured.
	status, err := repo.BehindUpstream()
	if err != nil {
		t.Fatalf("BehindUpstream failed: %v", err)
	}
	if status != nil {
		t.Fatalf("Expected no status without an upstream, got %+v", status)
	}

	// Simulate a fetched upstream that is one commit ahead: origin/master
	// points at the newer commit while the local branch is wound back.
	cfg, err := gitRepo.Config()
	if err != nil {
		t.Fatalf("Config failed: %v", err)
	}
	if cfg.Branches == nil {
		cfg.Branches = make(map[string]*config.Branch)
	}
	cfg.Branches["master"] = &config.Branch{
		Name:   "master",
		Remote: "origin",
		Merge:  plumbing.NewBranchReferenceName("master"),
	}
	if err := gitRepo.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	remoteRef := plumbing.NewHashReference(plumbing.NewRemoteReferenceName("origin", "master"), newer)
	if err := gitRepo.Storer.SetReference(remoteRef); err != nil {
		t.Fatalf("SetReference failed: %v", err)
	}

	// Up to date: local and upstream point at the same commit.
	status, err = repo.BehindUpstream()
	if err != nil {
		t.Fatalf("BehindUpstream failed: %v", err)
	}
	if status != nil {
		t.Fatalf("Expected no status when up to date, got %+v", status)
	}

	localRef := plumbing.NewHashReference(plumbing.NewBranchReferenceName("master"), older)
	if err := gitRepo.Storer.SetReference(localRef); err != nil {
		t.Fatalf("SetReference failed: %v", err)
	}

	status, err = repo.BehindUpstream()
	if err != nil {
		t.Fatalf("BehindUpstream failed: %v", err)
	}
	if status == nil {
		t.Fatal("Expected a behind-upstream status")
	}
	if status.Count != 1 {
		t.Errorf("Expected 1 commit behind, got %d", status.Count)
	}
	if status.Upstream != "origin/master" {
		t.Errorf("Expected upstream origin/master, got %s", status.Upstream)
	}
}
