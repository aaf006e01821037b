package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// noBranch is reported when the repository has no branch checked out.
const noBranch = `NONE`

func (lc *Local) openRepo(dir string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(lc.resolve(dir), &git.PlainOpenOptions{DetectDotGit: true})
}

func (lc *Local) GetBranch(ctx context.Context, dir string) (string, error) {
	repo, err := lc.openRepo(dir)
	if err != nil {
		return ``, err
	}
	head, err := repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return noBranch, nil
	case err != nil:
		return ``, err
	case !head.Name().IsBranch():
		return noBranch, nil
	}
	return head.Name().Short(), nil
}

// GetRepoName returns the owner and name of the repository from its origin remote, such as "acme/widgets", or an
// empty string if it has no origin.
func (lc *Local) GetRepoName(ctx context.Context, dir string) (string, error) {
	repo, err := lc.openRepo(dir)
	if err != nil {
		return ``, err
	}
	remote, err := repo.Remote(git.DefaultRemoteName)
	if errors.Is(err, git.ErrRemoteNotFound) {
		return ``, nil
	}
	if err != nil {
		return ``, err
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ``, nil
	}
	return repoName(urls[0]), nil
}

func repoName(url string) string {
	url = strings.TrimSuffix(strings.TrimSuffix(url, `/`), `.git`)
	if i := strings.Index(url, `://`); i >= 0 {
		url = url[i+3:]
		if i = strings.Index(url, `/`); i >= 0 {
			return url[i+1:]
		}
		return url
	}
	if i := strings.LastIndex(url, `:`); i >= 0 {
		return url[i+1:]
	}
	return url
}

func (lc *Local) GetGitRootPath(ctx context.Context, dir string) (string, error) {
	repo, err := lc.openRepo(dir)
	if err != nil {
		return ``, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return ``, err
	}
	return wt.Filesystem.Root(), nil
}

// GetDiff returns one diff per workspace repository of the staged changes, and of the unstaged changes too if
// includeUnstaged is set.  Untracked files are not included.  Workspace directories that are not in a repository are
// skipped.
func (lc *Local) GetDiff(ctx context.Context, includeUnstaged bool) ([]string, error) {
	var diffs []string
	for _, dir := range lc.dirs {
		repo, err := lc.openRepo(dir)
		if errors.Is(err, git.ErrRepositoryNotExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		diff, err := repoDiff(repo, includeUnstaged)
		if err != nil {
			return nil, fmt.Errorf(`%w while comparing %v`, err, dir)
		}
		if diff != `` {
			diffs = append(diffs, diff)
		}
	}
	return diffs, nil
}

func repoDiff(repo *git.Repository, includeUnstaged bool) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return ``, err
	}
	status, err := wt.Status()
	if err != nil {
		return ``, err
	}
	paths := make([]string, 0, len(status))
	for path, st := range status {
		staged := st.Staging != git.Unmodified && st.Staging != git.Untracked
		unstaged := st.Worktree != git.Unmodified && st.Worktree != git.Untracked
		if staged || (includeUnstaged && unstaged) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)

	var tree *object.Tree
	head, err := repo.Head()
	if err == nil {
		commit, err := repo.CommitObject(head.Hash())
		if err != nil {
			return ``, err
		}
		tree, err = commit.Tree()
		if err != nil {
			return ``, err
		}
	}

	var buf strings.Builder
	for _, path := range paths {
		before, err := treeContents(tree, path)
		if err != nil {
			return ``, err
		}
		var after string
		if includeUnstaged {
			after, err = worktreeContents(wt.Filesystem.Root(), path)
		} else {
			after, err = indexContents(repo, path)
		}
		if err != nil {
			return ``, err
		}
		buf.WriteString(unified(path, before, after))
	}
	return buf.String(), nil
}

func treeContents(tree *object.Tree, path string) (string, error) {
	if tree == nil {
		return ``, nil
	}
	file, err := tree.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return ``, nil
	}
	if err != nil {
		return ``, err
	}
	return file.Contents()
}

func indexContents(repo *git.Repository, path string) (string, error) {
	idx, err := repo.Storer.Index()
	if err != nil {
		return ``, err
	}
	entry, err := idx.Entry(path)
	if errors.Is(err, index.ErrEntryNotFound) {
		return ``, nil
	}
	if err != nil {
		return ``, err
	}
	blob, err := repo.BlobObject(entry.Hash)
	if err != nil {
		return ``, err
	}
	r, err := blob.Reader()
	if err != nil {
		return ``, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	return string(data), err
}

func worktreeContents(root, path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
	if errors.Is(err, fs.ErrNotExist) {
		return ``, nil
	}
	return string(data), err
}

// unified renders a line diff between two versions of a file in the style of git diff, without hunk headers.
func unified(path, before, after string) string {
	if before == after {
		return ``
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var buf strings.Builder
	fmt.Fprintf(&buf, "diff --git a/%s b/%s\n--- a/%s\n+++ b/%s\n", path, path, path, path)
	for _, diff := range diffs {
		prefix := ` `
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			prefix = `+`
		case diffmatchpatch.DiffDelete:
			prefix = `-`
		}
		for _, line := range strings.SplitAfter(diff.Text, "\n") {
			if line == `` {
				continue
			}
			buf.WriteString(prefix)
			buf.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				buf.WriteString("\n\\ No newline at end of file\n")
			}
		}
	}
	return buf.String()
}
