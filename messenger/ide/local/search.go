package local

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxSearchResults  = 100
	maxSearchFileSize = 1 << 20
)

// GetSearchResults searches the workspace for lines containing the query, skipping hidden directories and large
// files.  Results are grouped by file like ripgrep's heading output.
func (lc *Local) GetSearchResults(ctx context.Context, query string) (string, error) {
	if query == `` {
		return ``, nil
	}
	var buf strings.Builder
	found := 0
	for _, dir := range lc.dirs {
		err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			name := entry.Name()
			if entry.IsDir() {
				if path != dir && (strings.HasPrefix(name, `.`) || name == `node_modules`) {
					return filepath.SkipDir
				}
				return nil
			}
			if !entry.Type().IsRegular() {
				return nil
			}
			info, err := entry.Info()
			if err != nil || info.Size() > maxSearchFileSize {
				return nil
			}
			n, err := searchFile(&buf, dir, path, query, maxSearchResults-found)
			found += n
			if err != nil {
				return err
			}
			if found >= maxSearchResults {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			return ``, err
		}
		if found >= maxSearchResults {
			break
		}
	}
	return buf.String(), nil
}

func searchFile(buf *strings.Builder, dir, path, query string, limit int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil
	}
	defer f.Close()
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		rel = path
	}
	found := 0
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan() && found < limit; line++ {
		text := scanner.Text()
		if !strings.Contains(text, query) {
			continue
		}
		if found == 0 {
			fmt.Fprintf(buf, "%s\n", filepath.ToSlash(rel))
		}
		fmt.Fprintf(buf, "%d:%s\n", line, text)
		found++
	}
	if found > 0 {
		buf.WriteString("\n")
	}
	return found, nil
}
