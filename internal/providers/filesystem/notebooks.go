package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/GriffinCanCode/griffin-notebook/internal/shared/paths"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
)

// checkpointDir holds Jupyter autosave copies, never listed
const checkpointDir = ".ipynb_checkpoints"

// FindNotebooks lists notebooks under root sorted by relative path
func FindNotebooks(ctx context.Context, root string, opts FindOptions) ([]Notebook, error) {
	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var (
		mu    sync.Mutex
		found []Notebook
	)

	// fastwalk invokes the callback from several goroutines.
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p == root {
				return nil
			}
			name := d.Name()
			if name == checkpointDir || (!opts.IncludeHidden && strings.HasPrefix(name, ".")) {
				return fastwalk.SkipDir
			}
			return nil
		}

		if !opts.IncludeHidden && strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := paths.Relative(p, root)
		if err != nil {
			return nil
		}
		if ok, _ := doublestar.Match(pattern, rel); !ok {
			return nil
		}

		nb, ok := describe(p, rel, d, opts.Inspect)
		if !ok {
			return nil
		}

		mu.Lock()
		found = append(found, nb)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notebooks in %s: %w", root, err)
	}

	// The walk visits files in no particular order, so the limit applies
	// after sorting.
	sort.Slice(found, func(i, j int) bool {
		return found[i].RelativePath < found[j].RelativePath
	})
	if opts.Limit > 0 && len(found) > opts.Limit {
		found = found[:opts.Limit]
	}
	return found, nil
}

func describe(p, rel string, d os.DirEntry, inspect bool) (Notebook, bool) {
	info, err := d.Info()
	if err != nil || !info.Mode().IsRegular() {
		return Notebook{}, false
	}

	nb := Notebook{
		Name:         d.Name(),
		Path:         p,
		RelativePath: rel,
		Size:         info.Size(),
		Modified:     info.ModTime(),
	}
	if !inspect {
		return nb, true
	}

	mtype, err := mimetype.DetectFile(p)
	if err != nil || !mtype.Is("application/json") {
		return Notebook{}, false
	}
	nb.MimeType = mtype.String()
	return nb, true
}
