// Package discover walks a directory tree to find baseline/target
// candidate files for a report, filtering out anything excludes.Matcher
// rejects and caching repeated walks of the same root.
package discover

import (
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"github.com/segmentio/fasthash/fnv1a"

	"github.com/famarks/logscope/pkg/excludes"
)

// cacheSize bounds the number of distinct roots kept warm; a discovery
// job rarely revisits more than a handful of roots in one process
// lifetime.
const cacheSize = 64

// Discoverer walks directory trees and returns candidate file paths.
type Discoverer struct {
	matcher *excludes.Matcher
	cache   *lru.Cache
}

// New returns a Discoverer that excludes paths matcher rejects. A nil
// matcher admits every regular file.
func New(matcher *excludes.Matcher) (*Discoverer, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Discoverer{matcher: matcher, cache: cache}, nil
}

// Candidates returns every regular file under root not rejected by the
// Discoverer's matcher, sorted for deterministic ordering. Results are
// cached by an fnv1a hash of root so repeated discovery of the same
// tree within a process lifetime skips the walk.
func (d *Discoverer) Candidates(root string) ([]string, error) {
	key := fnv1a.HashString64(root)
	if cached, ok := d.cache.Get(key); ok {
		return cached.([]string), nil
	}

	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.matcher != nil && d.matcher.Excluded(rel) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(out)
	d.cache.Add(key, out)
	return out, nil
}

// Invalidate drops any cached result for root, forcing the next
// Candidates call to re-walk the tree.
func (d *Discoverer) Invalidate(root string) {
	d.cache.Remove(fnv1a.HashString64(root))
}
