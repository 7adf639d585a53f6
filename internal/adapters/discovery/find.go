// Package discovery finds scene products on disk and identifies them for the registry
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// Query selects candidate paths below Root
type Query struct {
	Root string

	// Patterns are matched against base names; shell globs unless Regex is set
	Patterns []string
	Regex    bool

	// Recursive descends into subdirectories. A matching directory is returned
	// as a whole and not descended into (SAFE products are directories)
	Recursive bool
}

type matcher func(name string) bool

func compile(q Query) (matcher, error) {
	if len(q.Patterns) == 0 {
		return func(string) bool { return true }, nil
	}
	if q.Regex {
		res := make([]*regexp.Regexp, 0, len(q.Patterns))
		for _, p := range q.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("discovery: pattern %q: %w", p, err)
			}
			res = append(res, re)
		}
		return func(name string) bool {
			for _, re := range res {
				if re.MatchString(name) {
					return true
				}
			}
			return false
		}, nil
	}
	for _, p := range q.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("discovery: pattern %q: %w", p, err)
		}
	}
	return func(name string) bool {
		for _, p := range q.Patterns {
			if ok, _ := filepath.Match(p, name); ok {
				return true
			}
		}
		return false
	}, nil
}

// Find returns matching paths in lexical order
func Find(ctx context.Context, q Query) ([]string, error) {
	match, err := compile(q)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(q.Root)
	if err != nil {
		return nil, fmt.Errorf("discovery: root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discovery: root %s is not a directory", q.Root)
	}

	var out []string
	err = filepath.WalkDir(q.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if path == q.Root {
			return nil
		}
		if match(d.Name()) {
			out = append(out, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() && !q.Recursive {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: walk %s: %w", q.Root, err)
	}
	sort.Strings(out)
	return out, nil
}
