// Package orbits reads the local Sentinel-1 orbit state vector archive.
//
// The archive is synchronized out of band; nothing here touches the network.
// Files are classified by name:
//
//	S1A_OPER_AUX_POEORB_OPOD_20210101T121500_V20201211T225942_20201213T005942.EOF[.zip]
//
// POEORB is the precise tier, RESORB the restituted one. The V..._... pair is the
// validity window; its second half is the validity end the cutoff is derived from.
package orbits

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"time"

	"sarbatch/internal/core/scene"
	"sarbatch/internal/services/scheduler/domain"
)

// Tier is the orbit precision tier
type Tier = domain.Tier

// Known tiers
const (
	TierPOE = domain.TierPOE
	TierRES = domain.TierRES
)

// File is one reference file in the archive
type File = domain.ReferenceFile

var nameRe = regexp.MustCompile(`^(S1[A-D])_OPER_AUX_(POE|RES)ORB_OPOD_(\d{8}T\d{6})_V(\d{8}T\d{6})_(\d{8}T\d{6})\.EOF(?:\.zip)?$`)

// ParseName classifies an orbit file by name. ok is false for anything else
func ParseName(name string) (File, bool) {
	m := nameRe.FindStringSubmatch(name)
	if m == nil {
		return File{}, false
	}
	var ts [3]time.Time
	for i, raw := range m[3:6] {
		t, err := time.ParseInLocation(scene.StampLayout, raw, time.UTC)
		if err != nil {
			return File{}, false
		}
		ts[i] = t
	}
	if ts[2].Before(ts[1]) {
		return File{}, false
	}
	return File{
		Name:          name,
		Sensor:        m[1],
		Tier:          Tier(m[2]),
		Published:     ts[0],
		ValidityStart: ts[1],
		ValidityEnd:   ts[2],
	}, true
}

// Store is a read-only view over the POE and RES directories
type Store struct {
	dirs []string
}

// New returns a store over the given directories; empty entries are ignored
func New(dirs ...string) *Store {
	s := &Store{}
	for _, d := range dirs {
		if d != "" {
			s.dirs = append(s.dirs, d)
		}
	}
	return s
}

// Files lists every recognized orbit file below the configured directories.
// Each directory is opened as an os.Root for the duration of the walk and closed
// before returning. A directory that does not exist contributes nothing
func (s *Store) Files(ctx context.Context) ([]File, error) {
	var out []File
	for _, dir := range s.dirs {
		files, err := walkDir(ctx, dir)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ValidityEnd.Equal(out[j].ValidityEnd) {
			return out[i].ValidityEnd.Before(out[j].ValidityEnd)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func walkDir(ctx context.Context, dir string) ([]File, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("orbits: open %s: %w", dir, err)
	}
	defer root.Close()

	var out []File
	err = fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		if f, ok := ParseName(d.Name()); ok {
			out = append(out, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("orbits: walk %s: %w", dir, err)
	}
	return out, nil
}

