package discovery

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sarbatch/internal/core/geom"
	"sarbatch/internal/core/scene"

	"github.com/paulmach/orb"
)

// ErrUnidentified marks a path whose name is not a known product
var ErrUnidentified = errors.New("discovery: unidentified product")

// ErrNoManifest marks a product without a readable manifest.safe
var ErrNoManifest = errors.New("discovery: manifest.safe not found")

// S1A_IW_GRDH_1SDV_20150309T173017_20150309T173042_004967_006385_D3B1
var s1Name = regexp.MustCompile(`^(S1[A-D])_(IW|EW|SM|WV|S[1-6])_(GRD|SLC|OCN|RAW)([FHM_])_([0-2])([SD])([HV])_(\d{8}T\d{6})_(\d{8}T\d{6})_(\d{6})_([0-9A-F]{6})_([0-9A-F]{4})$`)

// ProductName strips the container extension from a product path
func ProductName(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".zip", ".SAFE"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// ParseName extracts scene identity from a Sentinel-1 product name. The footprint is left empty
func ParseName(name string) (scene.Scene, error) {
	m := s1Name.FindStringSubmatch(name)
	if m == nil {
		return scene.Scene{}, fmt.Errorf("%w: %s", ErrUnidentified, name)
	}
	start, err := time.ParseInLocation(scene.StampLayout, m[8], time.UTC)
	if err != nil {
		return scene.Scene{}, fmt.Errorf("%w: start %s", ErrUnidentified, m[8])
	}
	stop, err := time.ParseInLocation(scene.StampLayout, m[9], time.UTC)
	if err != nil {
		return scene.Scene{}, fmt.Errorf("%w: stop %s", ErrUnidentified, m[9])
	}
	orbit, _ := strconv.Atoi(m[10])

	var pols scene.Polarization
	switch m[6] + m[7] {
	case "SV":
		pols = scene.VV
	case "DV":
		pols = scene.VV | scene.VH
	case "SH":
		pols = scene.HH
	case "DH":
		pols = scene.HH | scene.HV
	}

	return scene.Scene{
		ID:            name,
		Sensor:        m[1],
		Mode:          m[2],
		Product:       m[3],
		AbsoluteOrbit: orbit,
		Polarizations: pols,
		AcquiredAt:    start,
		StoppedAt:     stop,
	}, nil
}

// Identify parses the product name and reads footprint and pass direction from
// manifest.safe inside a .SAFE directory or a .zip archive
func Identify(path string) (scene.Scene, error) {
	s, err := ParseName(ProductName(path))
	if err != nil {
		return scene.Scene{}, err
	}
	s.Path = path

	rc, err := openManifest(path)
	if err != nil {
		return scene.Scene{}, err
	}
	defer rc.Close()

	m, err := parseManifest(rc)
	if err != nil {
		return scene.Scene{}, fmt.Errorf("discovery: %s: %w", s.ID, err)
	}
	s.Footprint = m.footprint
	s.Orbit = m.orbit
	return s, nil
}

func openManifest(path string) (io.ReadCloser, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	if info.IsDir() {
		f, err := os.Open(filepath.Join(path, "manifest.safe"))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNoManifest, path)
		}
		return f, nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("discovery: open zip %s: %w", path, err)
	}
	for _, f := range zr.File {
		if filepath.Base(f.Name) != "manifest.safe" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			_ = zr.Close()
			return nil, fmt.Errorf("discovery: %s: %w", f.Name, err)
		}
		return zipEntry{ReadCloser: rc, zr: zr}, nil
	}
	_ = zr.Close()
	return nil, fmt.Errorf("%w: %s", ErrNoManifest, path)
}

// zipEntry closes both the entry and its archive
type zipEntry struct {
	io.ReadCloser
	zr *zip.ReadCloser
}

func (z zipEntry) Close() error {
	return errors.Join(z.ReadCloser.Close(), z.zr.Close())
}

type manifest struct {
	footprint orb.Polygon
	orbit     string
}

// parseManifest streams the XML and keeps the first footprint coordinates and pass
func parseManifest(r io.Reader) (manifest, error) {
	var m manifest
	dec := xml.NewDecoder(r)
	var coords string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return m, fmt.Errorf("manifest: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "coordinates":
			if coords == "" {
				var text string
				if err := dec.DecodeElement(&text, &se); err != nil {
					return m, fmt.Errorf("manifest: coordinates: %w", err)
				}
				coords = text
			}
		case "pass":
			var text string
			if err := dec.DecodeElement(&text, &se); err != nil {
				return m, fmt.Errorf("manifest: pass: %w", err)
			}
			switch strings.ToUpper(strings.TrimSpace(text)) {
			case "ASCENDING":
				m.orbit = "A"
			case "DESCENDING":
				m.orbit = "D"
			}
		}
	}
	if coords == "" {
		return m, errors.New("manifest: no footprint coordinates")
	}
	fp, err := geom.ParseGMLCoordinates(coords)
	if err != nil {
		return m, err
	}
	m.footprint = fp
	return m, nil
}
