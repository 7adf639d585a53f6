package sites

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lookup maps a dispatch site id to the name used in the catalog when the two differ
type Lookup map[string]string

// LoadLookup reads a flat YAML mapping of site id to catalog name. An empty path yields an empty map
func LoadLookup(path string) (Lookup, error) {
	if path == "" {
		return Lookup{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sites: read lookup: %w", err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("sites: lookup yaml: %w", err)
	}
	out := make(Lookup, len(raw))
	for k, v := range raw {
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

// Key returns the catalog key for siteID, falling back to the id itself
func (l Lookup) Key(siteID string) string {
	if v, ok := l[strings.TrimSpace(siteID)]; ok && v != "" {
		return v
	}
	return siteID
}
