package marker

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed assets/icons.yaml
var defaultIconsYAML []byte

// ErrInvalidIconTable is returned for icon tables that cannot be used.
var ErrInvalidIconTable = errors.New("invalid icon table")

type iconTable struct {
	Default string              `yaml:"default"`
	Icons   map[Category]string `yaml:"icons"`
}

// IconSet resolves the pin icon URL of a category.
type IconSet struct {
	defaultIcon string
	icons       map[Category]string
}

// DefaultIconSet returns the embedded icon table.
func DefaultIconSet() *IconSet {
	set, err := ParseIconSet(defaultIconsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded icon table: %v", err))
	}
	return set
}

// LoadIconSet reads an icon table from path, or the embedded one when path is empty.
func LoadIconSet(path string) (*IconSet, error) {
	if path == "" {
		return DefaultIconSet(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read icon table: %w", err)
	}
	return ParseIconSet(data)
}

// ParseIconSet decodes a YAML icon table. A default icon is required and
// every key must be a known category.
func ParseIconSet(data []byte) (*IconSet, error) {
	var t iconTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIconTable, err)
	}
	if t.Default == "" {
		return nil, fmt.Errorf("%w: missing default icon", ErrInvalidIconTable)
	}
	for c := range t.Icons {
		if !c.Known() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidIconTable, c)
		}
	}
	if t.Icons == nil {
		t.Icons = map[Category]string{}
	}
	return &IconSet{defaultIcon: t.Default, icons: t.Icons}, nil
}

// Icon returns the icon URL of a category, or the default icon.
func (s *IconSet) Icon(c Category) string {
	if url, ok := s.icons[c]; ok && url != "" {
		return url
	}
	return s.defaultIcon
}

// Default returns the fallback icon URL.
func (s *IconSet) Default() string {
	return s.defaultIcon
}
