package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed awards.yaml
var awardsDescriptor []byte

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// Descriptor is the column documentation and example values passed verbatim
// to SQL generation. It is not used to validate generated queries.
type Descriptor struct {
	Table   string              `yaml:"table" json:"table"`
	Columns map[string]string   `yaml:"columns" json:"columns"`
	Samples map[string][]string `yaml:"samples" json:"samples"`
}

type Provider interface {
	Descriptor() Descriptor
}

func Default() (Descriptor, error) {
	return Parse(awardsDescriptor)
}

func Parse(raw []byte) (Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Descriptor{}, fmt.Errorf("decode schema descriptor: %w", err)
	}
	d.Table = strings.TrimSpace(d.Table)
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func LoadFile(path string) (Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read schema descriptor %q: %w", path, err)
	}
	return Parse(raw)
}

// Load returns the descriptor at path, or the built-in tm_awards descriptor
// when path is empty.
func Load(path string) (Descriptor, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	return LoadFile(path)
}

func (d Descriptor) Validate() error {
	if !identifierPattern.MatchString(d.Table) {
		return fmt.Errorf("invalid table name %q", d.Table)
	}
	if len(d.Columns) == 0 {
		return fmt.Errorf("schema descriptor for %q has no columns", d.Table)
	}
	for column := range d.Samples {
		if _, ok := d.Columns[column]; !ok {
			return fmt.Errorf("sample values for unknown column %q", column)
		}
	}
	return nil
}

func (d Descriptor) ColumnNames() []string {
	names := make([]string, 0, len(d.Columns))
	for name := range d.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d Descriptor) ColumnsJSON() (string, error) {
	raw, err := json.MarshalIndent(d.Columns, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal column definitions: %w", err)
	}
	return string(raw), nil
}

func (d Descriptor) SamplesJSON() (string, error) {
	raw, err := json.MarshalIndent(d.Samples, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sample data: %w", err)
	}
	return string(raw), nil
}

type Static struct {
	descriptor Descriptor
}

func NewStatic(d Descriptor) *Static {
	return &Static{descriptor: d}
}

func (s *Static) Descriptor() Descriptor {
	return s.descriptor
}
