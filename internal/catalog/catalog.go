// Package catalog maps logical dataset and exhibit names to physical paths.
// Every pipeline stage resolves locations through a Catalog; no stage builds
// paths on its own.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the sentinel file that marks the project root.
const ManifestFile = "catalog.yaml"

// Type identifies how a dataset is serialized on disk.
type Type string

const (
	TypeRelational    Type = "relational"
	TypeDelimitedText Type = "delimited-text"
	TypeGeometry      Type = "geometry"
	TypeColumnar      Type = "columnar"
)

// Layer identifies which pipeline stage owns a dataset.
type Layer string

const (
	LayerRaw       Layer = "raw"
	LayerExternal  Layer = "external"
	LayerInterim   Layer = "interim"
	LayerProcessed Layer = "processed"
)

// DatasetEntry is one dataset declaration, immutable once loaded.
type DatasetEntry struct {
	Name  string
	Type  Type
	Path  string
	Layer Layer
}

// ExhibitEntry is one exhibit declaration. Exhibits with a static template
// carry both InputPath and Path; most carry Path only.
type ExhibitEntry struct {
	Name      string
	Type      string
	Path      string
	InputPath string
}

// Catalog holds the parsed manifest plus the project root all paths resolve
// against. Lookups after Load are pure map reads.
type Catalog struct {
	Root     string
	datasets map[string]DatasetEntry
	exhibits map[string]ExhibitEntry
}

type rawDataset struct {
	Type  string `yaml:"type"`
	Path  string `yaml:"path"`
	Layer string `yaml:"layer"`
}

type rawExhibit struct {
	Type       string `yaml:"type"`
	Path       string `yaml:"path"`
	InputPath  string `yaml:"input_path"`
	OutputPath string `yaml:"output_path"`
}

type rawManifest struct {
	Datasets map[string]rawDataset `yaml:"datasets"`
	Exhibits map[string]rawExhibit `yaml:"exhibits"`
}

// Load parses the manifest at path. The manifest's directory becomes the
// project root. Any schema violation is a ManifestError; the run cannot
// proceed without a valid catalog.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}
	var raw rawManifest
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, &ManifestError{Path: path, Err: fmt.Errorf("parse: %w", err)}
	}
	if len(raw.Datasets) == 0 {
		return nil, &ManifestError{Path: path, Err: fmt.Errorf("no datasets declared")}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Err: err}
	}

	c := &Catalog{
		Root:     filepath.Dir(abs),
		datasets: make(map[string]DatasetEntry, len(raw.Datasets)),
		exhibits: make(map[string]ExhibitEntry, len(raw.Exhibits)),
	}

	for name, d := range raw.Datasets {
		entry, err := validateDataset(name, d)
		if err != nil {
			return nil, &ManifestError{Path: path, Err: err}
		}
		c.datasets[name] = entry
	}
	for name, e := range raw.Exhibits {
		entry, err := validateExhibit(name, e)
		if err != nil {
			return nil, &ManifestError{Path: path, Err: err}
		}
		c.exhibits[name] = entry
	}
	return c, nil
}

func validateDataset(name string, d rawDataset) (DatasetEntry, error) {
	switch Type(d.Type) {
	case TypeRelational, TypeDelimitedText, TypeGeometry, TypeColumnar:
	default:
		return DatasetEntry{}, fmt.Errorf("dataset %q: unknown type %q", name, d.Type)
	}
	switch Layer(d.Layer) {
	case LayerRaw, LayerExternal, LayerInterim, LayerProcessed:
	default:
		return DatasetEntry{}, fmt.Errorf("dataset %q: unknown layer %q", name, d.Layer)
	}
	if d.Path == "" {
		return DatasetEntry{}, fmt.Errorf("dataset %q: path is required", name)
	}
	return DatasetEntry{Name: name, Type: Type(d.Type), Path: d.Path, Layer: Layer(d.Layer)}, nil
}

func validateExhibit(name string, e rawExhibit) (ExhibitEntry, error) {
	if e.Type == "" {
		return ExhibitEntry{}, fmt.Errorf("exhibit %q: type is required", name)
	}
	out := e.Path
	if out == "" {
		out = e.OutputPath
	}
	if out == "" {
		return ExhibitEntry{}, fmt.Errorf("exhibit %q: path or output_path is required", name)
	}
	if e.Path != "" && e.OutputPath != "" {
		return ExhibitEntry{}, fmt.Errorf("exhibit %q: path and output_path are mutually exclusive", name)
	}
	return ExhibitEntry{Name: name, Type: e.Type, Path: out, InputPath: e.InputPath}, nil
}

// Resolve returns the dataset entry for name.
func (c *Catalog) Resolve(name string) (DatasetEntry, error) {
	e, ok := c.datasets[name]
	if !ok {
		return DatasetEntry{}, &NotFoundError{Name: name, Namespace: NamespaceDatasets}
	}
	return e, nil
}

// ResolveExhibit returns the exhibit entry for name. Exhibits live in their
// own namespace; a dataset and an exhibit may share a name.
func (c *Catalog) ResolveExhibit(name string) (ExhibitEntry, error) {
	e, ok := c.exhibits[name]
	if !ok {
		return ExhibitEntry{}, &NotFoundError{Name: name, Namespace: NamespaceExhibits}
	}
	return e, nil
}

// Datasets returns all dataset names, sorted.
func (c *Catalog) Datasets() []string {
	out := make([]string, 0, len(c.datasets))
	for name := range c.datasets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Exhibits returns all exhibit names, sorted.
func (c *Catalog) Exhibits() []string {
	out := make([]string, 0, len(c.exhibits))
	for name := range c.exhibits {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AbsPath resolves a manifest-relative path against the project root.
func (c *Catalog) AbsPath(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Root, rel)
}
