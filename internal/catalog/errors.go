package catalog

import "fmt"

// Namespace distinguishes the two lookup spaces of the manifest.
type Namespace string

const (
	NamespaceDatasets Namespace = "datasets"
	NamespaceExhibits Namespace = "exhibits"
)

// ManifestError reports a missing or invalid manifest. It is fatal: no stage
// can run without a catalog.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// NotFoundError reports a lookup for a name the manifest does not declare,
// naming the namespace that was searched.
type NotFoundError struct {
	Name      string
	Namespace Namespace
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%q not found in catalog namespace %q", e.Name, e.Namespace)
}
