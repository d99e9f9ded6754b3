// Package version carries the pipeline's release version.
package version

// Current is the release version, without a "v" prefix.
const Current = "0.1.0"
