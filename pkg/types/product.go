// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DataProduct is a downloadable file (image, spectrum, FITS table) referenced
// by a query result.
type DataProduct struct {
	// ID is the product identifier from the archive (obs_publisher_did, etc).
	ID string `json:"id" yaml:"id"`

	// Service names the archive that lists the product; it selects the
	// download subdirectory.
	Service string `json:"service" yaml:"service"`

	// URL is the access URL.
	URL string `json:"url" yaml:"url"`

	// Filename overrides the local file name. When empty the name comes from
	// Content-Disposition or the URL path.
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`

	// Size is the expected size in bytes, if the archive reports it.
	Size int64 `json:"size,omitempty" yaml:"size,omitempty"`

	// LocalPath is set once the file is on disk.
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`
}
