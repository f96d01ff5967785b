// Package textutil holds text normalization and edit-distance similarity used to
// deduplicate near-identical on-screen text extracted from lecture video frames.
package textutil
