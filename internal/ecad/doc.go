// Package ecad reads the ECA&D text files: the element and station catalogs,
// the per-measurement sources index and the daily series files. It resolves
// one authoritative source file per station and measurement, and keeps the
// resolved collection in a dated cache artifact.
//
// Every file opens with a free-text preamble whose first line carries the
// publish date ("file created on DD-MM-YYYY"). Elements, sources and series
// files are ISO-8859-1 encoded.
package ecad
