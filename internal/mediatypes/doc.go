// Package mediatypes defines the file classification model shared by the
// agent's tree walker and the catalog server's ingestion reclassifier:
// extension tables for the known media kinds, junk file-name globs, and
// the precedence rules between them.
package mediatypes
