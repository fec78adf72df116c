// Package output renders joi listings in the selectable output formats and
// writes generated files such as the starter config.
//
// Formats are looked up by name in a [Registry]; [DefaultRegistry] knows yaml
// and json, and callers may add their own (the CLI adds a table view).
// [FileWriter] replaces a file atomically and refuses to clobber an existing
// one unless told to.
package output
