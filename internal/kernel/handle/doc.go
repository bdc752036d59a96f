// Package handle implements the per-process capability table.
//
// Knowing a handle id with the correct kind tag is both necessary and
// sufficient to invoke the matching operations; there is no secondary
// permission check. Unknown ids and kind-tag mismatches fail identically so
// a caller cannot probe the table's contents.
package handle
