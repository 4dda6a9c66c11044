// Package persistence provides the on-disk snapshot format shared by the
// catalog: a checksummed, self-describing envelope with optional payload
// compression, plus atomic file writing.
package persistence
