// Package cache defines the disk-backed named stores responsible for
// translating request identities into StoragePath/<store>/<path> files. A
// store name carries the deployed version tag, so dropping a store directory
// is the unit of invalidation used during activation. The store exposes
// read/write primitives with safe semantics (temp file + rename) plus
// whole-store enumeration and removal for lifecycle cleanup.
package cache
