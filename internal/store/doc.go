// Package store persists tiles to a local directory tree.
//
// Tiles live at {root}/{z}/{x}/{y}.pbf. Writes are staged to a sibling
// {y}.pbf.part file and atomically renamed into place, so a concurrent
// reader never observes a partially written tile.
//
// # Usage
//
//	st, err := store.New("zip-tiles")
//	if st.IsPresent(coord) {
//	    // already downloaded, skip
//	}
//	n, err := st.Persist(coord, body)
//
// A tile counts as present only if the file exists with non-zero length,
// which makes re-runs idempotent.
//
// The package also syncs a completed tree to object storage via
// gocloud.dev/blob (see SyncToBucket) and audits a tree for damage
// (see Verify).
package store
