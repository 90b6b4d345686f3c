// Package tiles defines tile coordinates and coordinate spaces.
//
// A tile is addressed by a (zoom, x, y) triple. A Space is the Cartesian
// product of three inclusive integer ranges, enumerated lazily in nested
// z, x, y order.
//
// # Usage
//
//	space := tiles.Space{
//	    Z: tiles.Range{Min: 5, Max: 7},
//	    X: tiles.Range{Min: 0, Max: 100},
//	    Y: tiles.Range{Min: 0, Max: 100},
//	}
//
//	it := space.Iter()
//	for c, ok := it.Next(); ok; c, ok = it.Next() {
//	    // c.Z, c.X, c.Y
//	}
//
// Enumeration has no side effects and is restartable: a fresh Iter over the
// same Space yields the same sequence.
package tiles
