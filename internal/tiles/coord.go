package tiles

import "fmt"

// Coord identifies a single tile by zoom level and column/row.
type Coord struct {
	Z int
	X int
	Y int
}

// String renders the coordinate as "z/x/y", the form used in failure
// logs and progress output.
func (c Coord) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// Path renders the coordinate as the relative path "z/x/y.pbf". The same
// shape is used for the request path on the tile server and the location
// in the local store.
func (c Coord) Path() string {
	return fmt.Sprintf("%d/%d/%d.pbf", c.Z, c.X, c.Y)
}

// Range is an inclusive integer interval. A Range with Max < Min is empty.
type Range struct {
	Min int
	Max int
}

// Len returns the number of integers in the range, or 0 if it is empty.
func (r Range) Len() int {
	if r.Max < r.Min {
		return 0
	}
	return r.Max - r.Min + 1
}

// Space is the Cartesian product of a zoom, x, and y range.
type Space struct {
	Z Range
	X Range
	Y Range
}

// Count returns the total number of coordinates in the space.
func (s Space) Count() int64 {
	return int64(s.Z.Len()) * int64(s.X.Len()) * int64(s.Y.Len())
}

// Iter returns a fresh iterator over the space in nested z, x, y order.
func (s Space) Iter() *Iter {
	return &Iter{space: s, z: s.Z.Min, x: s.X.Min, y: s.Y.Min}
}

// Iter enumerates a Space lazily. It is not safe for concurrent use;
// each consumer should pull from a single goroutine.
type Iter struct {
	space   Space
	z, x, y int
	done    bool
}

// Next returns the next coordinate in the sequence, or ok=false when the
// space is exhausted. An empty range in any dimension yields no coordinates.
func (it *Iter) Next() (Coord, bool) {
	if it.done || it.space.Count() == 0 {
		it.done = true
		return Coord{}, false
	}

	c := Coord{Z: it.z, X: it.x, Y: it.y}

	it.y++
	if it.y > it.space.Y.Max {
		it.y = it.space.Y.Min
		it.x++
		if it.x > it.space.X.Max {
			it.x = it.space.X.Min
			it.z++
			if it.z > it.space.Z.Max {
				it.done = true
			}
		}
	}

	return c, true
}
