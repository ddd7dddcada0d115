package volume

import (
	"github.com/theodesp/unionfind"
)

// Connected-component labelling in two passes: provisional labels from the
// already-visited neighbors, then union-find to merge labels that touch.
// Following http://aishack.in/tutorials/connected-component-labelling/

// components labels the face-connected components of m. When planar is true,
// voxels in different slices never connect. Labels are 1-based and 0 marks
// voxels outside the mask.
func (m Mask) components(planar bool) ([]int, map[int]int) {
	s := m.shape
	labels := make([]int, len(m.bits))
	uf := unionfind.NewThreadSafeUnionFind(m.count + 1)

	next := 1
	for i, in := range m.bits {
		if !in {
			continue
		}
		x, y, z := s.Coords(i)

		var neighbors [3]int
		n := 0
		if x > 0 && labels[i-1] > 0 {
			neighbors[n] = labels[i-1]
			n++
		}
		if y > 0 && labels[i-s.Width] > 0 {
			neighbors[n] = labels[i-s.Width]
			n++
		}
		if !planar && z > 0 && labels[i-s.SliceLen()] > 0 {
			neighbors[n] = labels[i-s.SliceLen()]
			n++
		}

		if n == 0 {
			labels[i] = next
			next++
			continue
		}

		smallest := neighbors[0]
		for _, l := range neighbors[1:n] {
			if l < smallest {
				smallest = l
			}
		}
		labels[i] = smallest
		for _, l := range neighbors[:n] {
			if l != smallest {
				uf.Union(smallest, l)
			}
		}
	}

	sizes := make(map[int]int)
	for i, l := range labels {
		if l == 0 {
			continue
		}
		if root := uf.Root(l); root > 0 {
			labels[i] = root
		}
		sizes[labels[i]]++
	}

	return labels, sizes
}

// LargestComponent returns the largest face-connected component of m. Ties
// go to the component reached first in index order.
func (m Mask) LargestComponent() Mask {
	if m.count == 0 {
		return EmptyMask(m.shape)
	}

	labels, sizes := m.components(false)

	best, bestSize := 0, 0
	for _, l := range labels {
		if l == 0 {
			continue
		}
		if sizes[l] > bestSize {
			best, bestSize = l, sizes[l]
		}
	}

	return MaskFrom(m.shape, func(i int) bool { return labels[i] == best })
}

// SliceComponents counts the separate in-plane regions of axial slice z.
func (m Mask) SliceComponents(z int) int {
	n := m.shape.SliceLen()
	sub := Mask{
		shape: Shape{Width: m.shape.Width, Height: m.shape.Height, Depth: 1},
		bits:  m.bits[z*n : (z+1)*n],
	}
	for _, in := range sub.bits {
		if in {
			sub.count++
		}
	}
	if sub.count == 0 {
		return 0
	}

	_, sizes := sub.components(true)
	return len(sizes)
}
