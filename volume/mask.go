package volume

// Mask is an immutable boolean voxel grid. Combinators always return new
// masks.
type Mask struct {
	shape Shape
	bits  []bool
	count int
}

// MaskFrom evaluates in for every voxel index of shape.
func MaskFrom(shape Shape, in func(i int) bool) Mask {
	bits := make([]bool, shape.Len())
	count := 0
	for i := range bits {
		if in(i) {
			bits[i] = true
			count++
		}
	}
	return Mask{shape: shape, bits: bits, count: count}
}

// EmptyMask has no voxels set.
func EmptyMask(shape Shape) Mask {
	return Mask{shape: shape, bits: make([]bool, shape.Len())}
}

func (m Mask) Shape() Shape { return m.shape }
func (m Mask) Count() int { return m.count }
func (m Mask) Empty() bool { return m.count == 0 }
func (m Mask) At(i int) bool { return m.bits[i] }
func (m Mask) AtXYZ(x, y, z int) bool {
	return m.bits[m.shape.Index(x, y, z)]
}

func (m Mask) And(o Mask) Mask {
	return MaskFrom(m.shape, func(i int) bool { return m.bits[i] && o.bits[i] })
}

func (m Mask) Or(o Mask) Mask {
	return MaskFrom(m.shape, func(i int) bool { return m.bits[i] || o.bits[i] })
}

func (m Mask) AndNot(o Mask) Mask {
	return MaskFrom(m.shape, func(i int) bool { return m.bits[i] && !o.bits[i] })
}

// Where keeps the voxels of m for which keep returns true.
func (m Mask) Where(keep func(i int) bool) Mask {
	return MaskFrom(m.shape, func(i int) bool { return m.bits[i] && keep(i) })
}

// FlipX mirrors the mask left-right across the sagittal midline.
func (m Mask) FlipX() Mask {
	s := m.shape
	return MaskFrom(s, func(i int) bool {
		x, y, z := s.Coords(i)
		return m.bits[s.Index(s.Width-1-x, y, z)]
	})
}

// SubsetOf reports whether every voxel of m is also set in o.
func (m Mask) SubsetOf(o Mask) bool {
	for i, in := range m.bits {
		if in && !o.bits[i] {
			return false
		}
	}
	return true
}

// Disjoint reports whether m and o share no voxel.
func (m Mask) Disjoint(o Mask) bool {
	for i, in := range m.bits {
		if in && o.bits[i] {
			return false
		}
	}
	return true
}

func (m Mask) Equal(o Mask) bool {
	if m.shape != o.shape {
		return false
	}
	for i := range m.bits {
		if m.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}

// SliceCount counts the voxels set in axial slice z.
func (m Mask) SliceCount(z int) int {
	n := m.shape.SliceLen()
	count := 0
	for _, in := range m.bits[z*n : (z+1)*n] {
		if in {
			count++
		}
	}
	return count
}

// Bytes renders the mask as 0/1 values in index order.
func (m Mask) Bytes() []uint8 {
	out := make([]uint8, len(m.bits))
	for i, in := range m.bits {
		if in {
			out[i] = 1
		}
	}
	return out
}
