// Package volume holds calibrated perfusion volumes, boolean masks over their
// voxel grid, and the assembler that builds volumes from 2D slices.
package volume

import (
	"fmt"
	"math"
)

// Shape is a voxel grid. Data is stored z-major: index = z*W*H + y*W + x.
type Shape struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Depth  int `json:"depth"`
}

func (s Shape) Len() int {
	return s.Width * s.Height * s.Depth
}

func (s Shape) SliceLen() int {
	return s.Width * s.Height
}

func (s Shape) Index(x, y, z int) int {
	return z*s.Width*s.Height + y*s.Width + x
}

// Coords is the inverse of Index.
func (s Shape) Coords(i int) (x, y, z int) {
	z = i / s.SliceLen()
	rem := i % s.SliceLen()
	return rem % s.Width, rem / s.Width, z
}

// ZYX returns the shape in array order, as written to mask arrays.
func (s Shape) ZYX() []int {
	return []int{s.Depth, s.Height, s.Width}
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Width, s.Height, s.Depth)
}

// Spacing is the physical voxel size in millimeters.
type Spacing struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// VoxelVolumeML converts one voxel to milliliters.
func (s Spacing) VoxelVolumeML() float64 {
	return s.X * s.Y * s.Z / 1000.0
}

// PixelAreaCM2 converts one in-plane pixel to square centimeters.
func (s Spacing) PixelAreaCM2() float64 {
	return s.X * s.Y / 100.0
}

func (s Spacing) Array() [3]float64 {
	return [3]float64{s.X, s.Y, s.Z}
}

// Equal compares spacings with a small tolerance for values that were
// round-tripped through DICOM decimal strings.
func (s Spacing) Equal(o Spacing) bool {
	const tol = 1e-6
	return math.Abs(s.X-o.X) < tol && math.Abs(s.Y-o.Y) < tol && math.Abs(s.Z-o.Z) < tol
}

// Volume is an immutable 3D grid of physical values for one parameter.
type Volume struct {
	kind    Kind
	unit    Unit
	shape   Shape
	spacing Spacing
	data    []float64
}

// New builds a volume from a copy of data. Non-finite values become 0
// (background).
func New(kind Kind, unit Unit, shape Shape, spacing Spacing, data []float64) (*Volume, error) {
	if shape.Width <= 0 || shape.Height <= 0 || shape.Depth <= 0 {
		return nil, fmt.Errorf("invalid volume shape %s", shape)
	}
	if len(data) != shape.Len() {
		return nil, fmt.Errorf("volume %s has %d values, expected %d for shape %s", kind, len(data), shape.Len(), shape)
	}

	cp := make([]float64, len(data))
	for i, v := range data {
		cp[i] = finiteOrZero(v)
	}

	return newOwned(kind, unit, shape, spacing, cp), nil
}

// newOwned takes ownership of data without copying.
func newOwned(kind Kind, unit Unit, shape Shape, spacing Spacing, data []float64) *Volume {
	return &Volume{
		kind:    kind,
		unit:    unit,
		shape:   shape,
		spacing: spacing,
		data:    data,
	}
}

func (v *Volume) Kind() Kind { return v.kind }
func (v *Volume) Unit() Unit { return v.unit }
func (v *Volume) Shape() Shape { return v.shape }
func (v *Volume) Spacing() Spacing { return v.spacing }
func (v *Volume) Len() int { return len(v.data) }
func (v *Volume) At(i int) float64 { return v.data[i] }
func (v *Volume) AtXYZ(x, y, z int) float64 {
	return v.data[v.shape.Index(x, y, z)]
}

// Values returns a copy of the voxel data.
func (v *Volume) Values() []float64 {
	out := make([]float64, len(v.data))
	copy(out, v.data)
	return out
}

// Slice returns a copy of one axial slice.
func (v *Volume) Slice(z int) []float64 {
	n := v.shape.SliceLen()
	out := make([]float64, n)
	copy(out, v.data[z*n:(z+1)*n])
	return out
}

// Threshold returns the mask of voxels for which keep returns true.
func (v *Volume) Threshold(keep func(float64) bool) Mask {
	return MaskFrom(v.shape, func(i int) bool { return keep(v.data[i]) })
}

// Masked returns the values of the voxels inside m, in index order.
func (v *Volume) Masked(m Mask) []float64 {
	out := make([]float64, 0, m.Count())
	for i, in := range m.bits {
		if in {
			out = append(out, v.data[i])
		}
	}
	return out
}
