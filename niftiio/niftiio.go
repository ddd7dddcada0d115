// Package niftiio loads already-computed perfusion maps stored as NIfTI
// volumes, skipping the colormap decoder entirely.
package niftiio

import (
	"context"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/ctperfusion/volume"
	"github.com/carbocation/pfx"
)

// Load reads the first frame of a .nii or .nii.gz file as a volume of the
// given kind. Voxel spacing comes from pixdim; nonpositive entries fall back
// to defaultSpacing with a warning. Files on Google Storage are staged to a
// temporary file first.
func Load(ctx context.Context, path string, client *storage.Client, kind volume.Kind, unit volume.Unit, defaultSpacing volume.Spacing) (*volume.Volume, []ctperfusion.Warning, error) {
	local, cleanup, err := localCopy(ctx, path, client)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	img, err := SafelyNiftiParse(local, true)
	if err != nil {
		return nil, nil, ctperfusion.NewInputDataError(kind.String(), path, "could not parse NIfTI image: %v", err)
	}
	hdr, err := SafelyNiftiHeaderParse(local)
	if err != nil {
		return nil, nil, ctperfusion.NewInputDataError(kind.String(), path, "could not parse NIfTI header: %v", err)
	}

	dims := img.GetDims()
	if len(dims) < 3 || dims[0] < 1 || dims[1] < 1 || dims[2] < 1 {
		return nil, nil, ctperfusion.NewInputDataError(kind.String(), path, "unusable dimensions %v", dims)
	}
	if len(dims) > 3 && dims[3] > 1 {
		log.Printf("%s has %d frames; using the first\n", path, dims[3])
	}

	grid := Grid{
		Dims:    [3]int{dims[0], dims[1], dims[2]},
		Spacing: [3]float64{float64(hdr.Pixdim[1]), float64(hdr.Pixdim[2]), float64(hdr.Pixdim[3])},
		At: func(x, y, z int) float64 {
			return float64(img.GetAt(x, y, z, 0))
		},
	}

	return grid.Volume(kind, unit, path, defaultSpacing)
}

// Grid is a voxel array addressed as (x, y, z).
type Grid struct {
	Dims    [3]int
	Spacing [3]float64
	At      func(x, y, z int) float64
}

// Volume copies the grid into a volume.
func (g Grid) Volume(kind volume.Kind, unit volume.Unit, source string, defaultSpacing volume.Spacing) (*volume.Volume, []ctperfusion.Warning, error) {
	shape := volume.Shape{Width: g.Dims[0], Height: g.Dims[1], Depth: g.Dims[2]}

	var warnings []ctperfusion.Warning
	spacing := volume.Spacing{X: g.Spacing[0], Y: g.Spacing[1], Z: g.Spacing[2]}
	if spacing.X <= 0 || spacing.Y <= 0 {
		warnings = append(warnings, ctperfusion.NewWarning(ctperfusion.WarnDefaultPixelSpacing, kind.String(),
			"%s has no usable in-plane pixdim; using %gx%g mm", source, defaultSpacing.X, defaultSpacing.Y))
		spacing.X, spacing.Y = defaultSpacing.X, defaultSpacing.Y
	}
	if spacing.Z <= 0 {
		warnings = append(warnings, ctperfusion.NewWarning(ctperfusion.WarnDefaultSliceThickness, kind.String(),
			"%s has no usable slice pixdim; using %g mm", source, defaultSpacing.Z))
		spacing.Z = defaultSpacing.Z
	}

	data := make([]float64, shape.Len())
	var nonFinite int
	for i := range data {
		x, y, z := shape.Coords(i)
		data[i] = g.At(x, y, z)
		if math.IsNaN(data[i]) || math.IsInf(data[i], 0) {
			nonFinite++
		}
	}
	if nonFinite > 0 {
		warnings = append(warnings, ctperfusion.NewWarning(ctperfusion.WarnNonFiniteVoxels, kind.String(),
			"%s has %d NaN or infinite voxels; treating them as background", source, nonFinite))
	}

	v, err := volume.New(kind, unit, shape, spacing, data)
	if err != nil {
		return nil, warnings, pfx.Err(err)
	}

	return v, warnings, nil
}

// localCopy returns a path the nifti library can open by name.
func localCopy(ctx context.Context, path string, client *storage.Client) (string, func(), error) {
	if !ctperfusion.IsGoogleStorage(path) {
		return ctperfusion.ExpandHome(path), func() {}, nil
	}

	r, err := ctperfusion.Open(ctx, path, client)
	if err != nil {
		return "", nil, err
	}
	defer r.Close()

	// The library picks gzip handling from the extension.
	suffix := ".nii"
	if strings.HasSuffix(path, ".gz") {
		suffix = ".nii.gz"
	}

	f, err := os.CreateTemp("", "ctperf-*"+suffix)
	if err != nil {
		return "", nil, pfx.Err(err)
	}
	cleanup := func() { os.Remove(f.Name()) }

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		cleanup()
		return "", nil, pfx.Err(err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, pfx.Err(err)
	}

	log.Printf("Staged %s to %s\n", path, filepath.Base(f.Name()))

	return f.Name(), cleanup, nil
}
