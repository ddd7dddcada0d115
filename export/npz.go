// Package export writes the segmentation masks for downstream viewers.
package export

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/carbocation/ctperfusion/segment"
	"github.com/carbocation/ctperfusion/volume"
	"github.com/carbocation/pfx"
	"github.com/kshedden/gonpy"
)

// NamedMask is one array of an npz archive.
type NamedMask struct {
	Name string
	Mask volume.Mask
}

// SegmentationMasks lists the arrays written for a segmentation, in archive
// order.
func SegmentationMasks(seg *segment.Result) []NamedMask {
	return []NamedMask{
		{Name: "hypoperfusion", Mask: seg.Hypoperfusion},
		{Name: "core", Mask: seg.Core},
		{Name: "penumbra", Mask: seg.Penumbra},
		{Name: "brain", Mask: seg.Brain},
	}
}

// nopCloser keeps the npy writer from closing the zip archive underneath it.
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// WriteNPZ writes each mask as a uint8 array shaped (Z, Y, X), readable with
// numpy.load.
func WriteNPZ(w io.Writer, masks []NamedMask) error {
	zw := zip.NewWriter(w)

	for _, m := range masks {
		entry, err := zw.Create(m.Name + ".npy")
		if err != nil {
			return pfx.Err(err)
		}

		npy, err := gonpy.NewWriter(nopCloser{entry})
		if err != nil {
			return pfx.Err(err)
		}
		npy.Shape = m.Mask.Shape().ZYX()

		if err := npy.WriteUint8(m.Mask.Bytes()); err != nil {
			return pfx.Err(fmt.Errorf("%s: %w", m.Name, err))
		}
	}

	return pfx.Err(zw.Close())
}

func WriteNPZFile(path string, masks []NamedMask) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := WriteNPZ(f, masks); err != nil {
		f.Close()
		return err
	}

	return pfx.Err(f.Close())
}
