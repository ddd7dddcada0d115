package export

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/carbocation/ctperfusion/overlay"
	"github.com/carbocation/ctperfusion/volume"
	"github.com/carbocation/pfx"
	"github.com/tj/go-rle"
)

// LabelRLE is the run-length encoded label volume. Each slice is the
// base64 of the go-rle varint encoding of its labels in row-major order.
type LabelRLE struct {
	Shape  []int           `json:"shape_zyx"`
	Labels map[string]uint `json:"labels"`
	Slices []LabelRLESlice `json:"slices"`
}

type LabelRLESlice struct {
	Slice int    `json:"slice_index"`
	RLE   string `json:"rle"`
}

// EncodeLabels run-length encodes a label volume one axial slice at a time.
func EncodeLabels(labels []uint8, shape volume.Shape, names overlay.LabelMap) (LabelRLE, error) {
	if len(labels) != shape.Len() {
		return LabelRLE{}, fmt.Errorf("%d labels for a %s grid", len(labels), shape)
	}

	out := LabelRLE{
		Shape:  shape.ZYX(),
		Labels: make(map[string]uint, len(names)),
		Slices: make([]LabelRLESlice, 0, shape.Depth),
	}
	for name, l := range names {
		out.Labels[name] = l.ID
	}

	n := shape.SliceLen()
	ids := make([]int64, n)
	for z := 0; z < shape.Depth; z++ {
		for i, v := range labels[z*n : (z+1)*n] {
			ids[i] = int64(v)
		}
		out.Slices = append(out.Slices, LabelRLESlice{
			Slice: z,
			RLE:   base64.StdEncoding.EncodeToString(rle.EncodeInt64(ids)),
		})
	}

	return out, nil
}

// Decode reverses EncodeLabels.
func (l LabelRLE) Decode() ([]uint8, volume.Shape, error) {
	if len(l.Shape) != 3 {
		return nil, volume.Shape{}, fmt.Errorf("shape %v is not three dimensional", l.Shape)
	}
	shape := volume.Shape{Width: l.Shape[2], Height: l.Shape[1], Depth: l.Shape[0]}
	if len(l.Slices) != shape.Depth {
		return nil, shape, fmt.Errorf("%d encoded slices for depth %d", len(l.Slices), shape.Depth)
	}

	out := make([]uint8, 0, shape.Len())
	for _, s := range l.Slices {
		b, err := base64.StdEncoding.DecodeString(s.RLE)
		if err != nil {
			return nil, shape, pfx.Err(fmt.Errorf("slice %d: %w", s.Slice, err))
		}
		ids, err := rle.DecodeInt64(b)
		if err != nil {
			return nil, shape, pfx.Err(fmt.Errorf("slice %d: %w", s.Slice, err))
		}
		if len(ids) != shape.SliceLen() {
			return nil, shape, fmt.Errorf("slice %d decoded to %d labels, want %d", s.Slice, len(ids), shape.SliceLen())
		}
		for _, id := range ids {
			out = append(out, uint8(id))
		}
	}

	return out, shape, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return pfx.Err(enc.Encode(v))
}

func WriteJSONFile(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := WriteJSON(f, v); err != nil {
		f.Close()
		return err
	}

	return pfx.Err(f.Close())
}
