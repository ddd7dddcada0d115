package export

import (
	"archive/zip"
	"bytes"
	"image/png"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/carbocation/ctperfusion/indices"
	"github.com/carbocation/ctperfusion/overlay"
	"github.com/carbocation/ctperfusion/volume"
)

var testShape = volume.Shape{Width: 5, Height: 3, Depth: 2}

func testMask(in func(x, y, z int) bool) volume.Mask {
	return volume.MaskFrom(testShape, func(i int) bool {
		return in(testShape.Coords(i))
	})
}

func TestLabelRLERoundTrip(t *testing.T) {
	core := testMask(func(x, y, z int) bool { return z == 1 && x < 2 })
	penumbra := testMask(func(x, y, z int) bool { return z == 1 && x == 2 || z == 0 && y == 1 })
	labels := overlay.Labels(core, penumbra)

	enc, err := EncodeLabels(labels, testShape, overlay.DefaultLabels())
	if err != nil {
		t.Fatal(err)
	}
	if len(enc.Slices) != testShape.Depth || enc.Labels["core"] != overlay.IDCore {
		t.Fatalf("unexpected encoding %+v", enc)
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, enc); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"shape_zyx"`) {
		t.Errorf("unexpected JSON %s", buf.String())
	}

	got, shape, err := enc.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if shape != testShape {
		t.Errorf("shape %s, want %s", shape, testShape)
	}
	if !bytes.Equal(got, labels) {
		t.Errorf("labels changed in round trip:\n got %v\nwant %v", got, labels)
	}
}

func TestLabelRLEDecodeErrors(t *testing.T) {
	if _, _, err := (LabelRLE{Shape: []int{2, 2}}).Decode(); err == nil {
		t.Error("expected an error for a 2D shape")
	}
	if _, _, err := (LabelRLE{Shape: []int{1, 1, 1}, Slices: []LabelRLESlice{{RLE: "%%"}}}).Decode(); err == nil {
		t.Error("expected an error for bad base64")
	}
	if _, err := EncodeLabels([]uint8{1}, testShape, nil); err == nil {
		t.Error("expected an error for a short label volume")
	}
}

func TestWriteNPZEntries(t *testing.T) {
	masks := []NamedMask{
		{Name: "hypoperfusion", Mask: testMask(func(x, y, z int) bool { return x > 1 })},
		{Name: "core", Mask: testMask(func(x, y, z int) bool { return x > 3 })},
	}

	var buf bytes.Buffer
	if err := WriteNPZ(&buf, masks); err != nil {
		t.Fatal(err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}

	payload := map[string][]byte{
		"hypoperfusion.npy": masks[0].Mask.Bytes(),
		"core.npy":          masks[1].Mask.Bytes(),
	}

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)

		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}

		if !bytes.HasPrefix(b, []byte("\x93NUMPY")) {
			t.Errorf("%s does not start with the npy magic", f.Name)
		}
		if !bytes.Contains(b, []byte("shape")) {
			t.Errorf("%s header lacks a shape", f.Name)
		}
		if want := payload[f.Name]; !bytes.HasSuffix(b, want) || len(b) <= len(want) {
			t.Errorf("%s payload does not match the mask", f.Name)
		}
	}

	sort.Strings(names)
	if strings.Join(names, ",") != "core.npy,hypoperfusion.npy" {
		t.Errorf("entries %v", names)
	}
}

func TestSliceAreaChart(t *testing.T) {
	stats := []indices.SliceStat{
		{Slice: 0, CoreAreaCM2: 0.5, PenumbraAreaCM2: 1.5},
		{Slice: 1, CoreAreaCM2: 1.0, PenumbraAreaCM2: 0.5},
		{Slice: 2},
	}

	var buf bytes.Buffer
	if err := SliceAreaChart(&buf, stats); err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("chart is not a PNG: %v", err)
	}

	if err := SliceAreaChart(io.Discard, nil); err == nil {
		t.Error("expected an error with no slices")
	}
}
