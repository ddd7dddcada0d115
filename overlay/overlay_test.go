package overlay

import (
	"image/color"
	"testing"

	"github.com/carbocation/ctperfusion/volume"
)

func TestDefaultLabelsValid(t *testing.T) {
	l := DefaultLabels()
	if !l.Valid() {
		t.Fatal("default labels reuse an ID")
	}

	sorted := l.Sorted()
	if sorted[0].Label != "background" || sorted[2].Label != "core" {
		t.Errorf("unexpected order %+v", sorted)
	}

	l["duplicate"] = Label{ID: IDCore, Color: "#0000ff"}
	if l.Valid() {
		t.Error("duplicate IDs should be invalid")
	}
}

func TestLabeledPixelToID(t *testing.T) {
	tests := []struct {
		in      color.Color
		want    uint32
		wantErr bool
	}{
		{color.RGBA{0, 0, 0, 255}, 0, false},
		{color.RGBA{1, 1, 1, 255}, 1, false},
		{color.RGBA{2, 2, 2, 255}, 2, false},
		{color.RGBA{1, 2, 1, 255}, 0, true},
	}

	for _, tt := range tests {
		got, err := LabeledPixelToID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("%v: error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%v: got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSliceImages(t *testing.T) {
	shape := volume.Shape{Width: 4, Height: 2, Depth: 2}
	core := volume.MaskFrom(shape, func(i int) bool {
		x, _, z := shape.Coords(i)
		return z == 1 && x == 0
	})
	penumbra := volume.MaskFrom(shape, func(i int) bool {
		x, _, z := shape.Coords(i)
		return z == 1 && x == 1
	})

	data := make([]float64, shape.Len())
	for i := range data {
		data[i] = 6
	}
	tmax, err := volume.New(volume.KindTmax, volume.UnitSeconds, shape, volume.Spacing{X: 1, Y: 1, Z: 1}, data)
	if err != nil {
		t.Fatal(err)
	}

	labels := Labels(core, penumbra)
	encoded, composite, err := DefaultLabels().SliceImages(tmax, labels, 1, 12, 3)
	if err != nil {
		t.Fatal(err)
	}

	for x, want := range []uint32{2, 1, 0, 0} {
		got, err := LabeledPixelToID(encoded.At(x, 0))
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("x=%d: ID %d, want %d", x, got, want)
		}
	}

	if b := composite.Bounds(); b.Dx() != 12 || b.Dy() != 6 {
		t.Errorf("composite is %dx%d, want 12x6", b.Dx(), b.Dy())
	}

	// Core pixels are tinted red, background is the plain gray window.
	r, g, _, _ := composite.At(0, 0).RGBA()
	if r <= g {
		t.Errorf("core pixel not red-dominant: r=%d g=%d", r, g)
	}
	bg := composite.NRGBAAt(9, 0)
	if bg.R != bg.G || bg.G != bg.B {
		t.Errorf("background pixel is tinted: %+v", bg)
	}

	if _, err := LabelSlice(labels, shape, 5); err == nil {
		t.Error("expected an error for an out of range slice")
	}
}
