package dicomio

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/carbocation/ctperfusion/volume"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
)

func TestMetadataFromDataSet(t *testing.T) {
	ds := &element.DataSet{Elements: []*element.Element{
		{Tag: dicomtag.SeriesDescription, Value: []interface{}{"RAPID TMAXD "}},
		{Tag: dicomtag.SeriesNumber, Value: []interface{}{"12"}},
		{Tag: dicomtag.InstanceNumber, Value: []interface{}{"7"}},
		{Tag: dicomtag.ImagePositionPatient, Value: []interface{}{"-120.5", "-99", "42.25"}},
		{Tag: dicomtag.PixelSpacing, Value: []interface{}{"0.8", "0.7"}},
		{Tag: dicomtag.SliceThickness, Value: []interface{}{"5"}},
		{Tag: tagSpacingBetweenSlices, Value: []interface{}{"4.5"}},
		{Tag: dicomtag.Rows, Value: []interface{}{uint16(256)}},
		{Tag: dicomtag.Columns, Value: []interface{}{uint16(200)}},
		{Tag: dicomtag.SamplesPerPixel, Value: []interface{}{uint16(3)}},
		{Tag: dicomtag.StudyDate, Value: []interface{}{"20230115"}},
	}}

	m := metadataFromDataSet(ds)

	if m.SeriesDescription != "RAPID TMAXD" || m.SeriesNumber != "12" {
		t.Errorf("series %q %q", m.SeriesDescription, m.SeriesNumber)
	}
	if !m.HasInstanceNumber || m.InstanceNumber != 7 {
		t.Errorf("instance %d (%v)", m.InstanceNumber, m.HasInstanceNumber)
	}
	if !m.HasPosition || m.PatientZ != 42.25 {
		t.Errorf("position %g (%v)", m.PatientZ, m.HasPosition)
	}
	if m.PixelHeightMM != 0.8 || m.PixelWidthMM != 0.7 || m.SliceThicknessMM != 5 || m.SpacingBetweenSlicesMM != 4.5 {
		t.Errorf("spacing %g %g %g %g", m.PixelHeightMM, m.PixelWidthMM, m.SliceThicknessMM, m.SpacingBetweenSlicesMM)
	}
	if m.Rows != 256 || m.Cols != 200 || !m.IsRGB() {
		t.Errorf("dims %dx%d rgb=%v", m.Rows, m.Cols, m.IsRGB())
	}
	if m.RescaleSlope != 1 {
		t.Errorf("default rescale slope %g", m.RescaleSlope)
	}
}

func TestPixelsFromSamplesInterleaved(t *testing.T) {
	meta := &DicomMeta{Rows: 1, Cols: 2, SamplesPerPixel: 3, BitsAllocated: 8}
	px, err := pixelsFromSamples([]int{1, 2, 3, 4, 5, 6}, meta)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{1, 2, 3, 4, 5, 6}
	for i := range want {
		if px.rgb.Pix[i] != want[i] {
			t.Fatalf("got %v, want %v", px.rgb.Pix, want)
		}
	}
}

func TestPixelsFromSamplesPlanar(t *testing.T) {
	meta := &DicomMeta{Rows: 1, Cols: 2, SamplesPerPixel: 3, PlanarConfiguration: 1}
	px, err := pixelsFromSamples([]int{10, 11, 20, 21, 30, 31}, meta)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{10, 20, 30, 11, 21, 31}
	for i := range want {
		if px.rgb.Pix[i] != want[i] {
			t.Fatalf("got %v, want %v", px.rgb.Pix, want)
		}
	}
}

func TestPixelsFromSamplesGrayscaleRescale(t *testing.T) {
	meta := &DicomMeta{Rows: 2, Cols: 1, SamplesPerPixel: 1, RescaleSlope: 0.5, RescaleIntercept: -1}
	px, err := pixelsFromSamples([]int{4, 10}, meta)
	if err != nil {
		t.Fatal(err)
	}
	if px.rgb != nil || px.scalar[0] != 1 || px.scalar[1] != 4 {
		t.Errorf("unexpected scalar pixels %v", px.scalar)
	}
}

func TestPixelsFromSamplesWrongCount(t *testing.T) {
	meta := &DicomMeta{Rows: 2, Cols: 2, SamplesPerPixel: 3}
	if _, err := pixelsFromSamples([]int{1, 2, 3}, meta); err == nil {
		t.Error("expected an error for a short color buffer")
	}
}

func TestToSliceCarriesGeometry(t *testing.T) {
	meta := DicomMeta{
		SeriesDescription: "CBVD",
		PatientZ:          12,
		HasPosition:       true,
		PixelHeightMM:     0.9,
		PixelWidthMM:      0.8,
		SliceThicknessMM:  5,
	}
	s := meta.toSlice("a.dcm", &pixels{width: 1, height: 1, scalar: []float64{3}})
	if s.Encoding() != volume.EncodingScalar || s.Position != 12 || s.PixelSpacing != [2]float64{0.9, 0.8} {
		t.Errorf("unexpected slice %+v", s)
	}
}

func TestEntriesFromTarGz(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range []string{"a.dcm", "b.dcm"} {
		body := []byte("not really a dicom: " + name)
		tw.WriteHeader(&tar.Header{Name: name, Mode: 0600, Size: int64(len(body)), Typeflag: tar.TypeReg})
		tw.Write(body)
	}
	tw.Close()
	gz.Close()

	entries, err := entriesFromStream("study.tar.gz", &buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[1].Name != "study.tar.gz/b.dcm" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestEntriesFromPlainFile(t *testing.T) {
	entries, err := entriesFromStream("x.dcm", bytes.NewReader([]byte("abc")))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || string(entries[0].Data) != "abc" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestIsDICOM(t *testing.T) {
	preamble := make([]byte, 140)
	copy(preamble[128:], "DICM")

	tests := []struct {
		entry Entry
		want  bool
	}{
		{Entry{Name: "IM0001", Data: preamble}, true},
		{Entry{Name: "slice.DCM", Data: []byte("x")}, true},
		{Entry{Name: "notes.txt", Data: []byte("x")}, false},
	}
	for _, tt := range tests {
		if got := IsDICOM(tt.entry); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.entry.Name, got, tt.want)
		}
	}
}

func TestParseEntriesSkipsGarbage(t *testing.T) {
	_, err := ParseEntries("memory", []Entry{{Name: "junk.dcm", Data: []byte("junk")}}, 1)
	if err == nil {
		t.Fatal("expected an error when no image parses")
	}
}

func TestParsedDate(t *testing.T) {
	parsed, err := ParsedDate("20230115")
	if err != nil {
		t.Fatal(err)
	}
	if got := parsed.Format("2006-01-02"); got != "2023-01-15" {
		t.Errorf("got %s", got)
	}
}

func TestSeriesNumberLess(t *testing.T) {
	if !seriesNumberLess("2", "10") {
		t.Error("2 should sort before 10")
	}
	if !seriesNumberLess("a", "b") {
		t.Error("fallback to string order")
	}
}
