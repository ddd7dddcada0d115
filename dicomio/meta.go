package dicomio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
)

// Tags that are referenced by number because not every dictionary revision
// names them.
var (
	tagSpacingBetweenSlices = dicomtag.Tag{Group: 0x0018, Element: 0x0088}
	tagImagerPixelSpacing   = dicomtag.Tag{Group: 0x0018, Element: 0x1164}
	tagPlanarConfiguration  = dicomtag.Tag{Group: 0x0028, Element: 0x0006}
)

// DicomMeta holds the subset of DICOM metadata that perfusion analysis uses.
type DicomMeta struct {
	PatientName       string
	PatientID         string
	StudyDate         string
	Modality          string
	SeriesDescription string
	SeriesNumber      string
	SeriesInstanceUID string

	InstanceNumber    int
	HasInstanceNumber bool

	PatientX, PatientY, PatientZ float64
	HasPosition                  bool

	SliceLocation string

	// PixelHeightMM is the row spacing and PixelWidthMM the column spacing.
	PixelHeightMM       float64
	PixelWidthMM        float64
	ImagerPixelHeightMM float64
	ImagerPixelWidthMM  float64

	SliceThicknessMM       float64
	SpacingBetweenSlicesMM float64

	Rows, Cols                int
	SamplesPerPixel           int
	PhotometricInterpretation string
	PlanarConfiguration       int
	BitsAllocated             int

	RescaleSlope     float64
	RescaleIntercept float64
}

// IsRGB reports whether the pixel data holds color samples.
func (m DicomMeta) IsRGB() bool {
	if m.SamplesPerPixel == 3 {
		return true
	}
	pi := strings.ToUpper(m.PhotometricInterpretation)
	return strings.HasPrefix(pi, "RGB") || strings.HasPrefix(pi, "YBR")
}

func metadataFromDataSet(parsedData *element.DataSet) *DicomMeta {
	output := &DicomMeta{
		SamplesPerPixel: 1,
		RescaleSlope:    1,
	}

	for _, elem := range parsedData.Elements {
		if len(elem.Value) == 0 {
			continue
		}

		switch {
		case elem.Tag == dicomtag.PatientName:
			output.PatientName = firstString(elem)
		case elem.Tag == dicomtag.PatientID:
			output.PatientID = firstString(elem)
		case elem.Tag == dicomtag.StudyDate:
			output.StudyDate = firstString(elem)
		case elem.Tag == dicomtag.AcquisitionDate:
			if output.StudyDate == "" {
				output.StudyDate = firstString(elem)
			}
		case elem.Tag == dicomtag.Modality:
			output.Modality = firstString(elem)
		case elem.Tag == dicomtag.SeriesDescription:
			output.SeriesDescription = firstString(elem)
		case elem.Tag == dicomtag.SeriesNumber:
			output.SeriesNumber = firstString(elem)
		case elem.Tag == dicomtag.SeriesInstanceUID:
			output.SeriesInstanceUID = firstString(elem)
		case elem.Tag == dicomtag.InstanceNumber:
			if v, err := firstInt(elem); err == nil {
				output.InstanceNumber = v
				output.HasInstanceNumber = true
			}
		case elem.Tag == dicomtag.ImagePositionPatient:
			if vals := floats(elem); len(vals) == 3 {
				output.PatientX, output.PatientY, output.PatientZ = vals[0], vals[1], vals[2]
				output.HasPosition = true
			}
		case elem.Tag == dicomtag.SliceLocation:
			output.SliceLocation = firstString(elem)
		case elem.Tag == dicomtag.PixelSpacing:
			if vals := floats(elem); len(vals) == 2 {
				output.PixelHeightMM, output.PixelWidthMM = vals[0], vals[1]
			}
		case elem.Tag.Compare(tagImagerPixelSpacing) == 0:
			if vals := floats(elem); len(vals) == 2 {
				output.ImagerPixelHeightMM, output.ImagerPixelWidthMM = vals[0], vals[1]
			}
		case elem.Tag == dicomtag.SliceThickness:
			if vals := floats(elem); len(vals) > 0 {
				output.SliceThicknessMM = vals[0]
			}
		case elem.Tag.Compare(tagSpacingBetweenSlices) == 0:
			if vals := floats(elem); len(vals) > 0 {
				output.SpacingBetweenSlicesMM = vals[0]
			}
		case elem.Tag == dicomtag.Rows:
			if v, err := firstInt(elem); err == nil {
				output.Rows = v
			}
		case elem.Tag == dicomtag.Columns:
			if v, err := firstInt(elem); err == nil {
				output.Cols = v
			}
		case elem.Tag == dicomtag.SamplesPerPixel:
			if v, err := firstInt(elem); err == nil {
				output.SamplesPerPixel = v
			}
		case elem.Tag == dicomtag.PhotometricInterpretation:
			output.PhotometricInterpretation = firstString(elem)
		case elem.Tag.Compare(tagPlanarConfiguration) == 0:
			if v, err := firstInt(elem); err == nil {
				output.PlanarConfiguration = v
			}
		case elem.Tag == dicomtag.BitsAllocated:
			if v, err := firstInt(elem); err == nil {
				output.BitsAllocated = v
			}
		case elem.Tag == dicomtag.RescaleSlope:
			if vals := floats(elem); len(vals) > 0 {
				output.RescaleSlope = vals[0]
			}
		case elem.Tag == dicomtag.RescaleIntercept:
			if vals := floats(elem); len(vals) > 0 {
				output.RescaleIntercept = vals[0]
			}
		}
	}

	return output
}

// firstString returns the first value as a trimmed string. Values that are
// not strings are formatted.
func firstString(elem *element.Element) string {
	switch v := elem.Value[0].(type) {
	case string:
		return strings.TrimSpace(strings.TrimRight(v, "\x00"))
	default:
		return fmt.Sprintf("%v", v)
	}
}

func firstInt(elem *element.Element) (int, error) {
	switch v := elem.Value[0].(type) {
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int:
		return v, nil
	case string:
		return strconv.Atoi(strings.TrimSpace(strings.TrimRight(v, "\x00")))
	}
	return 0, fmt.Errorf("tag %v: unexpected value type %T", elem.Tag, elem.Value[0])
}

// floats parses every decimal-string value of the element, skipping any that
// don't parse.
func floats(elem *element.Element) []float64 {
	out := make([]float64, 0, len(elem.Value))
	for _, raw := range elem.Value {
		switch v := raw.(type) {
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimRight(v, "\x00")), 64)
			if err != nil {
				continue
			}
			out = append(out, f)
		case float64:
			out = append(out, v)
		case float32:
			out = append(out, float64(v))
		}
	}
	return out
}
