package dicomio

import (
	"fmt"

	"github.com/carbocation/ctperfusion/volume"
	"github.com/suyashkumar/dicom"
)

// File is one parsed DICOM image.
type File struct {
	Source string
	Meta   DicomMeta
	Slice  volume.Slice
}

// ParseBytes parses a complete DICOM, pixels included.
func ParseBytes(source string, dcm []byte) (*File, error) {
	p, err := dicom.NewParserFromBytes(dcm, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	parsedData, err := SafelyDicomParse(p, dicom.ParseOptions{
		DropPixelData: false,
	})
	if parsedData == nil || err != nil {
		return nil, fmt.Errorf("%s: error reading dicom: %v", source, err)
	}

	meta := metadataFromDataSet(parsedData)

	px, err := extractPixels(parsedData, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	return &File{
		Source: source,
		Meta:   *meta,
		Slice:  meta.toSlice(source, px),
	}, nil
}

// ParseMetadataBytes parses a DICOM without decoding its pixels.
func ParseMetadataBytes(source string, dcm []byte) (*DicomMeta, error) {
	p, err := dicom.NewParserFromBytes(dcm, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	parsedData, err := SafelyDicomParse(p, dicom.ParseOptions{
		DropPixelData: true,
	})
	if parsedData == nil || err != nil {
		return nil, fmt.Errorf("%s: error reading dicom: %v", source, err)
	}

	return metadataFromDataSet(parsedData), nil
}

func (m DicomMeta) toSlice(source string, px *pixels) volume.Slice {
	return volume.Slice{
		Source:               source,
		SeriesDescription:    m.SeriesDescription,
		SeriesNumber:         m.SeriesNumber,
		Position:             m.PatientZ,
		HasPosition:          m.HasPosition,
		InstanceNumber:       m.InstanceNumber,
		HasInstanceNumber:    m.HasInstanceNumber,
		PixelSpacing:         [2]float64{m.PixelHeightMM, m.PixelWidthMM},
		ImagerPixelSpacing:   [2]float64{m.ImagerPixelHeightMM, m.ImagerPixelWidthMM},
		SliceThickness:       m.SliceThicknessMM,
		SpacingBetweenSlices: m.SpacingBetweenSlicesMM,
		Width:                px.width,
		Height:               px.height,
		RGB:                  px.rgb,
		Scalar:               px.scalar,
	}
}
