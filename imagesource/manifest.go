// Package imagesource builds perfusion slices from ordinary image files
// described by a tab-delimited manifest, for series that were exported as
// screenshots rather than DICOM.
package imagesource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"image"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/ctperfusion/colormap"
	"github.com/carbocation/ctperfusion/volume"
	"github.com/gocarina/gocsv"
)

// ManifestRow is one line of the manifest. Optional numeric columns may be
// left blank.
type ManifestRow struct {
	File              string `csv:"file"`
	Series            string `csv:"series"`
	SeriesNumber      string `csv:"series_number"`
	PositionMM        string `csv:"position_mm"`
	Instance          string `csv:"instance"`
	PixelSpacingRowMM string `csv:"pixel_spacing_row_mm"`
	PixelSpacingColMM string `csv:"pixel_spacing_col_mm"`
	SliceThicknessMM  string `csv:"slice_thickness_mm"`

	// Encoding is "rgb" for vendor color maps, or "scalar" for grayscale
	// images whose gray level times Scale is the physical value.
	Encoding string `csv:"encoding"`
	Scale    string `csv:"scale"`
}

// ParseManifest reads a manifest with a header row. The manifest may be
// compressed with gzip, bzip2 or xz. It is normally tab-delimited, but comma
// and semicolon delimiters are detected too.
func ParseManifest(r io.Reader) ([]*ManifestRow, error) {
	decompressed, _, err := ctperfusion.MaybeDecompress(bufio.NewReader(r))
	if err != nil {
		return nil, err
	}

	fileBytes, err := io.ReadAll(decompressed)
	if err != nil {
		return nil, err
	}

	delim := ctperfusion.DetermineDelimiter(bytes.NewReader(fileBytes), '\t', '\t', ',', ';')

	records := []*ManifestRow{}

	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.Comma = delim
		r.LazyQuotes = true
		return r
	})

	if err := gocsv.UnmarshalBytes(fileBytes, &records); err != nil {
		return nil, err
	}

	return records, nil
}

// LoadManifest reads the manifest at manifestPath and decodes every image it
// lists. Relative image paths are resolved against the manifest's directory.
func LoadManifest(ctx context.Context, manifestPath string, client *storage.Client) ([]volume.Slice, error) {
	manifestBytes, err := ctperfusion.ReadAll(ctx, manifestPath, client)
	if err != nil {
		return nil, err
	}

	rows, err := ParseManifest(bytes.NewReader(manifestBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}

	dir := filepath.Dir(manifestPath)
	if ctperfusion.IsGoogleStorage(manifestPath) {
		dir = path.Dir(manifestPath)
	}

	out := make([]volume.Slice, 0, len(rows))
	for i, row := range rows {
		imgPath := row.File
		if !ctperfusion.IsGoogleStorage(imgPath) && !filepath.IsAbs(imgPath) {
			if ctperfusion.IsGoogleStorage(dir) {
				imgPath = dir + "/" + imgPath
			} else {
				imgPath = filepath.Join(dir, imgPath)
			}
		}

		imgBytes, err := ctperfusion.ReadAll(ctx, imgPath, client)
		if err != nil {
			return nil, err
		}

		img, _, err := image.Decode(bytes.NewReader(imgBytes))
		if err != nil {
			return nil, ctperfusion.NewInputDataError(row.Series, imgPath, "could not decode image: %v", err)
		}

		s, err := row.Slice(imgPath, img)
		if err != nil {
			return nil, ctperfusion.NewInputDataError(row.Series, imgPath, "manifest line %d: %v", i+2, err)
		}
		out = append(out, s)
	}

	return out, nil
}

// Slice turns a decoded image into a slice using the row's geometry.
func (row ManifestRow) Slice(source string, img image.Image) (volume.Slice, error) {
	bounds := img.Bounds()
	s := volume.Slice{
		Source:            source,
		SeriesDescription: row.Series,
		SeriesNumber:      row.SeriesNumber,
		Width:             bounds.Dx(),
		Height:            bounds.Dy(),
	}

	var err error
	if s.Position, s.HasPosition, err = optionalFloat(row.PositionMM); err != nil {
		return s, fmt.Errorf("position_mm: %w", err)
	}
	if row.Instance != "" {
		if s.InstanceNumber, err = strconv.Atoi(strings.TrimSpace(row.Instance)); err != nil {
			return s, fmt.Errorf("instance: %w", err)
		}
		s.HasInstanceNumber = true
	}
	if s.PixelSpacing[0], _, err = optionalFloat(row.PixelSpacingRowMM); err != nil {
		return s, fmt.Errorf("pixel_spacing_row_mm: %w", err)
	}
	if s.PixelSpacing[1], _, err = optionalFloat(row.PixelSpacingColMM); err != nil {
		return s, fmt.Errorf("pixel_spacing_col_mm: %w", err)
	}
	if s.SliceThickness, _, err = optionalFloat(row.SliceThicknessMM); err != nil {
		return s, fmt.Errorf("slice_thickness_mm: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(row.Encoding)) {
	case "", "rgb":
		s.RGB = colormap.FromImage(img)
	case "scalar":
		scale, hasScale, err := optionalFloat(row.Scale)
		if err != nil {
			return s, fmt.Errorf("scale: %w", err)
		}
		if !hasScale {
			scale = 1
		}
		s.Scalar = grayValues(img, scale)
	default:
		return s, fmt.Errorf("unknown encoding %q", row.Encoding)
	}

	return s, nil
}

func optionalFloat(v string) (float64, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, err
	}
	return f, true, nil
}
