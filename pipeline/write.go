package pipeline

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"

	"github.com/carbocation/ctperfusion/export"
	"github.com/carbocation/ctperfusion/volume"
	"github.com/carbocation/pfx"
)

// Output file names within the output directory.
const (
	MetricsFile    = "perfusion_metrics.json"
	MasksFile      = "masks.npz"
	MasksRLEFile   = "masks_rle.json"
	OverlayDir     = "overlays"
	SliceChartFile = "slice_areas.png"
)

// WriteOptions controls the optional outputs.
type WriteOptions struct {
	Overlays bool

	// Scale enlarges overlay PNGs by an integer factor.
	Scale int
}

// Write saves the metrics document and the masks into dir, creating it if
// needed.
func (p Pipeline) Write(dir string, out *Output, opts WriteOptions) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return pfx.Err(err)
	}

	if err := export.WriteJSONFile(filepath.Join(dir, MetricsFile), out.Document); err != nil {
		return err
	}

	if err := export.WriteNPZFile(filepath.Join(dir, MasksFile), export.SegmentationMasks(out.Segmentation)); err != nil {
		return err
	}

	rle, err := export.EncodeLabels(out.Labels, out.Segmentation.Shape, p.Labels)
	if err != nil {
		return err
	}
	if err := export.WriteJSONFile(filepath.Join(dir, MasksRLEFile), rle); err != nil {
		return err
	}

	log.Printf("Wrote %s, %s and %s to %s\n", MetricsFile, MasksFile, MasksRLEFile, dir)

	if !opts.Overlays {
		return nil
	}

	return p.writeOverlays(dir, out, opts)
}

func (p Pipeline) writeOverlays(dir string, out *Output, opts WriteOptions) error {
	overlayDir := filepath.Join(dir, OverlayDir)
	if err := os.MkdirAll(overlayDir, 0755); err != nil {
		return pfx.Err(err)
	}

	tmax := out.Volumes[volume.KindTmax]
	window := out.Segmentation.Thresholds.SevereTmaxSec * 1.2
	if cfg, ok := p.Assembler.Configs[volume.KindTmax]; ok && cfg.TargetMax > 0 {
		window = cfg.TargetMax
	}

	scale := opts.Scale
	if scale < 1 {
		scale = 1
	}

	for z := 0; z < tmax.Shape().Depth; z++ {
		encoded, composite, err := p.Labels.SliceImages(tmax, out.Labels, z, window, scale)
		if err != nil {
			return err
		}

		if err := writePNG(filepath.Join(overlayDir, fmt.Sprintf("labels_%03d.png", z)), encoded); err != nil {
			return err
		}
		if err := writePNG(filepath.Join(overlayDir, fmt.Sprintf("slice_%03d.png", z)), composite); err != nil {
			return err
		}
	}

	if err := export.SliceAreaChartFile(filepath.Join(dir, SliceChartFile), out.Indices.SliceStatistics); err != nil {
		return err
	}

	log.Printf("Wrote %d overlay slices to %s\n", tmax.Shape().Depth, overlayDir)

	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	return pfx.Err(f.Close())
}
