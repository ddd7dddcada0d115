// ctperf-inspect lists the series of a perfusion study as a tab-delimited
// table on stdout. With -kind, it also assembles that parameter's volume and
// prints its value distribution, which helps when calibrating series keywords
// or colormap target maxima for a new scanner.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aybabtme/uniplot/histogram"
	_ "github.com/carbocation/ctperfusion/compileinfoprint"
	"github.com/carbocation/ctperfusion/config"
	"github.com/carbocation/ctperfusion/dicomio"
	"github.com/carbocation/ctperfusion/volume"
	"github.com/montanaflynn/stats"
)

var (
	BufferSize = 4096
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

func main() {
	defer STDOUT.Flush()

	var path, kindName, configPath string
	var bins int

	flag.StringVar(&path, "dicom", "", "Path to the study: a folder, a .dcm file, or a .zip/.tar.gz/.tar.xz archive. May be a gs:// path.")
	flag.StringVar(&kindName, "kind", "", "(Optional) Parameter to assemble and summarize: TMAX, CBV, CBF, MTT or TTP.")
	flag.StringVar(&configPath, "config", "", "(Optional) JSON or YAML config file, for custom series keywords and calibration.")
	flag.IntVar(&bins, "bins", 25, "Number of histogram buckets for -kind.")
	flag.Parse()

	if path == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.ParseFromPath(configPath)
		if err != nil {
			log.Fatalln(err)
		}
	}

	if err := run(cfg, path, kindName, bins); err != nil {
		STDOUT.Flush()
		log.Fatalln(err)
	}
}

func run(cfg config.Config, path, kindName string, bins int) error {
	ctx := context.Background()

	var client *storage.Client
	if strings.HasPrefix(path, "gs://") {
		var err error
		client, err = storage.NewClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	study, err := dicomio.LoadStudy(ctx, path, client, cfg.Workers)
	if err != nil {
		return err
	}

	fmt.Fprintln(STDOUT, strings.Join([]string{"series_number", "series_description", "images", "rows", "cols", "encoding", "pixel_spacing_row_mm", "pixel_spacing_col_mm", "slice_thickness_mm", "position_min_mm", "position_max_mm"}, "\t"))
	for _, s := range study.Series() {
		positions := []string{"NA", "NA"}
		if s.HasPosition {
			positions = []string{fmt.Sprintf("%g", s.PositionRangeMM[0]), fmt.Sprintf("%g", s.PositionRangeMM[1])}
		}
		fmt.Fprintf(STDOUT, "%s\t%s\t%d\t%d\t%d\t%s\t%g\t%g\t%g\t%s\t%s\n",
			s.Number, s.Description, s.Images, s.Rows, s.Cols, s.Encoding,
			s.PixelSpacing[0], s.PixelSpacing[1], s.SliceThickness, positions[0], positions[1])
	}

	if kindName == "" {
		return nil
	}

	kind, err := volume.ParseKind(kindName)
	if err != nil {
		return err
	}

	a, err := cfg.Assembler()
	if err != nil {
		return err
	}

	vol, meta, err := a.Assemble(kind, study.Slices())
	if err != nil {
		return err
	}

	return summarize(vol, meta, bins)
}

// summarize prints quantiles and a histogram of the nonzero voxels.
func summarize(vol *volume.Volume, meta *volume.Metadata, bins int) error {
	positive := vol.Masked(vol.Threshold(func(v float64) bool { return v > 0 }))

	fmt.Fprintf(STDOUT, "\n%s from %q: %s voxels, %d nonzero, unit %s\n", meta.Kind, meta.SeriesDescription, vol.Shape(), len(positive), meta.Unit)
	if len(positive) == 0 {
		return nil
	}

	data := stats.Float64Data(positive)
	for _, p := range []float64{5, 25, 50, 75, 95} {
		q, err := data.Percentile(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(STDOUT, "p%g\t%.3f\n", p, q)
	}

	mean, err := data.Mean()
	if err != nil {
		return err
	}
	sd, err := data.StandardDeviation()
	if err != nil {
		return err
	}
	fmt.Fprintf(STDOUT, "mean\t%.3f\nsd\t%.3f\n\n", mean, sd)

	hist := histogram.Hist(bins, positive)
	return histogram.Fprint(STDOUT, hist, histogram.Linear(40))
}
