// ctperf-metrics computes lesion volumes and derived perfusion indices from a
// study of vendor perfusion maps, and writes the metrics, masks and optional
// overlay images to a local folder. The study may be a folder, a single DICOM
// file, or a .zip/.tar.gz/.tar.xz archive, locally or on Google Storage.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ctperfusion"
	_ "github.com/carbocation/ctperfusion/compileinfoprint"
	"github.com/carbocation/ctperfusion/config"
	"github.com/carbocation/ctperfusion/dicomio"
	"github.com/carbocation/ctperfusion/imagesource"
	"github.com/carbocation/ctperfusion/pipeline"
	"github.com/carbocation/ctperfusion/volume"
)

func main() {
	var dicomPath, manifestPath, outPath, configPath string
	var overlays bool
	var scale, workers int

	flag.StringVar(&dicomPath, "dicom", "", "Path to the study: a folder, a .dcm file, or a .zip/.tar.gz/.tar.xz archive. May be a gs:// path (end folders with /).")
	flag.StringVar(&manifestPath, "manifest", "", "Alternative to -dicom: tab-delimited manifest of slice images (PNG, JPEG, GIF or BMP) with file, series, and position_mm columns.")
	flag.StringVar(&outPath, "out", "", "Local folder where perfusion_metrics.json, masks.npz and masks_rle.json will be written.")
	flag.StringVar(&configPath, "config", "", "(Optional) JSON or YAML file overriding series keywords, colormap calibration, thresholds and index options.")
	flag.BoolVar(&overlays, "overlays", false, "Also write per-slice overlay PNGs and a slice area chart.")
	flag.IntVar(&scale, "scale", 2, "Integer enlargement factor for overlay PNGs.")
	flag.IntVar(&workers, "workers", 0, "Number of concurrent parsing and decoding workers. Defaults to the number of CPUs.")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(flag.CommandLine.Output(), "Exactly one of -dicom or -manifest is required, along with -out.\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if (dicomPath == "") == (manifestPath == "") || outPath == "" {
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
	if workers > 0 {
		cfg.Workers = workers
	}

	if err := run(cfg, dicomPath, manifestPath, ctperfusion.ExpandHome(outPath), pipeline.WriteOptions{Overlays: overlays, Scale: scale}); err != nil {
		log.Fatalln(err)
	}

	log.Println("Quitting")
}

func run(cfg config.Config, dicomPath, manifestPath, outPath string, opts pipeline.WriteOptions) error {
	started := time.Now()
	ctx := context.Background()

	// Initialize the Google Storage client, but only if an input lives there.
	var client *storage.Client
	if strings.HasPrefix(dicomPath, "gs://") || strings.HasPrefix(manifestPath, "gs://") {
		var err error
		client, err = storage.NewClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	var slices []volume.Slice
	var patient *dicomio.PatientInfo
	if dicomPath != "" {
		study, err := dicomio.LoadStudy(ctx, dicomPath, client, cfg.Workers)
		if err != nil {
			return err
		}
		slices = study.Slices()
		info := study.PatientInfo()
		patient = &info
	} else {
		slices, err = imagesource.LoadManifest(ctx, manifestPath, client)
		if err != nil {
			return err
		}
	}

	log.Printf("Loaded %d slices in %s\n", len(slices), time.Since(started))

	out, err := p.Run(slices, patient)
	if err != nil {
		return err
	}

	m := out.Document.Metrics
	log.Printf("Hypoperfusion %.2f ml, core %.2f ml (%s), penumbra %.2f ml, mismatch ratio %s\n",
		m.HypoperfusionVolumeML, m.InfarctCoreVolumeML, m.CorePolicy, m.PenumbraVolumeML, nullable(m.MismatchRatio.Valid, m.MismatchRatio.Float64))

	if err := p.Write(outPath, out, opts); err != nil {
		return err
	}

	log.Printf("Completed in %s\n", time.Since(started))

	return nil
}

func nullable(valid bool, v float64) string {
	if !valid {
		return "undefined"
	}
	return fmt.Sprintf("%.2f", v)
}
