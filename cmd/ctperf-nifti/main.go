// ctperf-nifti runs the lesion segmentation and index calculation on
// perfusion maps that are already quantitative NIfTI volumes, such as those
// exported by research perfusion software.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/ctperfusion"
	_ "github.com/carbocation/ctperfusion/compileinfoprint"
	"github.com/carbocation/ctperfusion/config"
	"github.com/carbocation/ctperfusion/niftiio"
	"github.com/carbocation/ctperfusion/pipeline"
	"github.com/carbocation/ctperfusion/volume"
)

func main() {
	var tmaxPath, cbvPath, cbfPath, outPath, configPath string
	var hypo, severe, relativeCBF, coreCBV float64
	var overlays bool

	flag.StringVar(&tmaxPath, "tmax", "", "Path to the Tmax map (.nii or .nii.gz), in seconds. Required.")
	flag.StringVar(&cbvPath, "cbv", "", "(Optional) Path to the CBV map, in ml/100g.")
	flag.StringVar(&cbfPath, "cbf", "", "(Optional) Path to the CBF map, in ml/100g/min.")
	flag.StringVar(&outPath, "out", "", "Local folder where the metrics and masks will be written.")
	flag.StringVar(&configPath, "config", "", "(Optional) JSON or YAML config file. Threshold flags override it.")
	flag.Float64Var(&hypo, "tmax_hypoperfusion", 0, "(Optional) Tmax cutoff in seconds for hypoperfusion.")
	flag.Float64Var(&severe, "tmax_core", 0, "(Optional) Tmax cutoff in seconds for severely delayed tissue.")
	flag.Float64Var(&relativeCBF, "relative_cbf", 0, "(Optional) Relative CBF below which hypoperfused tissue is core.")
	flag.Float64Var(&coreCBV, "cbv_core", 0, "(Optional) CBV in ml/100g below which severely delayed tissue is core.")
	flag.BoolVar(&overlays, "overlays", false, "Also write per-slice overlay PNGs and a slice area chart.")
	flag.Parse()

	if tmaxPath == "" || outPath == "" {
		flag.PrintDefaults()
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

	for _, override := range []struct {
		value float64
		field *float64
	}{
		{hypo, &cfg.Thresholds.HypoperfusionTmaxSec},
		{severe, &cfg.Thresholds.SevereTmaxSec},
		{relativeCBF, &cfg.Thresholds.RelativeCBF},
		{coreCBV, &cfg.Thresholds.CoreCBV},
	} {
		if override.value > 0 {
			*override.field = override.value
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalln(err)
	}

	paths := map[volume.Kind]string{
		volume.KindTmax: tmaxPath,
		volume.KindCBV:  cbvPath,
		volume.KindCBF:  cbfPath,
	}

	if err := run(cfg, paths, ctperfusion.ExpandHome(outPath), overlays); err != nil {
		log.Fatalln(err)
	}

	log.Println("Quitting")
}

func run(cfg config.Config, paths map[volume.Kind]string, outPath string, overlays bool) error {
	ctx := context.Background()

	var client *storage.Client
	for _, path := range paths {
		if strings.HasPrefix(path, "gs://") && client == nil {
			var err error
			client, err = storage.NewClient(ctx)
			if err != nil {
				return err
			}
			defer client.Close()
		}
	}

	kinds, err := cfg.KindConfigs()
	if err != nil {
		return err
	}

	volumes := make(map[volume.Kind]*volume.Volume)
	var warnings []ctperfusion.Warning
	for kind, path := range paths {
		if path == "" {
			continue
		}

		v, w, err := niftiio.Load(ctx, path, client, kind, kinds[kind].Unit, cfg.DefaultSpacing)
		if err != nil {
			return err
		}
		log.Printf("Loaded %s volume %s from %s\n", kind, v.Shape(), path)

		volumes[kind] = v
		warnings = append(warnings, w...)
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	out, err := p.Analyze(volumes, warnings)
	if err != nil {
		return err
	}

	return p.Write(outPath, out, pipeline.WriteOptions{Overlays: overlays, Scale: 2})
}
