// Package config loads the analysis settings (series keywords, colormap
// calibration, thresholds and index options) from a JSON or YAML file. Every
// field is optional; anything absent keeps its default.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/ctperfusion/colormap"
	"github.com/carbocation/ctperfusion/indices"
	"github.com/carbocation/ctperfusion/overlay"
	"github.com/carbocation/ctperfusion/segment"
	"github.com/carbocation/ctperfusion/volume"
	"github.com/carbocation/pfx"
	"gopkg.in/yaml.v3"
)

// KindOverride replaces parts of one parameter's defaults. Zero values are
// ignored.
type KindOverride struct {
	SeriesKeyword string      `json:"series_keyword" yaml:"series_keyword"`
	Colormap      string      `json:"colormap" yaml:"colormap"`
	TargetMax     float64     `json:"target_max" yaml:"target_max"`
	Unit          volume.Unit `json:"unit" yaml:"unit"`
	NoiseFloor    *int        `json:"noise_floor" yaml:"noise_floor"`
}

type Config struct {
	ConfigPath string `json:"-" yaml:"-"`

	// Kinds is keyed by parameter name, e.g. "TMAX" or "CBV".
	Kinds map[string]KindOverride `json:"kinds" yaml:"kinds"`

	Thresholds segment.Thresholds `json:"thresholds" yaml:"thresholds"`
	Indices    indices.Options    `json:"indices" yaml:"indices"`

	// DefaultSpacing applies to whichever spacing metadata a series lacks.
	DefaultSpacing volume.Spacing `json:"default_spacing_mm" yaml:"default_spacing_mm"`

	Workers int `json:"workers" yaml:"workers"`

	// Labels sets the overlay colors of the lesion classes.
	Labels overlay.LabelMap `json:"labels" yaml:"labels"`

	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Kinds:      map[string]KindOverride{},
		Thresholds: segment.DefaultThresholds(),
		Indices:    indices.DefaultOptions(),
		DefaultSpacing: volume.Spacing{
			X: volume.DefaultInPlaneSpacingMM,
			Y: volume.DefaultInPlaneSpacingMM,
			Z: volume.DefaultSliceThicknessMM,
		},
		Workers: runtime.NumCPU(),
		Labels:  overlay.DefaultLabels(),
	}
}

// ParseFromPath reads a config file over the defaults. The format follows the
// extension: .yaml and .yml are YAML, anything else is JSON.
func ParseFromPath(path string) (Config, error) {
	out := Default()
	out.ConfigPath = ctperfusion.ExpandHome(path)

	b, err := os.ReadFile(out.ConfigPath)
	if err != nil {
		return out, pfx.Err(err)
	}

	switch strings.ToLower(filepath.Ext(out.ConfigPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &out); err != nil {
			return out, pfx.Err(fmt.Errorf("%s: %w", out.ConfigPath, err))
		}
	default:
		if err := json.NewDecoder(bytes.NewReader(b)).Decode(&out); err != nil {
			if e, ok := err.(*json.SyntaxError); ok {
				log.Printf("syntax error at byte offset %d", e.Offset)
			}
			return out, pfx.Err(fmt.Errorf("%s: %w", out.ConfigPath, err))
		}
	}

	out.OutputDir = ctperfusion.ExpandHome(out.OutputDir)

	// Colors are compared in lower case.
	for k, v := range out.Labels {
		v.Color = strings.ToLower(v.Color)
		out.Labels[k] = v
	}

	return out, out.Validate()
}

// Validate rejects settings that cannot produce a meaningful analysis.
func (c Config) Validate() error {
	t := c.Thresholds
	if t.HypoperfusionTmaxSec <= 0 || t.SevereTmaxSec <= 0 {
		return fmt.Errorf("Tmax thresholds must be positive, got %g and %g", t.HypoperfusionTmaxSec, t.SevereTmaxSec)
	}
	if t.RelativeCBF <= 0 || t.RelativeCBF >= 1 {
		return fmt.Errorf("relative CBF cutoff must be in (0, 1), got %g", t.RelativeCBF)
	}

	o := c.Indices
	if o.CorticalBandLow < 0 || o.CorticalBandHigh > 100 || o.CorticalBandLow > o.CorticalBandHigh {
		return fmt.Errorf("cortical band percentiles %g-%g are not an ordered range within 0-100", o.CorticalBandLow, o.CorticalBandHigh)
	}
	if o.ConventionalPercentile <= 0 || o.ConventionalPercentile > 100 {
		return fmt.Errorf("conventional lesion percentile %g is outside 0-100", o.ConventionalPercentile)
	}
	if o.DefaultContralateralCBV <= 0 {
		return fmt.Errorf("default contralateral CBV must be positive, got %g", o.DefaultContralateralCBV)
	}
	if o.CollateralCutoff <= 0 {
		return fmt.Errorf("collateral cutoff must be positive, got %g", o.CollateralCutoff)
	}

	if c.DefaultSpacing.X <= 0 || c.DefaultSpacing.Y <= 0 || c.DefaultSpacing.Z <= 0 {
		return fmt.Errorf("default spacing must be positive, got %+v", c.DefaultSpacing)
	}

	if len(c.Labels) > 0 && !c.Labels.Valid() {
		return fmt.Errorf("label IDs must be unique")
	}

	for name := range c.Kinds {
		if _, err := volume.ParseKind(name); err != nil {
			return err
		}
	}

	return nil
}

// KindConfigs merges the overrides into the default parameter table.
func (c Config) KindConfigs() (map[volume.Kind]volume.KindConfig, error) {
	out := volume.DefaultKindConfigs()

	for name, o := range c.Kinds {
		kind, err := volume.ParseKind(name)
		if err != nil {
			return nil, err
		}

		kc := out[kind]
		if o.SeriesKeyword != "" {
			kc.SeriesKeyword = o.SeriesKeyword
		}
		if o.Colormap != "" {
			family, err := colormap.ParseFamily(o.Colormap)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			kc.Family = family
		}
		if o.TargetMax > 0 {
			kc.TargetMax = o.TargetMax
		}
		if o.Unit != "" {
			kc.Unit = o.Unit
		}
		if o.NoiseFloor != nil {
			kc.NoiseFloor = *o.NoiseFloor
		}
		out[kind] = kc
	}

	return out, nil
}

// Assembler returns a volume assembler configured from c.
func (c Config) Assembler() (volume.Assembler, error) {
	kinds, err := c.KindConfigs()
	if err != nil {
		return volume.Assembler{}, err
	}

	a := volume.NewAssembler()
	a.Configs = kinds
	a.DefaultSpacing = c.DefaultSpacing
	if c.Workers > 0 {
		a.Workers = c.Workers
	}

	return a, nil
}

func (c Config) Engine() segment.Engine {
	return segment.Engine{Thresholds: c.Thresholds}
}
