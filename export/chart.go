package export

import (
	"fmt"
	"io"
	"os"

	"github.com/carbocation/ctperfusion/indices"
	"github.com/carbocation/pfx"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	coreColor     = drawing.Color{R: 255, G: 0, B: 0, A: 255}
	penumbraColor = drawing.Color{R: 0, G: 160, B: 0, A: 255}
)

// SliceAreaChart plots core and penumbra area against slice index as a PNG.
func SliceAreaChart(w io.Writer, stats []indices.SliceStat) error {
	if len(stats) == 0 {
		return fmt.Errorf("no slices to chart")
	}

	xs := make([]float64, 0, len(stats))
	core := make([]float64, 0, len(stats))
	penumbra := make([]float64, 0, len(stats))
	yMax := 1.0
	for _, s := range stats {
		xs = append(xs, float64(s.Slice))
		core = append(core, s.CoreAreaCM2)
		penumbra = append(penumbra, s.PenumbraAreaCM2)
		if s.CoreAreaCM2 > yMax {
			yMax = s.CoreAreaCM2
		}
		if s.PenumbraAreaCM2 > yMax {
			yMax = s.PenumbraAreaCM2
		}
	}

	// A single slice still needs a nonzero x range.
	xMax := xs[len(xs)-1]
	if xMax <= xs[0] {
		xMax = xs[0] + 1
	}

	graph := chart.Chart{
		Title:  "Lesion area by slice",
		Width:  768,
		Height: 320,
		XAxis: chart.XAxis{
			Name:  "Slice",
			Range: &chart.ContinuousRange{Min: xs[0], Max: xMax},
		},
		YAxis: chart.YAxis{
			Name:  "Area (cm²)",
			Range: &chart.ContinuousRange{Min: 0, Max: yMax * 1.1},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Core",
				XValues: xs,
				YValues: core,
				Style:   chart.Style{StrokeColor: coreColor, StrokeWidth: 2},
			},
			chart.ContinuousSeries{
				Name:    "Penumbra",
				XValues: xs,
				YValues: penumbra,
				Style:   chart.Style{StrokeColor: penumbraColor, StrokeWidth: 2},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return pfx.Err(graph.Render(chart.PNG, w))
}

func SliceAreaChartFile(path string, stats []indices.SliceStat) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := SliceAreaChart(f, stats); err != nil {
		f.Close()
		return err
	}

	return pfx.Err(f.Close())
}
