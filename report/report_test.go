package report

import (
	"encoding/json"
	"testing"

	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/ctperfusion/indices"
	"github.com/carbocation/ctperfusion/segment"
	"github.com/carbocation/ctperfusion/volume"
)

func TestDocumentFields(t *testing.T) {
	shape := volume.Shape{Width: 4, Height: 4, Depth: 2}
	data := make([]float64, shape.Len())
	for i := range data {
		data[i] = 2
	}
	tmax, err := volume.New(volume.KindTmax, volume.UnitSeconds, shape, volume.Spacing{X: 0.5, Y: 0.5, Z: 3}, data)
	if err != nil {
		t.Fatal(err)
	}

	seg, err := segment.NewEngine().Segment(segment.Input{Tmax: tmax})
	if err != nil {
		t.Fatal(err)
	}
	opts := indices.DefaultOptions()
	ix, err := indices.Calculate(seg, tmax, nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	warn := ctperfusion.Warning{Code: ctperfusion.WarnDefaultPixelSpacing, Series: "TMAX", Message: "test"}
	metrics := NewPerfusionMetrics(seg, ix, opts, []ctperfusion.Warning{warn})
	doc := NewDocument(nil, map[volume.Kind]*volume.Metadata{volume.KindTmax: {Kind: volume.KindTmax}}, []volume.Kind{volume.KindCBV, volume.KindCBF}, metrics)

	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(b, &parsed); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"series", "missing_series", "metrics", "software", "created_at"} {
		if _, ok := parsed[key]; !ok {
			t.Errorf("document is missing %s", key)
		}
	}
	if _, ok := parsed["patient_info"]; ok {
		t.Error("patient_info should be omitted without a DICOM study")
	}

	m := parsed["metrics"].(map[string]interface{})
	for _, key := range []string{
		"hypoperfusion_volume_ml", "infarct_core_volume_ml", "penumbra_volume_ml", "mismatch_ratio",
		"hir", "prr", "corrected_cbv_index", "conventional_cbv_index", "contralateral_cbv",
		"collateral_grade", "thresholds", "pixel_spacing_mm", "voxel_volume_ml", "core_definition",
	} {
		if _, ok := m[key]; !ok {
			t.Errorf("metrics are missing %s", key)
		}
	}

	if m["mismatch_ratio"] != nil || m["collateral_grade"] != nil {
		t.Errorf("expected nulls, got %v and %v", m["mismatch_ratio"], m["collateral_grade"])
	}
	if m["hypoperfusion_volume_ml"] != 0.0 {
		t.Errorf("hypoperfusion %v, want 0", m["hypoperfusion_volume_ml"])
	}
	if m["core_policy"] != segment.PolicyTmaxOnly.String() {
		t.Errorf("core policy %v", m["core_policy"])
	}

	th := m["thresholds"].(map[string]interface{})
	if th["tmax_hypoperfusion_sec"] != 6.0 || th["corrected_cbv_index_cutoff"] != 0.7 {
		t.Errorf("thresholds %v", th)
	}

	if len(metrics.Warnings) != 2 || metrics.Warnings[0].Code != ctperfusion.WarnDefaultPixelSpacing || metrics.Warnings[1].Code != ctperfusion.WarnCorePolicyDegraded {
		t.Errorf("warnings %v, want the assembly warning then %s", metrics.Warnings, ctperfusion.WarnCorePolicyDegraded)
	}
	if got := m["voxel_volume_ml"].(float64); got != 0.00075 {
		t.Errorf("voxel volume %g, want 0.00075", got)
	}
}
