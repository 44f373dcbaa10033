package predictor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dgallion1/aquasens/internal/decisionpath"
	"github.com/dgallion1/aquasens/internal/dtree"
	"github.com/dgallion1/aquasens/internal/encoder"
	"github.com/dgallion1/aquasens/internal/recommend"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEncoder(t *testing.T) *encoder.Encoder {
	t.Helper()
	enc, err := encoder.New(encoder.Spec{Columns: []encoder.Column{
		{Name: "Soil_Moisture", Source: "Soil_Moisture", Kind: encoder.Numeric},
		{Name: "Mulching_Used", Source: "Mulching_Used", Kind: encoder.Numeric},
		{Name: "Crop_Type_Rice", Source: "Crop_Type", Kind: encoder.OneHot, Category: "Rice"},
	}})
	if err != nil {
		t.Fatalf("build encoder: %v", err)
	}
	return enc
}

// testTree: dry soil without mulch -> High, dry soil with mulch -> Medium,
// moist soil -> Low.
func testTree(t *testing.T) *dtree.Tree {
	t.Helper()
	tree, err := dtree.New([]dtree.Node{
		dtree.Internal(0, 30, 1, 2),
		dtree.Internal(1, 0.5, 3, 4),
		dtree.Leaf(0),
		dtree.Leaf(2),
		dtree.Leaf(1),
	}, 3)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	return tree
}

func testPredictor(t *testing.T, labels recommend.Labels) *Predictor {
	t.Helper()
	p, err := New(testTree(t), testEncoder(t), labels, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestPredict_HighWithPath(t *testing.T) {
	p := testPredictor(t, nil)
	res, err := p.Predict(context.Background(), map[string]any{
		"Soil_Moisture": 25.4,
		"Mulching_Used": "No",
		"Crop_Type":     "Rice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Prediction != recommend.High {
		t.Errorf("expected High, got %q", res.Prediction)
	}
	if res.Recommendation.Action != "Immediate irrigation required" {
		t.Errorf("expected immediate irrigation, got %q", res.Recommendation.Action)
	}
	if len(res.Recommendation.Advice) != 3 {
		t.Errorf("expected 3 advice lines, got %d", len(res.Recommendation.Advice))
	}
	want := []decisionpath.Step{
		{Feature: "Soil_Moisture", Condition: "Soil_Moisture <= 30.00", Value: 25.4},
		{Feature: "Mulching_Used", Condition: "Mulching_Used <= 0.50", Value: 0},
	}
	if len(res.DecisionPath) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(res.DecisionPath))
	}
	for i := range want {
		if res.DecisionPath[i] != want[i] {
			t.Errorf("step %d: expected %+v, got %+v", i, want[i], res.DecisionPath[i])
		}
	}
}

func TestPredict_Levels(t *testing.T) {
	p := testPredictor(t, nil)
	tests := []struct {
		moisture float64
		mulching any
		want     recommend.Level
	}{
		{20, "Yes", recommend.Medium},
		{20, float64(1), recommend.Medium},
		{20, 0, recommend.High},
		{55, "No", recommend.Low},
	}
	for _, tt := range tests {
		res, err := p.Predict(context.Background(), map[string]any{
			"Soil_Moisture": tt.moisture,
			"Mulching_Used": tt.mulching,
		})
		if err != nil {
			t.Fatalf("moisture=%v mulching=%v: unexpected error: %v", tt.moisture, tt.mulching, err)
		}
		if res.Prediction != tt.want {
			t.Errorf("moisture=%v mulching=%v: expected %q, got %q", tt.moisture, tt.mulching, tt.want, res.Prediction)
		}
	}
}

func TestPredict_DoesNotMutateInput(t *testing.T) {
	p := testPredictor(t, nil)
	features := map[string]any{"Soil_Moisture": 10.0, "Mulching_Used": "Yes"}
	if _, err := p.Predict(context.Background(), features); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if features["Mulching_Used"] != "Yes" {
		t.Errorf("expected caller map untouched, got %v", features["Mulching_Used"])
	}
}

func TestPredict_UnknownClassFails(t *testing.T) {
	p := testPredictor(t, recommend.Labels{0: recommend.Low, 1: recommend.Medium})
	_, err := p.Predict(context.Background(), map[string]any{
		"Soil_Moisture": 10.0,
		"Mulching_Used": "No",
	})
	if !errors.Is(err, recommend.ErrUnknownClass) {
		t.Fatalf("expected ErrUnknownClass, got %v", err)
	}
	if p.Stats.Snapshot().Failed != 1 {
		t.Errorf("expected failure to be recorded in stats")
	}
}

func TestPredict_EncodeErrors(t *testing.T) {
	p := testPredictor(t, nil)
	_, err := p.Predict(context.Background(), map[string]any{"Soil_Moisture": 10.0})
	if !errors.Is(err, encoder.ErrMissingFeature) {
		t.Errorf("expected ErrMissingFeature when mulching absent and numeric, got %v", err)
	}
	_, err = p.Predict(context.Background(), map[string]any{"Soil_Moisture": 10.0, "Mulching_Used": "Sometimes"})
	if !errors.Is(err, ErrInvalidFeature) {
		t.Errorf("expected ErrInvalidFeature, got %v", err)
	}
}

func TestNew_WidthMismatch(t *testing.T) {
	tree, err := dtree.New([]dtree.Node{dtree.Leaf(0)}, 5)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	if _, err := New(tree, testEncoder(t), nil, discardLogger()); err == nil {
		t.Error("expected width mismatch error")
	}
}

func TestNew_ColumnNameMismatch(t *testing.T) {
	tree, err := testTree(t).WithFeatureNames([]string{"Soil_Moisture", "Humidity", "Crop_Type_Rice"})
	if err != nil {
		t.Fatalf("name tree: %v", err)
	}
	if _, err := New(tree, testEncoder(t), nil, discardLogger()); err == nil {
		t.Error("expected column name mismatch error")
	}
}

func TestNormalizeMulching(t *testing.T) {
	tests := []struct {
		in      any
		want    any
		wantErr bool
	}{
		{"Yes", 1, false},
		{"no", 0, false},
		{float64(0), 0, false},
		{1, 1, false},
		{"YES", nil, true},
		{"true", nil, true},
		{"1", nil, true},
		{true, nil, true},
		{"maybe", nil, true},
		{float64(3), nil, true},
		{[]string{"Yes"}, nil, true},
	}
	for _, tt := range tests {
		out, err := NormalizeMulching(map[string]any{MulchingField: tt.in})
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidFeature) {
				t.Errorf("in=%v: expected ErrInvalidFeature, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("in=%v: unexpected error: %v", tt.in, err)
		}
		if out[MulchingField] != tt.want {
			t.Errorf("in=%v: expected %v, got %v", tt.in, tt.want, out[MulchingField])
		}
	}
}

func TestNormalizeMulching_Absent(t *testing.T) {
	out, err := NormalizeMulching(map[string]any{"Soil_Moisture": 12.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := out[MulchingField]; ok {
		t.Error("expected absent field to stay absent")
	}
}
