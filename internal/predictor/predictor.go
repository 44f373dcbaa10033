package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/dgallion1/aquasens/internal/decisionpath"
	"github.com/dgallion1/aquasens/internal/dtree"
	"github.com/dgallion1/aquasens/internal/encoder"
	"github.com/dgallion1/aquasens/internal/metrics"
	"github.com/dgallion1/aquasens/internal/recommend"
)

// MulchingField is the yes/no feature normalized to 0/1 before encoding.
const MulchingField = "Mulching_Used"

// ErrInvalidFeature is returned when a raw feature cannot be normalized.
var ErrInvalidFeature = errors.New("invalid feature")

// Result is one explained prediction.
type Result struct {
	Prediction     recommend.Level          `json:"prediction"`
	DecisionPath   []decisionpath.Step      `json:"decision_path"`
	Recommendation recommend.Recommendation `json:"recommendation"`
}

// Predictor runs encode -> predict -> explain -> recommend for one row.
// The tree, encoder and labels are shared read-only across requests.
type Predictor struct {
	tree   *dtree.Tree
	enc    *encoder.Encoder
	labels recommend.Labels
	log    *slog.Logger
	Stats  *Stats
}

// New wires a predictor. It fails if the encoder and tree disagree on width
// or on column names.
func New(tree *dtree.Tree, enc *encoder.Encoder, labels recommend.Labels, log *slog.Logger) (*Predictor, error) {
	if enc.Width() != tree.NumFeatures() {
		return nil, fmt.Errorf("encoder produces %d columns, tree expects %d", enc.Width(), tree.NumFeatures())
	}
	if names := tree.FeatureNames(); names != nil {
		cols := enc.Columns()
		for i := range names {
			if names[i] != cols[i] {
				return nil, fmt.Errorf("column %d: encoder has %q, tree was trained on %q", i, cols[i], names[i])
			}
		}
	}
	if len(labels) == 0 {
		labels = recommend.DefaultLabels()
	}
	return &Predictor{
		tree:   tree,
		enc:    enc,
		labels: labels,
		log:    log,
		Stats:  NewStats(time.Hour),
	}, nil
}

// Predict explains one raw feature mapping. The mapping is not modified.
func (p *Predictor) Predict(ctx context.Context, features map[string]any) (*Result, error) {
	start := time.Now()
	res, reason, err := p.predict(features)
	elapsed := time.Since(start)
	if err != nil {
		p.Stats.Record(elapsed, "")
		metrics.PredictionErrors.WithLabelValues(reason).Inc()
		p.log.WarnContext(ctx, "prediction failed", "reason", reason, "error", err)
		return nil, err
	}

	p.Stats.Record(elapsed, string(res.Prediction))
	metrics.RecordPrediction(string(res.Prediction), len(res.DecisionPath), elapsed)
	p.log.DebugContext(ctx, "prediction", "level", res.Prediction, "steps", len(res.DecisionPath), "duration_us", elapsed.Microseconds())
	return res, nil
}

func (p *Predictor) predict(features map[string]any) (*Result, string, error) {
	normalized, err := NormalizeMulching(features)
	if err != nil {
		return nil, "normalize", err
	}

	row, err := p.enc.Transform(normalized)
	if err != nil {
		return nil, "encode", fmt.Errorf("encode: %w", err)
	}

	class, err := p.tree.Predict(row.Values)
	if err != nil {
		return nil, "predict", fmt.Errorf("predict: %w", err)
	}

	path, err := decisionpath.Extract(p.tree, row.Values, row.Columns)
	if err != nil {
		return nil, "explain", fmt.Errorf("decision path: %w", err)
	}

	level, err := p.labels.Level(class)
	if err != nil {
		return nil, "label", err
	}

	return &Result{
		Prediction:     level,
		DecisionPath:   path,
		Recommendation: recommend.For(level),
	}, "", nil
}

// mulchingValues are the accepted Mulching_Used spellings. Input validation
// accepts the same set.
var mulchingValues = map[string]int{"Yes": 1, "yes": 1, "No": 0, "no": 0}

// NormalizeMulching returns a copy of features with Mulching_Used mapped to
// 1 (Yes) or 0 (No). An already encoded 0 or 1 passes through. A missing
// field is left missing for the encoder to report.
func NormalizeMulching(features map[string]any) (map[string]any, error) {
	out := maps.Clone(features)
	if out == nil {
		out = map[string]any{}
	}
	raw, ok := out[MulchingField]
	if !ok || raw == nil {
		return out, nil
	}

	var v int
	switch m := raw.(type) {
	case string:
		enc, ok := mulchingValues[m]
		if !ok {
			return nil, fmt.Errorf("%w: %s=%q, want Yes or No", ErrInvalidFeature, MulchingField, m)
		}
		v = enc
	case float64:
		if m != 0 && m != 1 {
			return nil, fmt.Errorf("%w: %s=%v, want 0 or 1", ErrInvalidFeature, MulchingField, m)
		}
		v = int(m)
	case int:
		if m != 0 && m != 1 {
			return nil, fmt.Errorf("%w: %s=%d, want 0 or 1", ErrInvalidFeature, MulchingField, m)
		}
		v = m
	default:
		return nil, fmt.Errorf("%w: %s has type %T", ErrInvalidFeature, MulchingField, raw)
	}
	out[MulchingField] = v
	return out, nil
}
