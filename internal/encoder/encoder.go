package encoder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

var (
	ErrMissingFeature = errors.New("missing feature")
	ErrInvalidFeature = errors.New("invalid feature value")
	ErrBadSpec        = errors.New("bad encoder spec")
)

// Kind is how a raw feature becomes an encoded column.
type Kind string

const (
	Numeric Kind = "numeric"
	OneHot  Kind = "onehot"
)

// Column describes one encoded column.
type Column struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Kind     Kind   `json:"kind"`
	Category string `json:"category,omitempty"`
}

// Spec is the on-disk form of a fitted encoder.
type Spec struct {
	Columns []Column `json:"columns"`
}

// Encoder turns a raw feature mapping into the column-aligned row a tree
// was trained on. It is immutable and safe for concurrent use.
type Encoder struct {
	columns []Column
	names   []string
}

// Row is one encoded input row with its column names.
type Row struct {
	Values  []float64
	Columns []string
}

// New validates spec and returns an Encoder.
func New(spec Spec) (*Encoder, error) {
	if len(spec.Columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrBadSpec)
	}
	seen := make(map[string]bool, len(spec.Columns))
	names := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		if c.Name == "" || c.Source == "" {
			return nil, fmt.Errorf("%w: column %d needs name and source", ErrBadSpec, i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrBadSpec, c.Name)
		}
		seen[c.Name] = true
		switch c.Kind {
		case Numeric:
		case OneHot:
			if c.Category == "" {
				return nil, fmt.Errorf("%w: one-hot column %q has no category", ErrBadSpec, c.Name)
			}
		default:
			return nil, fmt.Errorf("%w: column %q has unknown kind %q", ErrBadSpec, c.Name, c.Kind)
		}
		names[i] = c.Name
	}
	return &Encoder{
		columns: append([]Column(nil), spec.Columns...),
		names:   names,
	}, nil
}

// Decode reads a JSON encoder spec from r.
func Decode(r io.Reader) (*Encoder, error) {
	var spec Spec
	if err := json.NewDecoder(r).Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode encoder: %w", err)
	}
	return New(spec)
}

// Load reads a JSON encoder spec from path.
func Load(path string) (*Encoder, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open encoder: %w", err)
	}
	defer fh.Close()
	return Decode(fh)
}

// Columns returns the encoded column names in order.
func (e *Encoder) Columns() []string {
	return append([]string(nil), e.names...)
}

// Width is the number of encoded columns.
func (e *Encoder) Width() int { return len(e.columns) }

// Transform encodes features. Numeric sources must be present; a missing
// categorical source, or a category not seen at fit time, encodes as all zeros.
func (e *Encoder) Transform(features map[string]any) (Row, error) {
	values := make([]float64, len(e.columns))
	for i, c := range e.columns {
		raw, ok := features[c.Source]
		switch c.Kind {
		case Numeric:
			if !ok || raw == nil {
				return Row{}, fmt.Errorf("%w: %s", ErrMissingFeature, c.Source)
			}
			v, err := toFloat(raw)
			if err != nil {
				return Row{}, fmt.Errorf("%w: %s: %v", ErrInvalidFeature, c.Source, err)
			}
			values[i] = v
		case OneHot:
			if !ok || raw == nil {
				continue
			}
			if fmt.Sprint(raw) == c.Category {
				values[i] = 1
			}
		}
	}
	return Row{Values: values, Columns: e.Columns()}, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
