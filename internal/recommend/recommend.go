package recommend

import (
	"errors"
	"fmt"
)

// Level is a predicted irrigation level.
type Level string

const (
	Low    Level = "Low"
	Medium Level = "Medium"
	High   Level = "High"
)

// ErrUnknownClass is returned when the tree emits a class the label map does not cover.
var ErrUnknownClass = errors.New("unknown class")

// Recommendation is the agronomist advice attached to a prediction.
type Recommendation struct {
	Action string   `json:"action"`
	Advice []string `json:"advice"`
}

var table = map[Level]Recommendation{
	High: {
		Action: "Immediate irrigation required",
		Advice: []string{
			"Apply drip irrigation if available",
			"Monitor soil moisture daily",
			"Avoid irrigation during peak sunlight hours",
		},
	},
	Medium: {
		Action: "Moderate irrigation recommended",
		Advice: []string{
			"Irrigate within 24–48 hours",
			"Check weather forecast for rainfall",
			"Use mulching to reduce evaporation",
		},
	},
	Low: {
		Action: "No irrigation required",
		Advice: []string{
			"Soil moisture is sufficient",
			"Re-evaluate in 3–5 days",
			"Avoid unnecessary watering",
		},
	},
}

// For returns the recommendation for level. Anything that is not High or
// Medium gets the Low recommendation.
func For(level Level) Recommendation {
	r, ok := table[level]
	if !ok {
		r = table[Low]
	}
	return Recommendation{
		Action: r.Action,
		Advice: append([]string(nil), r.Advice...),
	}
}

// Labels maps tree class indices to levels.
type Labels map[int]Level

// DefaultLabels is the class encoding the irrigation model was trained with.
func DefaultLabels() Labels {
	return Labels{0: Low, 1: Medium, 2: High}
}

// Level returns the label for class.
func (l Labels) Level(class int) (Level, error) {
	lvl, ok := l[class]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownClass, class)
	}
	return lvl, nil
}
