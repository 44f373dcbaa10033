package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/dgallion1/aquasens/internal/decisionpath"
	"github.com/dgallion1/aquasens/internal/history"
	"github.com/dgallion1/aquasens/internal/recommend"
)

func samplePrediction(steps int) *history.Prediction {
	path := []decisionpath.Step{}
	names := []string{"Soil_Moisture", "Temperature_C", "Rainfall_mm", "Humidity", "Crop_Type_Rice"}
	for i := 0; i < steps; i++ {
		path = append(path, decisionpath.Step{
			Feature:   names[i],
			Condition: names[i] + " <= 30.00",
			Value:     float64(i) + 0.5,
		})
	}
	return &history.Prediction{
		ID:             "p-1",
		UserID:         "farmer",
		Input:          map[string]any{"Crop_Type": "Rice", "Soil_Type": "Clay"},
		Result:         recommend.High,
		DecisionPath:   path,
		Recommendation: recommend.For(recommend.High),
		CreatedAt:      time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
	}
}

// count returns how many elements named tag appear in doc.
func count(doc *html.Node, tag string) int {
	n := 0
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		if x.Type == html.ElementNode && x.Data == tag {
			n++
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return n
}

func TestMarkdown_ContainsRecommendation(t *testing.T) {
	src := string(Markdown(samplePrediction(2)))
	for _, want := range []string{
		"## Irrigation level: High",
		"**Immediate irrigation required**",
		"- Monitor soil moisture daily",
		"| 1 | Soil\\_Moisture | `Soil_Moisture <= 30.00` | 0.50 |",
		"2026-05-04 10:30 UTC",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("expected markdown to contain %q, got:\n%s", want, src)
		}
	}
}

func TestHTML_TableRows(t *testing.T) {
	out, err := HTML(samplePrediction(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, err := html.Parse(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if got := count(doc, "table"); got != 1 {
		t.Fatalf("expected 1 table, got %d", got)
	}
	// Header row plus one row per step.
	if got := count(doc, "tr"); got != 6 {
		t.Errorf("expected 6 table rows, got %d", got)
	}
	if got := count(doc, "li"); got != 3 {
		t.Errorf("expected 3 advice items, got %d", got)
	}
	if !bytes.Contains(out, []byte("Soil_Moisture &lt;= 30.00")) {
		t.Errorf("expected escaped condition in html, got:\n%s", out)
	}
}

func TestHTML_EmptyPath(t *testing.T) {
	out, err := HTML(samplePrediction(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, err := html.Parse(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	if got := count(doc, "table"); got != 0 {
		t.Errorf("expected no table for empty path, got %d", got)
	}
	if !bytes.Contains(out, []byte("no split conditions apply")) {
		t.Errorf("expected empty-path note, got:\n%s", out)
	}
}
