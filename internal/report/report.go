// Package report renders a stored prediction as an agronomist report.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dgallion1/aquasens/internal/history"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown returns the report source for p.
func Markdown(p *history.Prediction) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Irrigation report\n\n")
	fmt.Fprintf(&b, "Prediction `%s` for user `%s`, %s.\n\n", p.ID, p.UserID, p.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))

	sum := p.Summary()
	if sum.Crop != nil || sum.Soil != nil {
		fmt.Fprintf(&b, "Crop: **%v**, soil: **%v**.\n\n", orDash(sum.Crop), orDash(sum.Soil))
	}

	fmt.Fprintf(&b, "## Irrigation level: %s\n\n", p.Result)
	fmt.Fprintf(&b, "**%s**\n\n", p.Recommendation.Action)
	for _, a := range p.Recommendation.Advice {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	b.WriteString("\n")

	b.WriteString("## Decision path\n\n")
	if len(p.DecisionPath) == 0 {
		b.WriteString("The model predicts this level for every input; no split conditions apply.\n")
		return b.Bytes()
	}
	b.WriteString("| # | Feature | Rule | Your value |\n")
	b.WriteString("|---|---|---|---|\n")
	for i, s := range p.DecisionPath {
		fmt.Fprintf(&b, "| %d | %s | `%s` | %.2f |\n", i+1, cell(s.Feature), s.Condition, s.Value)
	}
	return b.Bytes()
}

// HTML renders the report for p.
func HTML(p *history.Prediction) ([]byte, error) {
	var out bytes.Buffer
	if err := md.Convert(Markdown(p), &out); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return out.Bytes(), nil
}

func orDash(v any) any {
	if v == nil || v == "" {
		return "-"
	}
	return v
}

// cell escapes characters that would break a table row.
func cell(s string) string {
	return strings.NewReplacer("|", `\|`, "_", `\_`).Replace(s)
}
