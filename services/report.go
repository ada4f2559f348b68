package services

import (
	"fmt"
	"io"
	"strings"

	"property-underwriter/models"
)

// PrintReport writes the terminal summary of an analysis: column feedback,
// derived metrics, the inputs that were set and, when present, the insight.
func PrintReport(w io.Writer, a *models.Analysis, insight string) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🏢 UNDERWRITING REPORT: %s\033[0m\n", truncate(a.Source, 40))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Source\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Analysis ID : %s\n", a.ID)
	if a.Sheet != "" {
		fmt.Fprintf(w, "  Sheet       : %s (1 of %d)\n", a.Sheet, a.SheetCount)
	}
	if len(a.MissingColumns) > 0 {
		fmt.Fprintf(w, "  Missing     : \033[1;31m%s\033[0m (treated as 0)\n", strings.Join(a.MissingColumns, ", "))
	}
	if a.Source != models.ManualSource {
		detected := "none"
		if len(a.DetectedColumns) > 0 {
			detected = strings.Join(a.DetectedColumns, ", ")
		}
		fmt.Fprintf(w, "  Detected    : %s\n", detected)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Key Metrics\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	entries := a.Metrics.Entries()
	for _, m := range entries {
		if !models.IsDerivedMetric(m.Name) {
			continue
		}
		colour := "1;32"
		switch {
		case m.Undefined:
			colour = "2"
		case m.Value < 0:
			colour = "1;31"
		}
		fmt.Fprintf(w, "  %-26s \033[%sm%s\033[0m\n", m.Name, colour, m.Display())
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Inputs\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	shown := 0
	for _, m := range entries {
		if models.IsDerivedMetric(m.Name) || m.Value == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-26s %s\n", truncate(m.Name, 26), m.Display())
		shown++
	}
	for _, f := range models.Fields {
		if f.Kind != models.Text {
			continue
		}
		if v := a.Inputs.TextValue(f.Name); v != "" {
			fmt.Fprintf(w, "  %-26s %s\n", f.Label, truncate(v, 30))
			shown++
		}
	}
	if shown == 0 {
		fmt.Fprintf(w, "  No inputs set\n")
	}

	if insight != "" {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "\033[1;33m  Insights\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		for _, line := range strings.Split(insight, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
