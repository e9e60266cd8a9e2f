package stats

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Emphasis decorates a value that should stand out in the report.
type Emphasis func(string) string

// PlainEmphasis leaves values untouched.
func PlainEmphasis(s string) string {
	return s
}

// BoldEmphasis renders values in bold for w, regardless of its color profile.
func BoldEmphasis(w io.Writer) Emphasis {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(termenv.ANSI)
	style := r.NewStyle().Bold(true)
	return func(s string) string {
		return style.Render(s)
	}
}

// EmphasisFor picks bold output for terminals and plain output otherwise.
// NO_COLOR always wins; forceColor enables bold for non-terminal writers.
func EmphasisFor(w io.Writer, forceColor bool) Emphasis {
	if shouldUseColor(w, forceColor) {
		return BoldEmphasis(w)
	}
	return PlainEmphasis
}

func shouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// RenderLines formats a report as console lines.
func RenderLines(r Report, emph Emphasis) []string {
	if emph == nil {
		emph = PlainEmphasis
	}
	lines := make([]string, 0, len(r.Entries)+5)
	lines = append(lines,
		"",
		"Statistics:",
		fmt.Sprintf("  Requests count: %d (sum: %d)", r.Count, r.Sum),
	)

	empty := ""
	if len(r.Entries) == 0 {
		empty = "[] "
	}
	lines = append(lines, fmt.Sprintf("  Recorded: %s (limiter: %s, pattern: '%s')",
		empty, emph(fmt.Sprintf("%d", r.Threshold)), emph(r.Pattern)))

	for _, e := range r.Entries {
		lines = append(lines, fmt.Sprintf("    %d. (%d) %s", e.Rank, e.Value, e.Name))
	}
	lines = append(lines, "")
	return lines
}

// WriteLines writes each line followed by a newline.
func WriteLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
