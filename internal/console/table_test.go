package console

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	rows := [][]string{
		{"stats [threshold|pattern]", "Display statistics"},
		{"récord <name>", "Increment"},
	}

	lines := formatTable(rows)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "stats [threshold|pattern]  Display statistics" {
		t.Fatalf("unexpected row line: %q", lines[0])
	}
	if lines[1] != "récord <name>              Increment" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
}

func TestFormatTableTrimsTrailingPadding(t *testing.T) {
	lines := formatTable([][]string{{"help", ""}, {"x", "y"}})
	if lines[0] != "help" {
		t.Fatalf("unexpected line: %q", lines[0])
	}
	if lines[1] != "x     y" {
		t.Fatalf("unexpected line: %q", lines[1])
	}
	if formatTable(nil) != nil {
		t.Fatalf("expected nil for empty table")
	}
}
