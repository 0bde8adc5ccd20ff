package app

import (
	"testing"
	"time"
)

func TestParseOutputFormat(t *testing.T) {
	t.Parallel()

	if format, err := parseOutputFormat("", outputFormatTable); err != nil || format != outputFormatTable {
		t.Fatalf("expected default table format, got %q err=%v", format, err)
	}
	if format, err := parseOutputFormat("  JSON ", outputFormatTable); err != nil || format != outputFormatJSON {
		t.Fatalf("expected folded json format, got %q err=%v", format, err)
	}
	if _, err := parseOutputFormat("yaml", outputFormatTable); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestTruncateForTable(t *testing.T) {
	t.Parallel()

	if got := truncateForTable("  short  ", 10); got != "short" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if got := truncateForTable("a long headline here", 10); got != "a long ..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncateForTable("abcdef", 2); got != "ab" {
		t.Fatalf("unexpected tiny truncation: %q", got)
	}
}

func TestUTCDayBounds(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	start, end := utcDayBounds(day)
	if !start.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day start: %v", start)
	}
	if !end.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day end: %v", end)
	}
}
