package sql

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

// cellText renders one value the way the REPL prints it.
func cellText(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case int32:
		return fmt.Sprintf("%d", n)
	case float32:
		return fmt.Sprintf("%g", n)
	default:
		return fmt.Sprintf("%v", n)
	}
}

// FormatTable renders a Result as an aligned text table. Column widths are
// computed with uniseg's display-width measurement rather than a simple
// rune count, since a terminal cell is not always one rune (combining
// marks, wide CJK glyphs).
func FormatTable(r *Result) string {
	if len(r.Columns) == 0 {
		return r.Message
	}

	widths := make([]int, len(r.Columns))
	for i, c := range r.Columns {
		widths[i] = uniseg.StringWidth(c)
	}
	cells := make([][]string, len(r.Rows))
	for ri, row := range r.Rows {
		cells[ri] = make([]string, len(row))
		for ci, v := range row {
			text := cellText(v)
			cells[ri][ci] = text
			if w := uniseg.StringWidth(text); w > widths[ci] {
				widths[ci] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(fields []string) {
		for i, f := range fields {
			if i > 0 {
				b.WriteString(" | ")
			}
			pad := widths[i] - uniseg.StringWidth(f)
			b.WriteString(f)
			if pad > 0 {
				b.WriteString(strings.Repeat(" ", pad))
			}
		}
		b.WriteString("\n")
	}
	writeRow(r.Columns)
	for i, w := range widths {
		if i > 0 {
			b.WriteString("-+-")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("\n")
	for _, row := range cells {
		writeRow(row)
	}
	return strings.TrimRight(b.String(), "\n")
}
