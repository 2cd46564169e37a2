package textutil

import "strings"

// ConvertTableToList parses a space-padded fixed-width table (as returned by
// _cat/indices and _cat/shards) into one map per row, keyed by columnNames.
//
// Column boundaries are found the same way the original balance.py does:
// a character column is a boundary only if every row has a space there,
// and a run of adjacent such columns counts as a single boundary (at the
// run's first column). The first len(columnNames)-1 boundaries are used, so trailing
// whitespace-only columns beyond what's needed are ignored and the final
// field absorbs any remaining text (this is how a "_remainder" style last
// column works for _cat/indices).
func ConvertTableToList(table string, columnNames []string) []map[string]string {
	var lines []string
	for _, l := range strings.Split(table, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	width := 0
	for _, l := range lines {
		if len(l) > width {
			width = len(l)
		}
	}

	var boundaries []int
	prevAllSpace := false
	for i := 0; i < width; i++ {
		allSpace := true
		for _, l := range lines {
			if i >= len(l) || l[i] != ' ' {
				allSpace = false
				break
			}
		}
		if allSpace && !prevAllSpace {
			boundaries = append(boundaries, i)
		}
		prevAllSpace = allSpace
	}

	if want := len(columnNames) - 1; len(boundaries) > want {
		boundaries = boundaries[:want]
	}

	rows := make([]map[string]string, 0, len(lines))
	for _, l := range lines {
		fields := splitAt(l, boundaries)
		row := make(map[string]string, len(columnNames))
		for i, name := range columnNames {
			if i < len(fields) {
				row[name] = fields[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// splitAt cuts row at each boundary index, trimming whitespace from every
// resulting field.
func splitAt(row string, boundaries []int) []string {
	out := make([]string, 0, len(boundaries)+1)
	last := 0
	for _, c := range boundaries {
		if c > len(row) {
			c = len(row)
		}
		out = append(out, strings.TrimSpace(row[last:c]))
		last = c
	}
	out = append(out, strings.TrimSpace(row[last:]))
	return out
}
