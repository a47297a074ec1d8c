// Package lines adds and removes the cosmetic line-number prefix used by
// `transpile --lines`.
package lines

import (
	"fmt"
	"strconv"
	"strings"
)

// Number prefixes each line of s with its right-aligned 1-based index and a
// single space. The index width is the number of decimal digits in the line
// count. A trailing newline in s is kept.
func Number(s string) string {
	body, trailing := split(s)
	if body == "" && !trailing {
		return ""
	}

	lines := strings.Split(body, "\n")
	width := len(strconv.Itoa(len(lines)))

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%*d %s", width, i+1, line)
	}
	if trailing {
		b.WriteByte('\n')
	}
	return b.String()
}

// Strip removes the prefix added by Number
func Strip(s string) string {
	body, trailing := split(s)
	if body == "" && !trailing {
		return ""
	}

	lines := strings.Split(body, "\n")
	width := len(strconv.Itoa(len(lines)))

	for i, line := range lines {
		if len(line) > width {
			lines[i] = line[width+1:]
		} else {
			lines[i] = ""
		}
	}

	out := strings.Join(lines, "\n")
	if trailing {
		out += "\n"
	}
	return out
}

func split(s string) (string, bool) {
	if strings.HasSuffix(s, "\n") {
		return strings.TrimSuffix(s, "\n"), true
	}
	return s, false
}
