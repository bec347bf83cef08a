package aggregate

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	valueGap         = "    "
	levelGap         = "  "
	maxFloatDecimals = 6
)

// Format writes s in the layout of a pandas Series repr:
//
//	CountyName
//	ANTRIM    112345
//	DOWN       98765
//	Name: Population, dtype: int64
//
// Multi-level indexes print one column per level, blanking an outer key
// that repeats the row above.
func (s *Series) Format(w io.Writer) error {
	if len(s.Rows) == 0 {
		_, err := fmt.Fprintf(w, "Series([], Name: %s, dtype: %s)\n", s.Name, s.DType)
		return err
	}

	values := s.formatValues()
	valueWidth := 0
	for _, v := range values {
		valueWidth = max(valueWidth, len(v))
	}

	levels := len(s.IndexNames)
	widths := make([]int, levels)
	for _, r := range s.Rows {
		for i, k := range r.Keys {
			widths[i] = max(widths[i], utf8.RuneCountInString(k))
		}
	}
	if levels > 1 {
		for i, n := range s.IndexNames {
			widths[i] = max(widths[i], utf8.RuneCountInString(n))
		}
	}

	var b bytes.Buffer
	if levels == 1 {
		b.WriteString(s.IndexNames[0])
	} else {
		cells := make([]string, levels)
		for i, n := range s.IndexNames {
			cells[i] = pad(n, widths[i])
		}
		b.WriteString(strings.TrimRight(strings.Join(cells, levelGap), " "))
	}
	b.WriteByte('\n')

	var prev []string
	for i, r := range s.Rows {
		cells := make([]string, levels)
		outerSame := prev != nil
		for l, k := range r.Keys {
			if l < levels-1 && outerSame && prev[l] == k {
				cells[l] = pad("", widths[l])
				continue
			}
			outerSame = false
			cells[l] = pad(k, widths[l])
		}
		b.WriteString(strings.Join(cells, levelGap))
		b.WriteString(valueGap)
		b.WriteString(strings.Repeat(" ", valueWidth-len(values[i])))
		b.WriteString(values[i])
		b.WriteByte('\n')
		prev = r.Keys
	}
	fmt.Fprintf(&b, "Name: %s, dtype: %s\n", s.Name, s.DType)

	_, err := w.Write(b.Bytes())
	return err
}

// String returns the Format output.
func (s *Series) String() string {
	var b strings.Builder
	_ = s.Format(&b)
	return b.String()
}

// formatValues renders every value with a shared precision: integers as is,
// floats with the fewest decimals (at least one) that represent every value.
func (s *Series) formatValues() []string {
	out := make([]string, len(s.Rows))
	if s.DType == Int64 {
		for i, r := range s.Rows {
			out[i] = strconv.FormatInt(int64(math.Round(r.Value)), 10)
		}
		return out
	}

	decimals := 1
	for _, r := range s.Rows {
		for decimals < maxFloatDecimals && !exactAt(r.Value, decimals) {
			decimals++
		}
	}
	for i, r := range s.Rows {
		out[i] = strconv.FormatFloat(r.Value, 'f', decimals, 64)
	}
	return out
}

func exactAt(v float64, decimals int) bool {
	scale := math.Pow(10, float64(decimals))
	scaled := v * scale
	return math.Abs(scaled-math.Round(scaled)) < 1e-9*math.Max(1, math.Abs(scaled))
}

func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
