package ctperfusion

import (
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the most likely rune delimiting the values of a
// CSV-like stream, considering only the candidates in allowed. If none of
// them is detected, it returns fallback.
func DetermineDelimiter(r io.Reader, fallback rune, allowed ...rune) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	for _, delim := range delimiters {
		if delim == "" {
			continue
		}
		candidate := rune(delim[0])
		for _, a := range allowed {
			if candidate == a {
				return candidate
			}
		}
	}

	return fallback
}
