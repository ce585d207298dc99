package handler

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var ErrBadName = errors.New("invalid display name")

// NormalizeName folds a display name to NFKC, narrows full-width forms and
// bounds its width in terminal columns (wide runes count two).
func NormalizeName(s string, maxWidth int) (string, error) {
	s = strings.TrimSpace(width.Narrow.String(norm.NFKC.String(s)))
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrBadName)
	}
	cols := 0
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return "", fmt.Errorf("%w: unprintable rune %U", ErrBadName, r)
		}
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			cols += 2
		default:
			cols++
		}
	}
	if maxWidth > 0 && cols > maxWidth {
		return "", fmt.Errorf("%w: %d columns, max %d", ErrBadName, cols, maxWidth)
	}
	return s, nil
}
