// Package colors blends marker colors.
package colors

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrArrayLengthMismatch is returned by add when channel vectors of
	// different sizes are summed. Average always sums 4-channel vectors and
	// so never returns it.
	ErrArrayLengthMismatch = errors.New("array lengths do not match")
	// ErrNoColors is returned when no token could be parsed.
	ErrNoColors = errors.New("no parsable colors")
)

type rgba [4]int

// Average returns the channel-wise mean of hex color tokens (#rgb, #rgba,
// #rrggbb, #rrggbbaa) as a lowercase hex string. Alpha is kept only when at
// least one token carried it. Tokens that cannot be parsed are logged and
// skipped. The only error is ErrNoColors.
func Average(tokens []string) (string, error) {
	var (
		sum      = make([]int, 4)
		n        int
		useAlpha bool
	)

	for _, tok := range tokens {
		c, hasAlpha, err := parse(tok)
		if err != nil {
			slog.Warn("skipping color token", "token", tok, "error", err)
			continue
		}
		if hasAlpha {
			useAlpha = true
		}
		sum, err = add(sum, c[:])
		if err != nil {
			slog.Error("color average aborted", "error", err)
			return "", err
		}
		n++
	}

	if n == 0 {
		return "", ErrNoColors
	}
	if !useAlpha {
		sum = sum[:3]
	}

	var b strings.Builder
	b.WriteByte('#')
	for _, v := range sum {
		avg := int(math.Round(float64(v) / float64(n)))
		fmt.Fprintf(&b, "%02x", avg)
	}
	return b.String(), nil
}

// parse decodes one token. The boolean reports an explicit alpha channel.
func parse(tok string) (rgba, bool, error) {
	tok = strings.TrimSpace(strings.ReplaceAll(tok, ";", ""))
	if !strings.HasPrefix(tok, "#") {
		return rgba{}, false, fmt.Errorf("unparsable color %q", tok)
	}
	hex := tok[1:]

	var (
		c        = rgba{0, 0, 0, 255}
		width    int
		channels int
	)
	switch len(tok) {
	case 4:
		width, channels = 1, 3
	case 5:
		width, channels = 1, 4
	case 7:
		width, channels = 2, 3
	case 9:
		width, channels = 2, 4
	default:
		return rgba{}, false, fmt.Errorf("unparsable color %q", tok)
	}

	for i := 0; i < channels; i++ {
		digits := hex[i*width : (i+1)*width]
		if width == 1 {
			digits += digits
		}
		v, err := strconv.ParseUint(digits, 16, 8)
		if err != nil {
			return rgba{}, false, fmt.Errorf("unparsable color %q: %w", tok, err)
		}
		c[i] = int(v)
	}
	return c, channels == 4, nil
}

func add(a, b []int) ([]int, error) {
	if len(a) != len(b) {
		return nil, ErrArrayLengthMismatch
	}
	out := make([]int, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out, nil
}
