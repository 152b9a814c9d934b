package ble

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrBadPayload = errors.New("ble: bad reading payload")

// ParseReading decodes the decimal text a node notifies, e.g. "24.98".
// Trailing NUL bytes and surrounding whitespace are ignored.
func ParseReading(data []byte) (float64, error) {
	s := strings.TrimSpace(strings.TrimRight(string(data), "\x00"))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadPayload)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadPayload, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: not finite: %q", ErrBadPayload, s)
	}
	return v, nil
}
