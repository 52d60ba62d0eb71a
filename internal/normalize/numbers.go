// Package normalize maps raw marketplace values onto the canonical listing
// and vehicle fields. Every function here is pure.
package normalize

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var mileageSuffixes = []string{"miles", "mile", "mi."}

// ParsePrice converts a currency string such as "$12,345" to whole dollars.
// An empty value yields nil. Cents, when present, are dropped.
func ParsePrice(raw string) (*int, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: parse price %q", raw)
	}
	return &v, nil
}

// ParseMileage converts a mileage string such as "45,000 Miles" to whole
// miles. An empty value yields nil.
func ParseMileage(raw string) (*int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for _, suffix := range mileageSuffixes {
		s = strings.TrimSuffix(s, suffix)
	}
	s = strings.TrimSuffix(s, "mi")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: parse mileage %q", raw)
	}
	return &v, nil
}

// Remote reports whether a listing sits outside the search radius and so
// cannot be viewed locally.
func Remote(distance, radius float64) bool {
	return distance > radius
}
