package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Source identifies an upstream marketplace. The string value is what gets
// written to vehicle_listings.source.
type Source string

const (
	SourceAutoTrader Source = "auto_trader"
	SourceAutolist   Source = "autolist"
	SourceCarsDotCom Source = "cars.com"
	SourceEdmunds    Source = "edmunds"

	// Known marketplaces with no fetcher yet. They parse, but enabling one
	// fails config validation until an implementation is registered.
	SourceCarGurus Source = "car_gurus"
	SourceTrueCar  Source = "truecar"
	SourceCarvana  Source = "carvana"
	SourceCarfax   Source = "carfax"
	SourceCarMax   Source = "carmax"
)

// KnownSources lists every marketplace the pipeline knows about.
var KnownSources = []Source{
	SourceAutoTrader,
	SourceAutolist,
	SourceCarsDotCom,
	SourceEdmunds,
	SourceCarGurus,
	SourceTrueCar,
	SourceCarvana,
	SourceCarfax,
	SourceCarMax,
}

// String returns the canonical source name.
func (s Source) String() string { return string(s) }

// ParseSource converts a string into a Source. Config keys cannot contain
// dots, so "cars_com" is accepted as an alias for "cars.com".
func ParseSource(s string) (Source, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "cars_com" || key == "cars_dot_com" {
		key = string(SourceCarsDotCom)
	}
	for _, src := range KnownSources {
		if string(src) == key {
			return src, nil
		}
	}
	return "", eris.Errorf("unknown source: %q", s)
}

// ParseSources parses a list of source names, failing on the first unknown one.
func ParseSources(names []string) ([]Source, error) {
	out := make([]Source, 0, len(names))
	for _, n := range names {
		src, err := ParseSource(n)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}
