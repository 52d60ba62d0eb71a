package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		in   string
		want Source
	}{
		{"autolist", SourceAutolist},
		{"AUTO_TRADER", SourceAutoTrader},
		{"cars.com", SourceCarsDotCom},
		{"cars_com", SourceCarsDotCom},
		{" edmunds ", SourceEdmunds},
		{"carmax", SourceCarMax},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSource(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSource_Unknown(t *testing.T) {
	_, err := ParseSource("craigslist")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestParseSources_StopsOnUnknown(t *testing.T) {
	_, err := ParseSources([]string{"autolist", "bogus"})
	require.Error(t, err)

	got, err := ParseSources([]string{"autolist", "edmunds"})
	require.NoError(t, err)
	assert.Equal(t, []Source{SourceAutolist, SourceEdmunds}, got)
}

func TestVehicleRef_HasSource(t *testing.T) {
	v := VehicleRef{VIN: "1C4RJFAG0FC625797", ActiveSources: []Source{SourceEdmunds}}
	assert.True(t, v.HasSource(SourceEdmunds))
	assert.False(t, v.HasSource(SourceAutolist))
}

func TestVehicleFromListing(t *testing.T) {
	l := Listing{VIN: "1C4RJFAG0FC625797", Year: 2015, Version: "Limited", Source: SourceAutolist}
	v := VehicleFromListing(Naming{Make: "jeep", Model: "grand_cherokee"}, l)
	assert.Equal(t, Vehicle{VIN: "1C4RJFAG0FC625797", Make: "jeep", Model: "grand_cherokee", Version: "Limited", Year: 2015}, v)
}
