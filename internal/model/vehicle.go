// Package model defines the vehicle, listing, and diagnostics types shared
// across the collection pipeline.
package model

import (
	"slices"
	"time"
)

// Listing is one observed sale offer for a vehicle from one source at one
// point in time. Price and Mileage are nil when the upstream omitted them.
type Listing struct {
	VIN       string    `json:"vin"`
	Source    Source    `json:"source"`
	ScrapedAt time.Time `json:"scrape_time"`
	Year      int       `json:"year"`
	Version   string    `json:"version,omitempty"`
	Price     *int      `json:"price"`
	Mileage   *int      `json:"mileage"`
	Owner     string    `json:"owner,omitempty"`
	Zip       string    `json:"zip,omitempty"`
	Remote    bool      `json:"remote"`
	Title     string    `json:"title,omitempty"`
}

// Vehicle is the canonical VIN-keyed record written on first listing insert.
type Vehicle struct {
	VIN     string `json:"vin"`
	Make    string `json:"make"`
	Model   string `json:"model"`
	Version string `json:"version,omitempty"`
	Year    int    `json:"year"`
}

// Naming carries the make/model names a model config writes into vehicles.
type Naming struct {
	Make  string `json:"make"`
	Model string `json:"model"`
}

// VehicleFromListing builds the vehicle row inserted alongside a listing.
func VehicleFromListing(n Naming, l Listing) Vehicle {
	return Vehicle{
		VIN:     l.VIN,
		Make:    n.Make,
		Model:   n.Model,
		Version: l.Version,
		Year:    l.Year,
	}
}

// VehicleRef identifies a known vehicle for augmentation, along with the
// sources it has been listed on.
type VehicleRef struct {
	VIN           string   `json:"vin"`
	Make          string   `json:"make,omitempty"`
	Model         string   `json:"model"`
	Year          int      `json:"year"`
	ActiveSources []Source `json:"active_sources"`
}

// HasSource reports whether the vehicle has been observed on src.
func (v VehicleRef) HasSource(src Source) bool {
	return slices.Contains(v.ActiveSources, src)
}

// VehicleUpdate holds the augmentation fields applied to an existing vehicle.
type VehicleUpdate struct {
	Model          string `json:"model"`
	Drivetrain     string `json:"drivetrain"`
	Color          string `json:"color"`
	EstimatedValue *int   `json:"estimated_value"`
	Owner          string `json:"owner"`
	Distance       *int   `json:"distance"`
	Year           int    `json:"year"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
