// Package shipping holds the flat per-city delivery fees the shop charges.
package shipping

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

const (
	DefaultRegion = "South Luzon"
	DefaultCity   = "Calamba City"
)

var ErrUnknownDestination = errors.New("unknown shipping destination")

var regions = map[string][]string{
	"Metro Manila": {"Manila", "Quezon City"},
	"South Luzon":  {"Calamba City", "Batangas City"},
	"North Luzon":  {"Baguio", "Dagupan"},
	"Visayas":      {"Cebu City", "Iloilo City"},
	"Mindanao":     {"Davao City", "Cagayan de Oro"},
}

var fees = map[string]int64{
	"Manila":         25,
	"Quezon City":    20,
	"Calamba City":   36,
	"Batangas City":  30,
	"Baguio":         35,
	"Dagupan":        32,
	"Cebu City":      28,
	"Iloilo City":    30,
	"Davao City":     34,
	"Cagayan de Oro": 33,
}

type Region struct {
	Name   string `json:"name"`
	Cities []City `json:"cities"`
}

type City struct {
	Name string          `json:"name"`
	Fee  decimal.Decimal `json:"fee"`
}

// Fee returns the delivery fee for a city, which must belong to the region.
func Fee(region, city string) (decimal.Decimal, error) {
	cities, ok := regions[region]
	if !ok {
		return decimal.Zero, ErrUnknownDestination
	}
	for _, c := range cities {
		if c == city {
			return decimal.NewFromInt(fees[c]), nil
		}
	}
	return decimal.Zero, ErrUnknownDestination
}

// Regions lists every region and its cities, sorted by name.
func Regions() []Region {
	out := make([]Region, 0, len(regions))
	for name, cities := range regions {
		r := Region{Name: name, Cities: make([]City, 0, len(cities))}
		for _, c := range cities {
			r.Cities = append(r.Cities, City{Name: c, Fee: decimal.NewFromInt(fees[c])})
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
