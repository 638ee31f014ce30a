// Package geoip resolves client addresses to approximate locations with a
// MaxMind city database.
package geoip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/biter777/countries"
	"github.com/oschwald/maxminddb-golang"

	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/core/ports"
)

// ErrNoLocation is returned when the database has no coordinates for an address.
var ErrNoLocation = errors.New("no location for address")

// ErrDisabled is returned by a Locator built without a database.
var ErrDisabled = errors.New("geoip disabled")

type cityRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// Locator implements ports.IPLocator.
type Locator struct {
	reader *maxminddb.Reader
}

var _ ports.IPLocator = (*Locator)(nil)

// Open loads the database at path.
func Open(path string) (*Locator, error) {
	r, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip db %s: %w", path, err)
	}
	return &Locator{reader: r}, nil
}

// Disabled returns a Locator that fails every lookup with ErrDisabled.
func Disabled() *Locator {
	return &Locator{}
}

// Locate looks up ip. The result has source "ip" and a "City, Country" label.
func (l *Locator) Locate(_ context.Context, ip net.IP) (*domain.GeoResult, error) {
	if l.reader == nil {
		return nil, ErrDisabled
	}
	if ip == nil {
		return nil, ErrNoLocation
	}

	var rec cityRecord
	if err := l.reader.Lookup(ip, &rec); err != nil {
		return nil, fmt.Errorf("geoip lookup %s: %w", ip, err)
	}
	if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return nil, ErrNoLocation
	}

	return &domain.GeoResult{
		Lat:   rec.Location.Latitude,
		Lng:   rec.Location.Longitude,
		Type:  domain.GeoSourceIP,
		Human: Human(rec.City.Names["en"], rec.Country.ISOCode),
	}, nil
}

// Close releases the database.
func (l *Locator) Close() error {
	if l.reader == nil {
		return nil
	}
	return l.reader.Close()
}

// Human formats a city and an ISO country code as "City, Country".
func Human(city, iso string) string {
	country := CountryName(iso)
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	default:
		return country
	}
}

// CountryName maps an ISO code to a short English country name. Unknown
// codes are returned unchanged.
func CountryName(iso string) string {
	if iso == "" {
		return ""
	}
	name := countries.ByName(iso).String()
	if name == "Unknown" {
		return iso
	}
	if idx := strings.Index(name, " ("); idx != -1 {
		name = name[:idx]
	}
	return name
}
