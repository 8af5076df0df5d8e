package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// cityRecord is the subset of a GeoLite2-City record the enricher needs.
type cityRecord struct {
	Country struct {
		IsoCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Location struct {
		Latitude  *float64 `maxminddb:"latitude"`
		Longitude *float64 `maxminddb:"longitude"`
		TimeZone  string   `maxminddb:"time_zone"`
	} `maxminddb:"location"`
}

// MaxMindProvider implements Provider using a MaxMind GeoLite2 City database.
type MaxMindProvider struct {
	reader *maxminddb.Reader
}

// NewMaxMindProvider opens the database at dbPath.
func NewMaxMindProvider(dbPath string) (*MaxMindProvider, error) {
	reader, err := maxminddb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}
	return &MaxMindProvider{reader: reader}, nil
}

// Lookup returns geo information for an IP address.
func (m *MaxMindProvider) Lookup(ip string) (*Info, error) {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidIP, ip)
	}

	var record cityRecord
	if err := m.reader.Lookup(parsedIP, &record); err != nil {
		return nil, fmt.Errorf("geoip lookup failed: %w", err)
	}
	if record.Location.Latitude == nil || record.Location.Longitude == nil {
		return nil, ErrNoLocation
	}

	return &Info{
		Country:     record.Country.Names["en"],
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
		Latitude:    *record.Location.Latitude,
		Longitude:   *record.Location.Longitude,
		Timezone:    record.Location.TimeZone,
	}, nil
}

// Close closes the GeoIP database.
func (m *MaxMindProvider) Close() error {
	if m.reader != nil {
		return m.reader.Close()
	}
	return nil
}
