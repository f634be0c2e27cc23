package locate

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// cityLookup is the part of *geoip2.Reader GeoIPDB uses.
type cityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
	Close() error
}

// GeoIPDB resolves client addresses with a MaxMind City database. Its
// positions are city-level and always marked Approximate.
type GeoIPDB struct {
	reader cityLookup
}

// OpenGeoIP opens a GeoLite2/GeoIP2 City .mmdb file.
func OpenGeoIP(path string) (*GeoIPDB, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening geoip db: %w", err)
	}
	return &GeoIPDB{reader: reader}, nil
}

// Close releases the database.
func (db *GeoIPDB) Close() error {
	return db.reader.Close()
}

// For returns a geolocator for the given client address ("ip" or "ip:port").
func (db *GeoIPDB) For(addr string) Geolocator {
	return GeolocatorFunc(func(ctx context.Context) (Position, error) {
		ip := parseIP(addr)
		if ip == nil {
			return Position{}, fmt.Errorf("%w: bad address %q", ErrNoFix, addr)
		}
		rec, err := db.reader.City(ip)
		if err != nil {
			return Position{}, fmt.Errorf("%w: %v", ErrNoFix, err)
		}
		if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
			return Position{}, ErrNoFix
		}
		return Position{Lat: rec.Location.Latitude, Lon: rec.Location.Longitude, Approximate: true}, nil
	})
}

func parseIP(addr string) net.IP {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return net.ParseIP(addr)
}
