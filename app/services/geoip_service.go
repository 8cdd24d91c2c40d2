package services

// GeoIPService resolves a country code for an IP address. The static
// implementation stands in until a real GeoIP database is wired up.
type GeoIPService interface {
	CountryByIP(ip string) string
}

type staticGeoIPService struct {
	country string
}

// NewStaticGeoIPService returns a GeoIP service that answers every lookup
// with the given country code
func NewStaticGeoIPService(country string) GeoIPService {
	if country == "" {
		country = "US"
	}
	return &staticGeoIPService{country: country}
}

func (s *staticGeoIPService) CountryByIP(string) string {
	return s.country
}

// MockGeoIPService maps specific IPs to countries for tests
type MockGeoIPService struct {
	Countries map[string]string
	Default   string
}

func NewMockGeoIPService(defaultCountry string) *MockGeoIPService {
	return &MockGeoIPService{Countries: make(map[string]string), Default: defaultCountry}
}

func (m *MockGeoIPService) CountryByIP(ip string) string {
	if c, ok := m.Countries[ip]; ok {
		return c
	}
	return m.Default
}
