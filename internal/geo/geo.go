// Package geo wraps the Google Maps APIs for address resolution in orderbot.
//
// It provides forward geocoding (free-text place search to coordinates),
// reverse geocoding (coordinates to a formatted address), and shareable
// maps link construction. Callers must treat the service as best-effort:
// every lookup can fail and the address flow degrades to manual entry.
package geo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/chowline/orderbot/internal/models"
	"googlemaps.github.io/maps"
)

// DefaultRequestTimeout bounds a single Maps API call.
const DefaultRequestTimeout = 10 * time.Second

// Result is a resolved location: a formatted address plus its coordinates.
type Result struct {
	Address     string
	Coordinates models.Coordinates
}

// Geocoder resolves free-text locations and coordinates. Implementations
// must be safe for concurrent use.
type Geocoder interface {
	// ForwardGeocode resolves a free-text place description to its best
	// match. Returns nil when no match was found.
	ForwardGeocode(ctx context.Context, query string) (*Result, error)
	// ReverseGeocode resolves coordinates to a formatted address.
	// Returns an empty string when no address covers the point.
	ReverseGeocode(ctx context.Context, coords models.Coordinates) (string, error)
	// IsAvailable reports whether the geocoding service can currently be
	// offered to users. Checked each time the address options are shown.
	IsAvailable(ctx context.Context) bool
}

// Opts holds configuration options for the Google geocoder.
type Opts struct {
	APIKey  string
	Timeout time.Duration
}

// Option defines a configuration option for the Google geocoder.
type Option func(*Opts)

// WithAPIKey sets the Google Maps API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithRequestTimeout bounds individual Maps API calls.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// GoogleGeocoder implements Geocoder against the Google Maps Geocoding API.
type GoogleGeocoder struct {
	client  *maps.Client
	timeout time.Duration
}

// NewGoogleGeocoder creates a geocoder backed by the Google Maps API. When
// no API key is configured the geocoder is still returned but reports
// unavailable, so the address flow can fall back to manual entry without a
// nil check at every call site.
func NewGoogleGeocoder(opts ...Option) (*GoogleGeocoder, error) {
	cfg := Opts{Timeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewGoogleGeocoder invoked", "APIKey_set", cfg.APIKey != "", "timeout", cfg.Timeout)

	if cfg.APIKey == "" {
		slog.Warn("Google Maps API key not set; geocoding disabled, address flow will use manual entry only")
		return &GoogleGeocoder{timeout: cfg.Timeout}, nil
	}

	client, err := maps.NewClient(maps.WithAPIKey(cfg.APIKey))
	if err != nil {
		slog.Error("Failed to create Google Maps client", "error", err)
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}
	return &GoogleGeocoder{client: client, timeout: cfg.Timeout}, nil
}

// ForwardGeocode resolves a free-text place description to its best match.
func (g *GoogleGeocoder) ForwardGeocode(ctx context.Context, query string) (*Result, error) {
	if g.client == nil {
		return nil, fmt.Errorf("geocoding service not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{Address: query})
	if err != nil {
		slog.Error("Geocoder ForwardGeocode failed", "error", err, "query", query)
		return nil, fmt.Errorf("forward geocode failed: %w", err)
	}
	if len(results) == 0 {
		slog.Debug("Geocoder ForwardGeocode no results", "query", query)
		return nil, nil
	}

	best := results[0]
	result := &Result{
		Address: best.FormattedAddress,
		Coordinates: models.Coordinates{
			Latitude:  best.Geometry.Location.Lat,
			Longitude: best.Geometry.Location.Lng,
		},
	}
	slog.Debug("Geocoder ForwardGeocode succeeded", "query", query, "address", result.Address)
	return result, nil
}

// ReverseGeocode resolves coordinates to a formatted address.
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, coords models.Coordinates) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("geocoding service not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	results, err := g.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: coords.Latitude, Lng: coords.Longitude},
	})
	if err != nil {
		slog.Error("Geocoder ReverseGeocode failed", "error", err, "lat", coords.Latitude, "lon", coords.Longitude)
		return "", fmt.Errorf("reverse geocode failed: %w", err)
	}
	if len(results) == 0 {
		slog.Debug("Geocoder ReverseGeocode no results", "lat", coords.Latitude, "lon", coords.Longitude)
		return "", nil
	}
	slog.Debug("Geocoder ReverseGeocode succeeded", "address", results[0].FormattedAddress)
	return results[0].FormattedAddress, nil
}

// IsAvailable reports whether the Maps client is configured.
func (g *GoogleGeocoder) IsAvailable(ctx context.Context) bool {
	return g.client != nil
}

// MapsLink builds a shareable Google Maps link for coordinates.
func MapsLink(coords models.Coordinates) string {
	return fmt.Sprintf("https://www.google.com/maps?q=%f,%f", coords.Latitude, coords.Longitude)
}

// MapsLinkForAddress builds a shareable Google Maps search link for a
// free-text address.
func MapsLinkForAddress(address string) string {
	return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(address)
}
