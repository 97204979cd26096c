package geo

import (
	"context"
	"strings"
	"testing"

	"github.com/chowline/orderbot/internal/models"
)

func TestNewGoogleGeocoderWithoutKey(t *testing.T) {
	g, err := NewGoogleGeocoder()
	if err != nil {
		t.Fatalf("NewGoogleGeocoder without key failed: %v", err)
	}
	if g.IsAvailable(context.Background()) {
		t.Error("geocoder without API key reports available")
	}

	if _, err := g.ForwardGeocode(context.Background(), "Lekki Phase 1"); err == nil {
		t.Error("ForwardGeocode without client should error")
	}
	if _, err := g.ReverseGeocode(context.Background(), models.Coordinates{Latitude: 6.45, Longitude: 3.47}); err == nil {
		t.Error("ReverseGeocode without client should error")
	}
}

func TestMapsLink(t *testing.T) {
	link := MapsLink(models.Coordinates{Latitude: 6.4541, Longitude: 3.4712})
	if !strings.HasPrefix(link, "https://www.google.com/maps?q=") {
		t.Errorf("MapsLink has unexpected prefix: %s", link)
	}
	if !strings.Contains(link, "6.4541") || !strings.Contains(link, "3.4712") {
		t.Errorf("MapsLink missing coordinates: %s", link)
	}
}

func TestMapsLinkForAddress(t *testing.T) {
	link := MapsLinkForAddress("12 Riverside Close, Lekki")
	if !strings.HasPrefix(link, "https://www.google.com/maps/search/?api=1&query=") {
		t.Errorf("MapsLinkForAddress has unexpected prefix: %s", link)
	}
	if strings.Contains(link, " ") {
		t.Errorf("MapsLinkForAddress not URL-encoded: %s", link)
	}
}
