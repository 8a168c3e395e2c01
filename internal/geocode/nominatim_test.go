package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNominatim_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("zoom"); got != "15" {
			t.Errorf("zoom = %q, want 15", got)
		}
		if got := r.URL.Query().Get("accept-language"); got != "en" {
			t.Errorf("accept-language = %q, want en", got)
		}
		if got := r.Header.Get("User-Agent"); got != "orbtrack-test" {
			t.Errorf("User-Agent = %q, want orbtrack-test", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"address": {
				"country": "United States",
				"country_code": "us",
				"state": "Texas",
				"county": "Travis County",
				"ISO3166-2-lvl4": "US-TX"
			}
		}`))
	}))
	defer srv.Close()

	g := NewNominatim(srv.URL, "orbtrack-test", time.Second)
	place, err := g.Reverse(context.Background(), 30.2672, -97.7431)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}

	if place.Country != "United States" || place.CountryCode != "us" {
		t.Errorf("country = %q/%q, want United States/us", place.Country, place.CountryCode)
	}
	if place.Region != "Texas" || place.County != "Travis County" || place.ISOCode != "US-TX" {
		t.Errorf("unexpected place: %+v", place)
	}
}

func TestNominatim_Reverse_OpenWater(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error": "Unable to geocode"}`))
	}))
	defer srv.Close()

	g := NewNominatim(srv.URL, "orbtrack-test", time.Second)
	if _, err := g.Reverse(context.Background(), 0, -160); err == nil {
		t.Fatal("want error for open-water coordinates")
	}
}

func TestNominatim_Reverse_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewNominatim(srv.URL, "orbtrack-test", time.Second)
	if _, err := g.Reverse(context.Background(), 1, 2); err == nil {
		t.Fatal("want error for 502 response")
	}
}
