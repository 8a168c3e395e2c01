package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Nominatim is a Geocoder backed by the OSM Nominatim reverse endpoint.
// Zoom 15 gives settlement-level results; responses are requested in
// English to match the upstream dataset's conventions.
type Nominatim struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewNominatim creates a Nominatim client. An empty baseURL selects the
// public OSM instance; userAgent is required by the Nominatim usage policy.
func NewNominatim(baseURL, userAgent string, timeout time.Duration) *Nominatim {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Nominatim{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// nominatimResponse is the subset of the reverse response we consume.
type nominatimResponse struct {
	Error   string `json:"error"`
	Address struct {
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
		State       string `json:"state"`
		County      string `json:"county"`
		ISOLvl4     string `json:"ISO3166-2-lvl4"`
	} `json:"address"`
}

// Reverse looks up the place at lat/lon. Open water returns the
// "Unable to geocode" condition as an error; the caller treats any error
// as a missing annotation.
func (n *Nominatim) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("zoom", "15")
	q.Set("accept-language", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return Place{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("reverse geocoding: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("unexpected status code %d from geocoder", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Place{}, fmt.Errorf("decoding geocoder response: %w", err)
	}
	if body.Error != "" {
		return Place{}, fmt.Errorf("geocoder: %s", body.Error)
	}

	return Place{
		Country:     body.Address.Country,
		CountryCode: body.Address.CountryCode,
		Region:      body.Address.State,
		County:      body.Address.County,
		ISOCode:     body.Address.ISOLvl4,
	}, nil
}
