package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dial-a-ride/internal/models"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim server
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

const userAgent = "dial-a-ride/1.0"

// Result contains the result of a geocoding operation
type Result struct {
	Coords      models.Coordinates
	DisplayName string
}

// Geocoder provides address-to-coordinates conversion
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}

// ErrGeocodingFailed is returned when an address cannot be geocoded
type ErrGeocodingFailed struct {
	Address string
	Reason  string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NominatimGeocoder geocodes through the Nominatim search API. The public
// server allows one request per second.
type NominatimGeocoder struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	// Retries is the number of attempts GeocodeWithRetry makes
	Retries int
	// Backoff is the delay before the first retry, doubled for each later one
	Backoff time.Duration
}

// NewNominatimGeocoder creates a geocoder for baseURL issuing at most
// requestsPerSecond requests. A non-positive rate disables limiting.
func NewNominatimGeocoder(baseURL string, requestsPerSecond float64) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &NominatimGeocoder{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		Retries: 3,
		Backoff: time.Second,
	}
}

// Geocode returns the best match for address
func (g *NominatimGeocoder) Geocode(ctx context.Context, address string) (*Result, error) {
	results, err := g.search(ctx, address, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		log.Printf("[ERROR] No geocoding results found: address=%s", address)
		return nil, &ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}

	result := results[0]
	log.Printf("[GEOCODING] Response: address=%s lat=%.6f lng=%.6f display_name=%s", address, result.Coords.Lat, result.Coords.Lng, result.DisplayName)
	return &result, nil
}

// GeocodeWithRetry retries Geocode with exponential backoff
func (g *NominatimGeocoder) GeocodeWithRetry(ctx context.Context, address string) (*Result, error) {
	attempts := max(g.Retries, 1)
	var lastErr error

	for i := 0; i < attempts; i++ {
		result, err := g.Geocode(ctx, address)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if i < attempts-1 {
			backoff := g.Backoff << uint(i)
			log.Printf("[GEOCODING] Retry %d/%d: address=%s backoff=%v err=%v", i+1, attempts, address, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	log.Printf("[ERROR] Geocoding failed after %d attempts: address=%s err=%v", attempts, address, lastErr)
	return nil, lastErr
}

// Search returns up to limit matches for query
func (g *NominatimGeocoder) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	return g.search(ctx, query, limit)
}

func (g *NominatimGeocoder) search(ctx context.Context, query string, limit int) ([]Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	queryURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=%d", g.baseURL, url.QueryEscape(query), limit)
	log.Printf("[GEOCODING] Request: query=%s limit=%d", query, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] Geocoding API request failed: query=%s err=%v", query, err)
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("[ERROR] Geocoding API error: query=%s status=%d body=%s", query, resp.StatusCode, string(body))
		return nil, &ErrGeocodingFailed{
			Address: query,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var raw []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		log.Printf("[ERROR] Failed to decode geocoding response: query=%s err=%v", query, err)
		return nil, &ErrGeocodingFailed{Address: query, Reason: err.Error()}
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			log.Printf("[ERROR] Invalid latitude in geocoding response: query=%s lat=%s", query, r.Lat)
			continue
		}
		lng, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			log.Printf("[ERROR] Invalid longitude in geocoding response: query=%s lng=%s", query, r.Lon)
			continue
		}
		results = append(results, Result{
			Coords:      models.Coordinates{Lat: lat, Lng: lng},
			DisplayName: r.DisplayName,
		})
	}
	return results, nil
}
