package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dial-a-ride/internal/models"
)

// DefaultOSRMURL is the public OSRM demo server
const DefaultOSRMURL = "https://router.project-osrm.org"

// maxOSRMCoordinates is the maximum number of coordinates OSRM public API accepts
const maxOSRMCoordinates = 80

type osrmTableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"`
}

// OSRMRoutefinder queries the OSRM table service
type OSRMRoutefinder struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOSRMRoutefinder creates a client for baseURL issuing at most
// requestsPerSecond table requests
func NewOSRMRoutefinder(baseURL string, requestsPerSecond float64) *OSRMRoutefinder {
	if baseURL == "" {
		baseURL = DefaultOSRMURL
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &OSRMRoutefinder{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// DurationsFrom returns seconds from origin to each destination. Large
// destination lists are split so no request exceeds the coordinate limit.
func (c *OSRMRoutefinder) DurationsFrom(ctx context.Context, origin models.Coordinates, destinations []models.Coordinates) ([]float64, error) {
	results := make([]float64, 0, len(destinations))
	batch := maxOSRMCoordinates - 1
	requests := 0

	for lo := 0; lo < len(destinations); lo += batch {
		hi := min(lo+batch, len(destinations))
		durations, err := c.fetchTable(ctx, origin, destinations[lo:hi])
		if err != nil {
			return nil, err
		}
		results = append(results, durations...)
		requests++
	}

	if requests > 1 {
		log.Printf("[OSRM] Batched requests complete: origin=(%.6f,%.6f) destinations=%d requests=%d", origin.Lat, origin.Lng, len(destinations), requests)
	}
	return results, nil
}

func (c *OSRMRoutefinder) fetchTable(ctx context.Context, origin models.Coordinates, destinations []models.Coordinates) ([]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	coords := make([]string, 0, len(destinations)+1)
	coords = append(coords, fmt.Sprintf("%.6f,%.6f", origin.Lng, origin.Lat))
	dests := make([]string, len(destinations))
	for i, p := range destinations {
		coords = append(coords, fmt.Sprintf("%.6f,%.6f", p.Lng, p.Lat))
		dests[i] = strconv.Itoa(i + 1)
	}

	queryURL := fmt.Sprintf("%s/table/v1/driving/%s?annotations=duration&sources=0&destinations=%s",
		c.baseURL, strings.Join(coords, ";"), strings.Join(dests, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		log.Printf("[ERROR] Failed to create OSRM request: destinations=%d err=%v", len(destinations), err)
		return nil, &ErrRouteLookupFailed{Origin: origin, Reason: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[ERROR] OSRM API request failed: destinations=%d err=%v", len(destinations), err)
		return nil, &ErrRouteLookupFailed{Origin: origin, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("[ERROR] OSRM API error: destinations=%d status=%d body=%s", len(destinations), resp.StatusCode, string(body))
		return nil, &ErrRouteLookupFailed{
			Origin: origin,
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var osrmResp osrmTableResponse
	if err := json.NewDecoder(resp.Body).Decode(&osrmResp); err != nil {
		log.Printf("[ERROR] Failed to decode OSRM response: destinations=%d err=%v", len(destinations), err)
		return nil, &ErrRouteLookupFailed{Origin: origin, Reason: err.Error()}
	}

	if osrmResp.Code != "Ok" {
		log.Printf("[ERROR] OSRM returned error code: code=%s message=%s", osrmResp.Code, osrmResp.Message)
		return nil, &ErrRouteLookupFailed{Origin: origin, Reason: fmt.Sprintf("OSRM error: %s", osrmResp.Code)}
	}

	if len(osrmResp.Durations) != 1 || len(osrmResp.Durations[0]) != len(destinations) {
		return nil, &ErrRouteLookupFailed{Origin: origin, Reason: "unexpected table shape"}
	}

	durations := make([]float64, len(destinations))
	for i, d := range osrmResp.Durations[0] {
		if d == nil {
			return nil, &ErrRouteLookupFailed{
				Origin: origin,
				Reason: fmt.Sprintf("no route to (%.6f,%.6f)", destinations[i].Lat, destinations[i].Lng),
			}
		}
		durations[i] = *d
	}
	return durations, nil
}
