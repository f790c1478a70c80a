package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ridematch/scheduler/internal/common/logging"
	"github.com/ridematch/scheduler/internal/geo"
)

// HTTPProvider calls an external directions API (wire format per spec §6:
// ordered legs with distance in meters and duration in seconds, an encoded
// polyline per step, and a "OK"/other status string) over HTTP.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logging.Logger
}

// NewHTTPProvider returns an HTTPProvider bounded by timeout on every call
// (spec §5: 30s).
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration, logger *logging.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type directionsAPIResponse struct {
	Status string `json:"status"`
	Routes []struct {
		Legs []struct {
			Distance struct {
				Value float64 `json:"value"` // meters
			} `json:"distance"`
			Duration struct {
				Value float64 `json:"value"` // seconds
			} `json:"duration"`
			Steps []struct {
				Polyline struct {
					Points string `json:"points"`
				} `json:"polyline"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// GetRouteDetails requests directions across the full ordered waypoint list
// in a single call, using the first and last waypoints as origin/destination
// and everything in between as intermediate stops.
func (p *HTTPProvider) GetRouteDetails(ctx context.Context, waypoints []geo.Coordinate) (*Route, error) {
	if len(waypoints) < 2 {
		return &Route{}, nil
	}

	req, err := p.buildRequest(ctx, waypoints)
	if err != nil {
		return nil, fmt.Errorf("directions: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directions: request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed directionsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("directions: decode response: %w", err)
	}

	if parsed.Status != "OK" {
		return nil, fmt.Errorf("directions: provider status %q", parsed.Status)
	}
	if len(parsed.Routes) == 0 {
		return nil, fmt.Errorf("directions: provider returned no routes")
	}

	route := parsed.Routes[0]
	legs := make([]Leg, 0, len(route.Legs))
	var totalDistance, totalTime float64
	path := []geo.Coordinate{waypoints[0]}

	for i, leg := range route.Legs {
		distanceKM := leg.Distance.Value / 1000.0
		durationMinutes := leg.Duration.Value / 60.0
		polyline := ""
		if len(leg.Steps) > 0 {
			var sb strings.Builder
			for _, step := range leg.Steps {
				sb.WriteString(step.Polyline.Points)
			}
			polyline = sb.String()
		}

		legs = append(legs, Leg{
			DistanceKM:      distanceKM,
			DurationMinutes: durationMinutes,
			Polyline:        polyline,
		})
		totalDistance += distanceKM
		totalTime += durationMinutes

		if i+1 < len(waypoints) {
			path = append(path, waypoints[i+1])
		}
	}

	return &Route{
		Legs:          legs,
		TotalDistance: totalDistance,
		TotalTime:     totalTime,
		Path:          path,
	}, nil
}

func (p *HTTPProvider) buildRequest(ctx context.Context, waypoints []geo.Coordinate) (*http.Request, error) {
	q := url.Values{}
	q.Set("origin", formatWaypoint(waypoints[0]))
	q.Set("destination", formatWaypoint(waypoints[len(waypoints)-1]))
	if len(waypoints) > 2 {
		stops := make([]string, 0, len(waypoints)-2)
		for _, w := range waypoints[1 : len(waypoints)-1] {
			stops = append(stops, formatWaypoint(w))
		}
		q.Set("waypoints", strings.Join(stops, "|"))
	}
	q.Set("key", p.apiKey)

	full := p.baseURL + "?" + q.Encode()
	return http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
}

func formatWaypoint(c geo.Coordinate) string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lng)
}
