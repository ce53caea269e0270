package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/models"
	"github.com/example/ecoride/internal/observability"
)

// LiveSource asks a Google Directions compatible endpoint for alternative routes.
type LiveSource struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
	Client   *http.Client

	cache *Cache
	group singleflight.Group
}

func NewLiveSource(endpoint, apiKey string, timeout, cacheTTL time.Duration) *LiveSource {
	return &LiveSource{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Timeout:  timeout,
		Client:   &http.Client{Timeout: timeout},
		cache:    NewCache(cacheTTL),
	}
}

func (l *LiveSource) Name() string { return "live" }

type textValue struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Summary string `json:"summary"`
		Legs    []struct {
			Distance          textValue  `json:"distance"`
			Duration          textValue  `json:"duration"`
			DurationInTraffic *textValue `json:"duration_in_traffic"`
			StartLocation     latLng     `json:"start_location"`
			EndLocation       latLng     `json:"end_location"`
			Steps             []struct {
				StartLocation latLng `json:"start_location"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

// Candidates returns the provider's alternatives. Identical concurrent
// requests share one upstream call and answers are cached briefly.
func (l *LiveSource) Candidates(ctx context.Context, origin, dest models.Coord) ([]models.RouteCandidate, error) {
	if cached, ok := l.cache.Get(origin, dest); ok {
		return cached, nil
	}
	// The shared call outlives any single waiter; each waiter still honours its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := l.group.DoChan(keyFor(origin, dest), func() (any, error) {
		cands, err := l.fetch(shared, origin, dest)
		if err != nil {
			return nil, err
		}
		l.cache.Set(origin, dest, cands)
		return cands, nil
	})
	select {
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "routing.live", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneCandidates(res.Val.([]models.RouteCandidate)), nil
	}
}

func (l *LiveSource) fetch(ctx context.Context, origin, dest models.Coord) ([]models.RouteCandidate, error) {
	const op = "routing.live"
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("origin", fmtCoord(origin))
	q.Set("destination", fmtCoord(dest))
	q.Set("alternatives", "true")
	q.Set("departure_time", "now")
	q.Set("key", l.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, op, err)
	}

	start := time.Now()
	resp, err := l.Client.Do(req)
	observability.RouteProviderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		// the key travels in the query string; keep it out of the error text
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, apperr.New(apperr.KindUpstreamUnavailable, op, fmt.Sprintf("provider http status %d", resp.StatusCode))
	}

	var out directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, op, err)
	}
	if out.Status != "OK" {
		msg := out.ErrorMessage
		if msg == "" {
			msg = "provider status " + out.Status
		}
		return nil, apperr.New(apperr.KindUpstreamUnavailable, op, msg)
	}

	cands := make([]models.RouteCandidate, 0, len(out.Routes))
	for i, route := range out.Routes {
		if len(route.Legs) == 0 {
			continue
		}
		leg := route.Legs[0]

		traffic := 50.0
		// a zero traffic duration means the provider has no estimate
		if leg.DurationInTraffic != nil && leg.DurationInTraffic.Value > 0 && leg.Duration.Value > 0 {
			traffic = leg.DurationInTraffic.Value / leg.Duration.Value * 100
		}

		path := make([]models.Coord, 0, len(leg.Steps)+2)
		if len(leg.Steps) == 0 {
			path = append(path, models.Coord{Lat: leg.StartLocation.Lat, Lng: leg.StartLocation.Lng})
		}
		for _, st := range leg.Steps {
			path = append(path, models.Coord{Lat: st.StartLocation.Lat, Lng: st.StartLocation.Lng})
		}
		path = append(path, models.Coord{Lat: leg.EndLocation.Lat, Lng: leg.EndLocation.Lng})

		cands = append(cands, models.RouteCandidate{
			ID:           i,
			Summary:      route.Summary,
			Distance:     leg.Distance.Text,
			Duration:     leg.Duration.Text,
			DistanceKm:   leg.Distance.Value / 1000,
			DurationSec:  int(leg.Duration.Value),
			TrafficLevel: traffic,
			AQIAvg:       syntheticAQI(origin, dest, i),
			Path:         path,
		})
	}
	return cands, nil
}

// syntheticAQI stands in for pollution data the provider does not carry.
// It is stable for a given request and rises by 20 per alternative.
func syntheticAQI(origin, dest models.Coord, index int) float64 {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s|%d", keyFor(origin, dest), index)
	return float64(h.Sum32()%100) + 50 + float64(index*20)
}
