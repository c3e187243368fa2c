// Package fitbit reads intraday activity from the Fitbit Web API.
package fitbit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/utils"
)

// Resources fetched for every day
const (
	resourceSteps    = "steps"
	resourceHeart    = "heart"
	resourceDistance = "distance"

	detailLevel = "15min"
)

// APIError is a non-2xx answer from the API
type APIError struct {
	Resource string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fitbit %s: status %d: %s", e.Resource, e.Status, e.Body)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type intradayPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

type intradayResponse map[string]json.RawMessage

type intradaySeries struct {
	Dataset []intradayPoint `json:"dataset"`
}

// Intraday returns the 15 minute samples of one local day (YYYY-MM-DD).
// Sample times are converted from local wall clock to UTC. An expired access
// token yields an error wrapping domain.ErrCredentialExpired.
func (c *Client) Intraday(ctx context.Context, accessToken, localDay string) ([]domain.ActivitySample, error) {
	var steps, heart, distance []intradayPoint
	g, gctx := errgroup.WithContext(ctx)
	for resource, dst := range map[string]*[]intradayPoint{
		resourceSteps:    &steps,
		resourceHeart:    &heart,
		resourceDistance: &distance,
	} {
		resource, dst := resource, dst
		g.Go(func() error {
			points, err := c.fetch(gctx, accessToken, resource, localDay)
			if err != nil {
				return err
			}
			*dst = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	heartAt := indexByTime(heart)
	distanceAt := indexByTime(distance)

	samples := make([]domain.ActivitySample, 0, len(steps))
	for _, p := range steps {
		local, err := time.Parse("2006-01-02 15:04:05", localDay+" "+p.Time)
		if err != nil {
			return nil, fmt.Errorf("bad sample time %q: %w", p.Time, err)
		}
		s := domain.ActivitySample{
			Time:       utils.ToUTC(local),
			Steps:      int(p.Value),
			DistanceKm: distanceAt[p.Time],
		}
		if hr := int(heartAt[p.Time]); hr > 0 {
			s.HeartRate = &hr
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func (c *Client) fetch(ctx context.Context, accessToken, resource, localDay string) ([]intradayPoint, error) {
	url := fmt.Sprintf("%s/1/user/-/activities/%s/date/%s/1d/%s.json", c.baseURL, resource, localDay, detailLevel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fitbit %s: %w", resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("fitbit %s: read body: %w", resource, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if strings.Contains(string(body), "expired_token") {
			return nil, fmt.Errorf("fitbit %s: %w", resource, domain.ErrCredentialExpired)
		}
		return nil, &APIError{Resource: resource, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out intradayResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("fitbit %s: decode: %w", resource, err)
	}
	raw, ok := out["activities-"+resource+"-intraday"]
	if !ok {
		return nil, nil
	}
	var series intradaySeries
	if err := json.Unmarshal(raw, &series); err != nil {
		return nil, fmt.Errorf("fitbit %s: decode intraday: %w", resource, err)
	}
	return series.Dataset, nil
}

func indexByTime(points []intradayPoint) map[string]float64 {
	m := make(map[string]float64, len(points))
	for _, p := range points {
		m[p.Time] = p.Value
	}
	return m
}
