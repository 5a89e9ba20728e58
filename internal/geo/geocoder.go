package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotFound is returned when an address cannot be resolved to coordinates.
var ErrNotFound = errors.New("geocode: address not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Geocoder resolves a free-form location string to coordinates.
// Implementations must be safe for concurrent use.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

// Normalize collapses whitespace so equivalent address strings share a key.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Static resolves addresses from a fixed table (known bases, test fixtures).
type Static struct {
	mu     sync.RWMutex
	points map[string]Point
}

func NewStatic(points map[string]Point) *Static {
	m := make(map[string]Point, len(points))
	for k, v := range points {
		m[Normalize(k)] = v
	}
	return &Static{points: m}
}

func (s *Static) Add(address string, p Point) {
	s.mu.Lock()
	s.points[Normalize(address)] = p
	s.mu.Unlock()
}

func (s *Static) Geocode(_ context.Context, address string) (Point, error) {
	s.mu.RLock()
	p, ok := s.points[Normalize(address)]
	s.mu.RUnlock()
	if !ok {
		return Point{}, fmt.Errorf("%w: %q", ErrNotFound, address)
	}
	return p, nil
}

// HTTPGeocoder calls a Nominatim-compatible search endpoint. Calls are
// rate-limited because the upstream service is shared and throttled, and
// each call carries its own timeout so one slow lookup cannot stall a batch.
type HTTPGeocoder struct {
	client  *http.Client
	baseURL string
	country string
	limiter *rate.Limiter
	timeout time.Duration

	mu    sync.Mutex
	cache map[string]Point
}

func NewHTTPGeocoder(baseURL, countryHint string, rps float64, timeout time.Duration) *HTTPGeocoder {
	if rps <= 0 {
		rps = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGeocoder{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		country: countryHint,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
		cache:   map[string]Point{},
	}
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (g *HTTPGeocoder) Geocode(ctx context.Context, address string) (Point, error) {
	norm := Normalize(address)
	if norm == "" {
		return Point{}, fmt.Errorf("%w: empty address", ErrNotFound)
	}

	g.mu.Lock()
	if p, ok := g.cache[norm]; ok {
		g.mu.Unlock()
		return p, nil
	}
	g.mu.Unlock()

	if err := g.limiter.Wait(ctx); err != nil {
		return Point{}, fmt.Errorf("geocode %q: %w", norm, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	q := norm
	if g.country != "" && !strings.Contains(strings.ToLower(q), strings.ToLower(g.country)) {
		q = q + ", " + g.country
	}
	endpoint := g.baseURL + "/search?format=json&limit=1&q=" + url.QueryEscape(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Point{}, fmt.Errorf("geocode %q: %w", norm, err)
	}
	req.Header.Set("User-Agent", "medroute/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("geocode %q: %w", norm, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Point{}, fmt.Errorf("geocode %q: unexpected status %d", norm, resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Point{}, fmt.Errorf("geocode %q: decode response: %w", norm, err)
	}
	if len(results) == 0 {
		return Point{}, fmt.Errorf("%w: %q", ErrNotFound, norm)
	}

	lat, err1 := strconv.ParseFloat(results[0].Lat, 64)
	lon, err2 := strconv.ParseFloat(results[0].Lon, 64)
	if err1 != nil || err2 != nil {
		return Point{}, fmt.Errorf("geocode %q: invalid coordinates in response", norm)
	}

	p := Point{Lat: lat, Lon: lon}
	g.mu.Lock()
	g.cache[norm] = p
	g.mu.Unlock()
	return p, nil
}

// Chain tries each geocoder in order, returning the first hit. Known bases
// resolve from the static table without burning external quota.
type Chain []Geocoder

func (c Chain) Geocode(ctx context.Context, address string) (Point, error) {
	var lastErr error = ErrNotFound
	for _, g := range c {
		p, err := g.Geocode(ctx, address)
		if err == nil {
			return p, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Point{}, ctx.Err()
		}
	}
	return Point{}, lastErr
}
