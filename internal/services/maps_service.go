package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	domain "github.com/machikado-app/api/internal/domain"
)

const (
	defaultMapsTimeout      = 10 * time.Second
	defaultMapsMaxRedirects = 10
	maxScrapeBodyBytes      = 256 << 10
)

// Coordinate URL shapes recognised by the extractor, tried in order. The
// place form is a stricter match of the generic @ form and wins when both
// would apply.
var (
	placeCoordsPattern = regexp.MustCompile(`/place/[^/]+/@(-?\d+(?:\.\d+)?),(-?\d+(?:\.\d+)?)`)
	atCoordsPattern    = regexp.MustCompile(`@(-?\d+(?:\.\d+)?),(-?\d+(?:\.\d+)?)`)
	queryCoordsPattern = regexp.MustCompile(`[?&]q=(-?\d+(?:\.\d+)?),(-?\d+(?:\.\d+)?)`)

	embeddedMapURLPattern = regexp.MustCompile(`https://(?:www\.|maps\.)?google\.[a-z.]+/maps[^\s"'<>\\]*`)
)

// MapsServiceDeps bundles collaborators required to construct a maps service.
type MapsServiceDeps struct {
	Client       *http.Client
	Timeout      time.Duration
	MaxRedirects int
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type mapsService struct {
	client *http.Client
	logger func(ctx context.Context, event string, fields map[string]any)
}

var _ MapsService = (*mapsService)(nil)

// NewMapsService assembles the map link expander. When no client is supplied
// one is built with the configured timeout and redirect cap.
func NewMapsService(deps MapsServiceDeps) (MapsService, error) {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	client := deps.Client
	if client == nil {
		timeout := deps.Timeout
		if timeout <= 0 {
			timeout = defaultMapsTimeout
		}
		maxRedirects := deps.MaxRedirects
		if maxRedirects <= 0 {
			maxRedirects = defaultMapsMaxRedirects
		}
		client = &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		}
	}

	return &mapsService{client: client, logger: logger}, nil
}

// ExpandMapURL resolves a possibly shortened map link and extracts its
// coordinates. It never returns an error: every failure is folded into the
// result so the HTTP surface can answer 200 regardless.
func (s *mapsService) ExpandMapURL(ctx context.Context, rawURL string) MapExpansion {
	trimmed := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return MapExpansion{Success: false, Error: "invalid url"}
	}

	// Long-form links already carry their coordinates.
	if coords := ExtractCoordinatesFromURL(trimmed); coords != nil {
		return MapExpansion{Success: true, ExpandedURL: trimmed, Coordinates: coords}
	}

	expanded, err := s.followRedirects(ctx, trimmed)
	if err == nil && expanded != trimmed {
		if coords := ExtractCoordinatesFromURL(expanded); coords != nil {
			return MapExpansion{Success: true, ExpandedURL: expanded, Coordinates: coords}
		}
	}
	if err != nil {
		s.logger(ctx, "map head expansion failed", map[string]any{"url": trimmed, "error": err.Error()})
	}

	expanded, coords, err := s.scrapeBody(ctx, trimmed)
	if err != nil {
		s.logger(ctx, "map scrape failed", map[string]any{"url": trimmed, "error": err.Error()})
		return MapExpansion{Success: false, Error: "unable to expand map url"}
	}
	return MapExpansion{Success: true, ExpandedURL: expanded, Coordinates: coords}
}

// followRedirects issues a HEAD request and reports the final URL after the
// client chased the redirect chain.
func (s *mapsService) followRedirects(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("head request answered %d", resp.StatusCode)
	}
	return resp.Request.URL.String(), nil
}

// scrapeBody fetches the page and hunts for an embedded long-form map URL,
// falling back to matching coordinates anywhere in the document.
func (s *mapsService) scrapeBody(ctx context.Context, rawURL string) (string, *domain.GeoPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return "", nil, fmt.Errorf("get request answered %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeBodyBytes))
	if err != nil {
		return "", nil, err
	}

	expanded := resp.Request.URL.String()
	if embedded := embeddedMapURLPattern.Find(body); embedded != nil {
		candidate := string(embedded)
		if coords := ExtractCoordinatesFromURL(candidate); coords != nil {
			return candidate, coords, nil
		}
		expanded = candidate
	}
	return expanded, ExtractCoordinatesFromURL(string(body)), nil
}

// ExtractCoordinatesFromURL pulls a latitude/longitude pair out of the known
// map URL shapes. Unrecognised shapes yield nil.
func ExtractCoordinatesFromURL(raw string) *domain.GeoPoint {
	for _, pattern := range []*regexp.Regexp{placeCoordsPattern, atCoordsPattern, queryCoordsPattern} {
		match := pattern.FindStringSubmatch(raw)
		if match == nil {
			continue
		}
		lat, latErr := strconv.ParseFloat(match[1], 64)
		lng, lngErr := strconv.ParseFloat(match[2], 64)
		if latErr != nil || lngErr != nil {
			continue
		}
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			continue
		}
		return &domain.GeoPoint{Latitude: lat, Longitude: lng}
	}
	return nil
}
