package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/karatcart/internal/cache"
	"github.com/example/karatcart/internal/logging"
	"github.com/example/karatcart/internal/models"
)

// MetalRatesCacheKey is the fixed cache key for the last good rate table.
const MetalRatesCacheKey = "metalRates"

// MetalRateService fetches per-gram metal prices from the external feed.
// It makes a single attempt per call; the cache is the only resilience.
type MetalRateService struct {
	endpoint   string
	httpClient *http.Client
	cache      cache.Store
	log        *zap.Logger
}

// NewMetalRateService constructs MetalRateService.
func NewMetalRateService(endpoint string, timeout time.Duration, store cache.Store, log *zap.Logger) *MetalRateService {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &MetalRateService{
		endpoint:   strings.TrimSpace(endpoint),
		httpClient: &http.Client{Timeout: timeout},
		cache:      store,
		log:        logging.OrNop(log).Named("metal_rates"),
	}
}

// FetchMetalRates returns live rates, else the cached table, else the
// hardcoded fallback. It never fails.
func (s *MetalRateService) FetchMetalRates(ctx context.Context) models.MetalRateTable {
	rates, err := s.fetchLive(ctx)
	if err == nil {
		s.store(ctx, rates)
		return rates
	}
	s.log.Warn("live metal rate fetch failed", zap.Error(err))

	if cached, ok := s.cached(ctx); ok {
		return cached
	}

	s.log.Warn("no cached metal rates, using fallback table")
	return models.FallbackRates()
}

func (s *MetalRateService) fetchLive(ctx context.Context) (models.MetalRateTable, error) {
	if s.endpoint == "" {
		return nil, errors.New("metal rates endpoint is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create metal rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute metal rates request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read metal rates response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("metal rates request failed: status %d, body: %s", resp.StatusCode, truncate(string(body), 256))
	}

	return parseRates(body)
}

func (s *MetalRateService) store(ctx context.Context, rates models.MetalRateTable) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(rates)
	if err != nil {
		s.log.Warn("marshal metal rates for cache", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, MetalRatesCacheKey, string(payload)); err != nil {
		s.log.Warn("write metal rates cache", zap.Error(err))
	}
}

func (s *MetalRateService) cached(ctx context.Context) (models.MetalRateTable, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, MetalRatesCacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn("read metal rates cache", zap.Error(err))
		}
		return nil, false
	}
	rates, err := parseRates([]byte(raw))
	if err != nil {
		s.log.Warn("cached metal rates are unreadable", zap.Error(err))
		return nil, false
	}
	return rates, true
}

// parseRates unwraps an optional "metals" envelope and keeps the numeric
// entries, keyed by lower-case metal name.
func parseRates(body []byte) (models.MetalRateTable, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("decode metal rates: %w", err)
	}

	fields := top
	if inner, ok := top["metals"]; ok {
		var metals map[string]json.RawMessage
		if err := json.Unmarshal(inner, &metals); err != nil {
			return nil, fmt.Errorf("decode metals envelope: %w", err)
		}
		fields = metals
	}

	rates := make(models.MetalRateTable, len(fields))
	for name, raw := range fields {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil || v < 0 {
			continue
		}
		rates[strings.ToLower(name)] = v
	}
	if len(rates) == 0 {
		return nil, errors.New("metal rates response has no numeric rates")
	}
	return rates, nil
}
