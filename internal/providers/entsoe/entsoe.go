package entsoe

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gridline/internal/model"
	"gridline/internal/providers"
	"gridline/internal/timeseries"
)

const (
	defaultBaseURL          = "https://web-api.tp.entsoe.eu/api"
	defaultTimeoutSeconds   = 30
	defaultUserAgent        = "gridline/0.1"
	defaultRateLimitPerSec  = 2
	defaultRateLimitBurst   = 2
	defaultMaxRetries       = 3
	defaultRetryWaitSeconds = 2
	defaultDocumentLimit    = 100
	defaultOffsetCap        = 4800

	periodTag = "Period"

	docDayAheadPrices  = "A44"
	docBalancingPrices = "A84"
	docCapacity        = "A68"
	docGeneration      = "A75"
)

var (
	ErrNoMatchingData   = errors.New("entsoe: no matching data")
	ErrTooManyRequested = errors.New("entsoe: requested data exceeds allowed limit")
	ErrUnauthorized     = errors.New("entsoe: invalid security token")
)

type Config struct {
	BaseURL         string
	SecurityToken   string
	Timeout         time.Duration
	UserAgent       string
	RateLimitPerSec int
	RateLimitBurst  int
	MaxRetries      int
	RetryWait       time.Duration
	DocumentLimit   int
	OffsetCap       int
	Logger          *slog.Logger
}

type Provider struct {
	config  Config
	client  *http.Client
	limiter *rateLimiter
	logger  *slog.Logger
}

func New() (*Provider, error) {
	return NewWithConfig(ConfigFromEnv())
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = defaultRateLimitPerSec
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWaitSeconds * time.Second
	}
	if cfg.DocumentLimit <= 0 {
		cfg.DocumentLimit = defaultDocumentLimit
	}
	if cfg.OffsetCap <= 0 {
		cfg.OffsetCap = defaultOffsetCap
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Provider{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: newRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
		logger:  cfg.Logger,
	}, nil
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL:         getenv("ENTSOE_BASE_URL", defaultBaseURL),
		SecurityToken:   strings.TrimSpace(os.Getenv("ENTSOE_SECURITY_TOKEN")),
		Timeout:         time.Duration(getenvInt("ENTSOE_TIMEOUT_SECONDS", defaultTimeoutSeconds)) * time.Second,
		UserAgent:       getenv("ENTSOE_USER_AGENT", defaultUserAgent),
		RateLimitPerSec: getenvInt("ENTSOE_RATE_LIMIT_PER_SEC", defaultRateLimitPerSec),
		RateLimitBurst:  getenvInt("ENTSOE_RATE_LIMIT_BURST", defaultRateLimitBurst),
		MaxRetries:      getenvInt("ENTSOE_MAX_RETRIES", defaultMaxRetries),
		RetryWait:       time.Duration(getenvInt("ENTSOE_RETRY_WAIT_SECONDS", defaultRetryWaitSeconds)) * time.Second,
		DocumentLimit:   getenvInt("ENTSOE_DOCUMENT_LIMIT", defaultDocumentLimit),
		OffsetCap:       getenvInt("ENTSOE_OFFSET_CAP", defaultOffsetCap),
	}
}

func (p *Provider) Name() string {
	return "entsoe"
}

// Close releases the rate limiter's refill goroutine.
func (p *Provider) Close() {
	p.limiter.Close()
}

func (p *Provider) ListAreas() []model.Area {
	return listAreas()
}

func (p *Provider) FetchSeries(ctx context.Context, areaCode string, kind model.Kind, start, end time.Time) ([]model.Sample, error) {
	switch kind {
	case model.KindDayAheadPrice:
		return p.FetchDayAheadPrices(ctx, areaCode, start, end)
	case model.KindBalancingPrice:
		return p.FetchActivatedBalancingPrices(ctx, areaCode, start, end)
	case model.KindCapacity:
		return p.FetchInstalledCapacity(ctx, areaCode, start, end)
	case model.KindGeneration:
		return p.FetchActualGeneration(ctx, areaCode, start, end)
	default:
		return nil, fmt.Errorf("entsoe: unknown kind %q", kind)
	}
}

// FetchDayAheadPrices queries day-ahead prices (document A44) for a bidding
// zone. The window is split into one-year blocks and each block is paged by
// document offset, the way the platform requires.
func (p *Provider) FetchDayAheadPrices(ctx context.Context, areaCode string, start, end time.Time) ([]model.Sample, error) {
	area, err := LookupArea(areaCode)
	if err != nil {
		return nil, err
	}

	samples := make([]model.Sample, 0)
	for _, block := range yearBlocks(start, end) {
		for offset := 0; offset <= p.config.OffsetCap; offset += p.config.DocumentLimit {
			params := url.Values{}
			params.Set("documentType", docDayAheadPrices)
			params.Set("in_Domain", area.EIC)
			params.Set("out_Domain", area.EIC)
			params.Set("contract_MarketAgreement.type", "A01")
			params.Set("offset", strconv.Itoa(offset))

			fetched, err := p.fetchBlock(ctx, params, block[0], block[1], "price.amount", area.Code, model.KindDayAheadPrice, "EUR/MWh")
			if err != nil {
				if errors.Is(err, ErrNoMatchingData) {
					break
				}
				return nil, err
			}
			samples = append(samples, fetched...)
			if len(fetched) == 0 {
				break
			}
		}
	}
	if len(samples) == 0 {
		return nil, ErrNoMatchingData
	}
	return samples, nil
}

// FetchActivatedBalancingPrices queries realised activated balancing energy
// prices (document A84) for a control area.
func (p *Provider) FetchActivatedBalancingPrices(ctx context.Context, areaCode string, start, end time.Time) ([]model.Sample, error) {
	area, err := LookupArea(areaCode)
	if err != nil {
		return nil, err
	}

	samples := make([]model.Sample, 0)
	for _, block := range yearBlocks(start, end) {
		params := url.Values{}
		params.Set("documentType", docBalancingPrices)
		params.Set("processType", "A16")
		params.Set("controlArea_Domain", area.EIC)

		fetched, err := p.fetchBlock(ctx, params, block[0], block[1], "activation_Price.amount", area.Code, model.KindBalancingPrice, "EUR/MWh")
		if err != nil {
			if errors.Is(err, ErrNoMatchingData) {
				continue
			}
			return nil, err
		}
		samples = append(samples, fetched...)
	}
	if len(samples) == 0 {
		return nil, ErrNoMatchingData
	}
	return samples, nil
}

// FetchInstalledCapacity queries installed capacity per production type
// (document A68, process A33).
func (p *Provider) FetchInstalledCapacity(ctx context.Context, areaCode string, start, end time.Time) ([]model.Sample, error) {
	return p.fetchQuantitySeries(ctx, areaCode, start, end, docCapacity, "A33", model.KindCapacity)
}

// FetchActualGeneration queries actual generation per production type
// (document A75, process A16).
func (p *Provider) FetchActualGeneration(ctx context.Context, areaCode string, start, end time.Time) ([]model.Sample, error) {
	return p.fetchQuantitySeries(ctx, areaCode, start, end, docGeneration, "A16", model.KindGeneration)
}

func (p *Provider) fetchQuantitySeries(ctx context.Context, areaCode string, start, end time.Time, documentType, processType string, kind model.Kind) ([]model.Sample, error) {
	area, err := LookupArea(areaCode)
	if err != nil {
		return nil, err
	}

	samples := make([]model.Sample, 0)
	for _, block := range yearBlocks(start, end) {
		params := url.Values{}
		params.Set("documentType", documentType)
		params.Set("processType", processType)
		params.Set("in_Domain", area.EIC)

		fetched, err := p.fetchBlock(ctx, params, block[0], block[1], "quantity", area.Code, kind, "MW")
		if err != nil {
			if errors.Is(err, ErrNoMatchingData) {
				continue
			}
			return nil, err
		}
		samples = append(samples, fetched...)
	}
	if len(samples) == 0 {
		return nil, ErrNoMatchingData
	}
	return samples, nil
}

// fetchBlock requests one time window and extracts its samples. When the
// platform rejects the window as too large, the window is halved and both
// halves fetched recursively.
func (p *Provider) fetchBlock(ctx context.Context, params url.Values, start, end time.Time, valueTag, areaCode string, kind model.Kind, unit string) ([]model.Sample, error) {
	body, err := p.doRequest(ctx, params, start, end)
	if err != nil {
		if errors.Is(err, ErrTooManyRequested) && end.Sub(start) > time.Hour {
			pivot := start.Add(end.Sub(start) / 2)
			p.logger.Debug("splitting window", "start", start, "pivot", pivot, "end", end)
			first, err := p.fetchBlock(ctx, params, start, pivot, valueTag, areaCode, kind, unit)
			if err != nil && !errors.Is(err, ErrNoMatchingData) {
				return nil, err
			}
			second, err := p.fetchBlock(ctx, params, pivot, end, valueTag, areaCode, kind, unit)
			if err != nil && !errors.Is(err, ErrNoMatchingData) {
				return nil, err
			}
			return append(first, second...), nil
		}
		return nil, err
	}

	rows, err := timeseries.Extract(string(body), valueTag, periodTag)
	if err != nil {
		return nil, fmt.Errorf("entsoe: parse response: %w", err)
	}
	return samplesFromRows(rows, p.Name(), areaCode, kind, unit), nil
}

func samplesFromRows(rows timeseries.Rows, provider, areaCode string, kind model.Kind, unit string) []model.Sample {
	samples := make([]model.Sample, 0)
	for _, resolution := range rows.Resolutions() {
		timestamps := rows.Timestamps(resolution)
		values := rows.Values(resolution)
		for i := range timestamps {
			samples = append(samples, model.Sample{
				Provider:   provider,
				Area:       areaCode,
				Kind:       kind,
				Resolution: resolution,
				Timestamp:  timestamps[i],
				Value:      values[i],
				Unit:       unit,
			})
		}
	}
	return samples
}

func (p *Provider) doRequest(ctx context.Context, params url.Values, start, end time.Time) ([]byte, error) {
	if strings.TrimSpace(p.config.SecurityToken) == "" {
		return nil, errors.New("entsoe: security token is required (ENTSOE_SECURITY_TOKEN)")
	}

	query := url.Values{}
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	query.Set("securityToken", p.config.SecurityToken)
	query.Set("periodStart", start.UTC().Format("200601021504"))
	query.Set("periodEnd", end.UTC().Format("200601021504"))

	uri := strings.TrimRight(p.config.BaseURL, "/") + "?" + query.Encode()

	attempts := p.config.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepWithContext(ctx, p.config.RetryWait); err != nil {
				return nil, err
			}
		}
		body, retryable, err := p.doRequestOnce(ctx, uri)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		p.logger.Debug("request retry", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (p *Provider) doRequestOnce(ctx context.Context, uri string) ([]byte, bool, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/xml")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		// transport-level failure, worth retrying
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("entsoe: rate limited (%s)", resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		if err := acknowledgementError(body); err != nil {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("entsoe: request failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}

	// the platform reports "no data" as a 200 acknowledgement document
	if err := acknowledgementError(body); err != nil {
		return nil, false, err
	}
	return body, false, nil
}

type acknowledgementDocument struct {
	XMLName xml.Name
	Reasons []struct {
		Code string `xml:"code"`
		Text string `xml:"text"`
	} `xml:"Reason"`
}

// acknowledgementError maps an Acknowledgement_MarketDocument body to a
// sentinel error, or returns nil for payload documents.
func acknowledgementError(body []byte) error {
	trimmed := strings.TrimSpace(string(body))
	if !strings.Contains(trimmed, "Acknowledgement_MarketDocument") {
		return nil
	}
	var ack acknowledgementDocument
	if err := xml.Unmarshal(body, &ack); err != nil {
		return fmt.Errorf("entsoe: malformed acknowledgement: %w", err)
	}
	for _, reason := range ack.Reasons {
		text := strings.ToLower(reason.Text)
		if strings.Contains(text, "no matching data") {
			return ErrNoMatchingData
		}
		if strings.Contains(text, "exceeds the allowed limit") || strings.Contains(text, "exceeds allowed") {
			return ErrTooManyRequested
		}
	}
	if len(ack.Reasons) > 0 {
		return fmt.Errorf("entsoe: request rejected (%s): %s", ack.Reasons[0].Code, ack.Reasons[0].Text)
	}
	return errors.New("entsoe: request rejected")
}

// yearBlocks splits [start, end) into blocks no longer than one calendar year.
func yearBlocks(start, end time.Time) [][2]time.Time {
	if !start.Before(end) {
		return [][2]time.Time{{start, end}}
	}
	blocks := make([][2]time.Time, 0)
	current := start
	for current.Before(end) {
		next := current.AddDate(1, 0, 0)
		if next.After(end) {
			next = end
		}
		blocks = append(blocks, [2]time.Time{current, next})
		current = next
	}
	return blocks
}

type rateLimiter struct {
	tokens chan struct{}
	stop   chan struct{}
	once   sync.Once
}

func newRateLimiter(ratePerSec, burst int) *rateLimiter {
	if ratePerSec <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := &rateLimiter{
		tokens: make(chan struct{}, burst),
		stop:   make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		limiter.tokens <- struct{}{}
	}

	interval := time.Second / time.Duration(ratePerSec)
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-limiter.stop:
				return
			case <-ticker.C:
				select {
				case limiter.tokens <- struct{}{}:
				default:
				}
			}
		}
	}()

	return limiter
}

func (l *rateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.tokens:
		return nil
	}
}

func (l *rateLimiter) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() { close(l.stop) })
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

var _ providers.Provider = (*Provider)(nil)
