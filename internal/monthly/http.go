package monthly

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/spendscope/internal/daywise"
)

// MonthPath is the analytics route serving one month of records.
const MonthPath = "/api/transactions/month"

// HTTPSource reads monthly records from an analytics backend.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
	Token   string
	// Limiter throttles outgoing requests when set.
	Limiter *rate.Limiter
}

// NewHTTPSource returns a source for baseURL allowing rps requests per second.
func NewHTTPSource(baseURL, token string, timeout time.Duration, rps float64) *HTTPSource {
	s := &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		Token:   token,
	}
	if rps > 0 {
		s.Limiter = rate.NewLimiter(rate.Limit(rps), 12)
	}
	return s
}

// MonthRecords implements Source.
func (s *HTTPSource) MonthRecords(ctx context.Context, year, month int) ([]daywise.MoneyRecord, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("monthly: wait: %w", err)
		}
	}

	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(month))
	endpoint := s.BaseURL + MonthPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("monthly: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monthly: get %d-%02d: %w", year, month, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("monthly: get %d-%02d: status %d: %s", year, month, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var recs []daywise.MoneyRecord
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("monthly: decode %d-%02d: %w", year, month, err)
	}
	if recs == nil {
		recs = []daywise.MoneyRecord{}
	}
	return recs, nil
}
