package hh

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/seu-repo/ai-maga/internal/domain"
	"github.com/seu-repo/ai-maga/internal/infrastructure/circuitbreaker"
)

const (
	DefaultBaseURL = "https://api.hh.ru"
	defaultPerPage = 10
	// Moscow.
	defaultArea = 1
)

// Config addresses the hh.ru API.
type Config struct {
	BaseURL     string `mapstructure:"base_url"`
	Token       string `mapstructure:"token"`
	DefaultArea int    `mapstructure:"default_area"`
	PerPage     int    `mapstructure:"per_page"`
	// UserAgent is mandatory for api.hh.ru, e.g. "ai-maga/1.0 (owner@example.com)".
	UserAgent string `mapstructure:"user_agent"`
}

// Well-known areas by stem, so inflected city names ("в Москве") resolve
// without a suggest round trip.
var knownAreas = []struct {
	stem string
	id   int
}{
	{"москв", 1},
	{"moscow", 1},
	{"петербург", 2},
	{"питер", 2},
	{"спб", 2},
	{"екатеринбург", 3},
	{"новосибирск", 4},
	{"казан", 88},
	{"нижн", 66},
	{"краснодар", 53},
}

var experience = map[string]string{
	"junior": "between1And3",
	"middle": "between1And3",
	"senior": "between3And6",
	"lead":   "moreThan6",
}

// Client searches vacancies on hh.ru and implements ports.JobSearcher.
type Client struct {
	cfg   Config
	http  *circuitbreaker.HTTPClient
	areas sync.Map
	log   *zap.Logger
}

// NewClient fills zero fields with defaults.
func NewClient(cfg Config, httpClient *circuitbreaker.HTTPClient, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DefaultArea <= 0 {
		cfg.DefaultArea = defaultArea
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ai-maga/1.0"
	}
	return &Client{cfg: cfg, http: httpClient, log: log}
}

type vacanciesResponse struct {
	Found int `json:"found"`
	Items []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Employer struct {
			Name string `json:"name"`
		} `json:"employer"`
		Area struct {
			Name string `json:"name"`
		} `json:"area"`
		Salary *struct {
			From     *int   `json:"from"`
			To       *int   `json:"to"`
			Currency string `json:"currency"`
		} `json:"salary"`
		AlternateURL string `json:"alternate_url"`
	} `json:"items"`
}

// SearchJobs returns the first page of vacancies matching q.
func (c *Client) SearchJobs(ctx context.Context, q domain.JobQuery) (*domain.JobSearchResult, error) {
	params := url.Values{
		"text":     {q.Text},
		"per_page": {strconv.Itoa(c.cfg.PerPage)},
		"order_by": {"relevance"},
	}

	if isRemote(q.Location) {
		params.Set("schedule", "remote")
	} else {
		params.Set("area", strconv.Itoa(c.area(ctx, q.Location)))
	}
	if q.SalaryMin > 0 {
		params.Set("salary", strconv.Itoa(q.SalaryMin))
		params.Set("only_with_salary", "true")
	} else if q.SalaryMax > 0 {
		params.Set("salary", strconv.Itoa(q.SalaryMax))
		params.Set("only_with_salary", "true")
	}
	if exp, ok := experience[q.Seniority]; ok {
		params.Set("experience", exp)
	}

	var resp vacanciesResponse
	if err := c.http.JSON(ctx, http.MethodGet, c.cfg.BaseURL+"/vacancies?"+params.Encode(), c.header(), nil, &resp); err != nil {
		return nil, err
	}

	result := &domain.JobSearchResult{
		Query:     q.Text,
		Found:     resp.Found,
		Vacancies: make([]domain.Vacancy, 0, len(resp.Items)),
	}
	for _, it := range resp.Items {
		v := domain.Vacancy{
			ID:       it.ID,
			Name:     it.Name,
			Employer: it.Employer.Name,
			Area:     it.Area.Name,
			URL:      it.AlternateURL,
		}
		if s := it.Salary; s != nil {
			if s.From != nil {
				v.SalaryMin = *s.From
			}
			if s.To != nil {
				v.SalaryMax = *s.To
			}
			v.Currency = s.Currency
		}
		if q.SalaryMax > 0 && q.SalaryMin > 0 && v.SalaryMin > q.SalaryMax {
			continue
		}
		result.Vacancies = append(result.Vacancies, v)
	}

	c.log.Info("Vacancies found",
		zap.String("query", q.Text),
		zap.String("location", q.Location),
		zap.Int("found", resp.Found),
		zap.Int("returned", len(result.Vacancies)),
	)
	return result, nil
}

func (c *Client) header() http.Header {
	h := http.Header{"User-Agent": {c.cfg.UserAgent}, "HH-User-Agent": {c.cfg.UserAgent}}
	if c.cfg.Token != "" {
		h.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return h
}

func isRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "удален") || strings.HasPrefix(l, "удалён") || l == "remote"
}

// area maps a free-form location to an hh.ru area id, falling back to the
// configured default when it cannot be resolved.
func (c *Client) area(ctx context.Context, location string) int {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return c.cfg.DefaultArea
	}
	for _, a := range knownAreas {
		if strings.HasPrefix(loc, a.stem) {
			return a.id
		}
	}
	if id, ok := c.areas.Load(loc); ok {
		return id.(int)
	}

	id, err := c.suggestArea(ctx, loc)
	if err != nil {
		c.log.Debug("Area lookup failed", zap.String("location", location), zap.Error(err))
		return c.cfg.DefaultArea
	}
	c.areas.Store(loc, id)
	return id
}

func (c *Client) suggestArea(ctx context.Context, loc string) (int, error) {
	// Inflected forms ("Томске") rarely match; drop a trailing case ending.
	stem := []rune(loc)
	if len(stem) > 4 {
		stem = stem[:len(stem)-1]
	}

	var resp struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	u := c.cfg.BaseURL + "/suggests/areas?" + url.Values{"text": {string(stem)}}.Encode()
	if err := c.http.JSON(ctx, http.MethodGet, u, c.header(), nil, &resp); err != nil {
		return 0, err
	}
	if len(resp.Items) == 0 {
		return 0, fmt.Errorf("no area matches %q", loc)
	}
	return strconv.Atoi(resp.Items[0].ID)
}
