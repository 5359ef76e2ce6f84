// Package travel provides the trip-planning tool set exposed to the model:
// weather lookups, place search, currency conversion, budget arithmetic and
// page fetching.
package travel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/tool"
)

// Default endpoints of the upstream APIs.
const (
	DefaultOpenWeatherMapURL = "https://api.openweathermap.org"
	DefaultTavilyURL         = "https://api.tavily.com"
	DefaultExchangeRateURL   = "https://v6.exchangerate-api.com"
)

// Options configures the travel tool set. Tools whose API key is empty are
// not registered.
type Options struct {
	HTTPClient *http.Client

	OpenWeatherMapKey string
	OpenWeatherMapURL string

	TavilyKey string
	TavilyURL string

	ExchangeRateKey string
	ExchangeRateURL string

	// MaxPageBytes caps the body size read by fetch_page.
	MaxPageBytes int64
	// MaxPageChars caps the extracted text returned by fetch_page.
	MaxPageChars int
	// AllowPrivateNetworks lets fetch_page reach loopback, private and
	// link-local addresses. Off by default; the URL is chosen by the model.
	AllowPrivateNetworks bool
}

func defaultOptions() Options {
	return Options{
		HTTPClient:        &http.Client{Timeout: 15 * time.Second},
		OpenWeatherMapURL: DefaultOpenWeatherMapURL,
		TavilyURL:         DefaultTavilyURL,
		ExchangeRateURL:   DefaultExchangeRateURL,
		MaxPageBytes:      2 << 20,
		MaxPageChars:      8000,
	}
}

// Tools returns the configured travel tools. The arithmetic tools and
// fetch_page are always present.
func Tools(optFns ...func(o *Options)) []tool.Tool {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var tools []tool.Tool

	if opts.OpenWeatherMapKey != "" {
		w := &weatherAPI{client: opts.HTTPClient, baseURL: opts.OpenWeatherMapURL, apiKey: opts.OpenWeatherMapKey}
		tools = append(tools, w.currentWeatherTool(), w.forecastTool())
	}

	if opts.TavilyKey != "" {
		s := &placesAPI{client: opts.HTTPClient, baseURL: opts.TavilyURL, apiKey: opts.TavilyKey}
		tools = append(tools, s.searchPlacesTool())
	}

	if opts.ExchangeRateKey != "" {
		c := &currencyAPI{client: opts.HTTPClient, baseURL: opts.ExchangeRateURL, apiKey: opts.ExchangeRateKey}
		tools = append(tools, c.convertCurrencyTool())
	}

	tools = append(tools,
		hotelCostTool(),
		totalExpenseTool(),
		dailyBudgetTool(),
		newPageFetcher(opts).fetchPageTool(),
	)

	return tools
}

// NewRegistry builds the process-wide registry holding the travel tools.
func NewRegistry(logger logging.Logger, optFns ...func(o *Options)) (*tool.Registry, error) {
	return tool.NewRegistry(Tools(optFns...), func(o *tool.RegistryOptions) {
		if logger != nil {
			o.Logger = logger
		}
	})
}

// decodeArgs converts validated tool arguments into a typed struct.
func decodeArgs(args map[string]any, v any) error {
	b, err := json.Marshal(args)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, v)
}

// getJSON performs a GET and decodes a JSON body into v. Non-2xx responses
// are returned as errors including a snippet of the body.
func getJSON(ctx context.Context, client *http.Client, url string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}

	return doJSON(client, req, v)
}

// postJSON performs a POST with a JSON body and decodes the JSON answer into v.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, body, v any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(b)))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	for k, vals := range header {
		for _, val := range vals {
			req.Header.Add(k, val)
		}
	}

	return doJSON(client, req, v)
}

func doJSON(client *http.Client, req *http.Request, v any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// limit body to avoid huge transfers
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upstream status %d: %s", resp.StatusCode, snippet(string(body), 200))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}

	return nil
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}

// maxCentsPrecision is the magnitude above which float64 cannot represent
// cents; such amounts are returned unrounded.
const maxCentsPrecision = 1 << 52 / 100

// roundCents rounds an amount to cents. NaN and infinite amounts are errors.
func roundCents(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("amount out of range: %v", v)
	}

	if math.Abs(v) >= maxCentsPrecision {
		return v, nil
	}

	return math.Round(v*100) / 100, nil
}
