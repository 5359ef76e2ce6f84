package travel

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, optFns ...func(o *Options)) *tool.Registry {
	t.Helper()

	r, err := NewRegistry(logging.NoOpLogger{}, optFns...)
	require.NoError(t, err)

	return r
}

func call(t *testing.T, r *tool.Registry, name, args string) core.ToolResult {
	t.Helper()

	c := core.ToolCall{ID: "call_" + name, Name: name, Arguments: args}

	return r.Execute(core.NewToolContext(context.Background(), "inv", c, nil), c)
}

// asMap normalizes a tool output through JSON like a model would see it.
func asMap(t *testing.T, v any) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(core.Stringify(v)), &out))

	return out
}

func TestToolsRegisteredByKey(t *testing.T) {
	r := newRegistry(t)
	assert.Equal(t, []string{"calculate_daily_budget", "calculate_total_expense", "estimate_hotel_cost", "fetch_page"}, r.Names())

	r = newRegistry(t, func(o *Options) {
		o.OpenWeatherMapKey = "w"
		o.TavilyKey = "t"
		o.ExchangeRateKey = "x"
	})
	assert.Equal(t, 8, r.Len())

	for _, name := range []string{"get_current_weather", "get_weather_forecast", "search_places", "convert_currency"} {
		_, err := r.Resolve(name)
		assert.NoError(t, err, name)
	}
}

func TestCurrentWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "Lisbon", r.URL.Query().Get("q"))
		assert.Equal(t, "owm-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))

		_, _ = w.Write([]byte(`{"name":"Lisbon","weather":[{"main":"Clear","description":"clear sky"}],
			"main":{"temp":22.4,"feels_like":21.9,"humidity":55},"wind":{"speed":3.1}}`))
	}))
	defer srv.Close()

	r := newRegistry(t, func(o *Options) {
		o.OpenWeatherMapKey = "owm-key"
		o.OpenWeatherMapURL = srv.URL
	})

	res := call(t, r, "get_current_weather", `{"city":"Lisbon"}`)
	require.False(t, res.Failed(), res.Error)

	out := asMap(t, res.Output)
	assert.Equal(t, "clear sky", out["description"])
	assert.Equal(t, 22.4, out["temperature_c"])
	assert.Equal(t, 55.0, out["humidity"])
}

func TestCurrentWeatherUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	}))
	defer srv.Close()

	r := newRegistry(t, func(o *Options) {
		o.OpenWeatherMapKey = "k"
		o.OpenWeatherMapURL = srv.URL
	})

	res := call(t, r, "get_current_weather", `{"city":"Atlantis"}`)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "city not found")
}

func TestWeatherForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/forecast", r.URL.Path)
		_, _ = w.Write([]byte(`{"city":{"name":"Lisbon"},"list":[
			{"dt_txt":"2026-10-17 09:00:00","main":{"temp_min":15,"temp_max":18},"weather":[{"main":"Clouds","description":"few clouds"}]},
			{"dt_txt":"2026-10-17 15:00:00","main":{"temp_min":17,"temp_max":23},"weather":[{"main":"Rain","description":"light rain"}]},
			{"dt_txt":"2026-10-18 12:00:00","main":{"temp_min":16,"temp_max":20},"weather":[{"main":"Clear","description":"clear sky"}]}
		]}`))
	}))
	defer srv.Close()

	r := newRegistry(t, func(o *Options) {
		o.OpenWeatherMapKey = "k"
		o.OpenWeatherMapURL = srv.URL
	})

	res := call(t, r, "get_weather_forecast", `{"city":"Lisbon"}`)
	require.False(t, res.Failed(), res.Error)

	days, ok := res.Output.(map[string]any)["days"].([]ForecastDay)
	require.True(t, ok)
	require.Len(t, days, 2)
	assert.Equal(t, ForecastDay{Date: "2026-10-17", MinC: 15, MaxC: 23, Conditions: []string{"few clouds", "light rain"}, RainEntries: 1}, days[0])
	assert.Equal(t, "2026-10-18", days[1].Date)
}

func TestSearchPlaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tvly-key", r.Header.Get("Authorization"))

		var body tavilyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "best restaurants in Lisbon", body.Query)

		_, _ = w.Write([]byte(`{"results":[{"title":"Time Out Market","url":"https://example.com/tom","content":"Food hall","score":0.9}]}`))
	}))
	defer srv.Close()

	r := newRegistry(t, func(o *Options) {
		o.TavilyKey = "tvly-key"
		o.TavilyURL = srv.URL
	})

	res := call(t, r, "search_places", `{"place":"Lisbon","category":"restaurants"}`)
	require.False(t, res.Failed(), res.Error)

	results := res.Output.(map[string]any)["results"].([]PlaceResult)
	require.Len(t, results, 1)
	assert.Equal(t, "Time Out Market", results[0].Title)

	bad := call(t, r, "search_places", `{"place":"Lisbon","category":"nightlife"}`)
	assert.True(t, bad.Failed())
	assert.Contains(t, bad.Error, tool.CodeValidation)
}

func TestConvertCurrency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v6/fx-key/pair/USD/EUR/100":
			_, _ = w.Write([]byte(`{"result":"success","conversion_rate":0.9213,"conversion_result":92.134}`))
		default:
			_, _ = w.Write([]byte(`{"result":"error","error-type":"unsupported-code"}`))
		}
	}))
	defer srv.Close()

	r := newRegistry(t, func(o *Options) {
		o.ExchangeRateKey = "fx-key"
		o.ExchangeRateURL = srv.URL
	})

	res := call(t, r, "convert_currency", `{"amount":100,"from_currency":"usd","to_currency":"EUR"}`)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, Conversion{Amount: 100, FromCurrency: "USD", ToCurrency: "EUR", Rate: 0.9213, Converted: 92.13}, res.Output)

	res = call(t, r, "convert_currency", `{"amount":1,"from_currency":"USD","to_currency":"XXX"}`)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "unsupported-code")

	res = call(t, r, "convert_currency", `{"amount":1,"from_currency":"dollars","to_currency":"EUR"}`)
	assert.True(t, res.Failed())
}

func TestBudgetTools(t *testing.T) {
	r := newRegistry(t)

	res := call(t, r, "estimate_hotel_cost", `{"price_per_night":89.99,"nights":3}`)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, 269.97, res.Output.(map[string]any)["total_cost"])

	res = call(t, r, "calculate_total_expense", `{"costs":[269.97,120,45.5]}`)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, 435.47, res.Output.(map[string]any)["total_expense"])

	res = call(t, r, "calculate_daily_budget", `{"total":1000,"days":3}`)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, 333.33, res.Output.(map[string]any)["daily_budget"])

	res = call(t, r, "calculate_daily_budget", `{"total":1000,"days":0}`)
	assert.True(t, res.Failed())

	res = call(t, r, "estimate_hotel_cost", `{"price_per_night":80,"nights":2.5}`)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, tool.CodeValidation)

	res = call(t, r, "calculate_total_expense", `{"costs":[1,"two"]}`)
	assert.True(t, res.Failed())
}

func TestBudgetToolsLargeAmounts(t *testing.T) {
	r := newRegistry(t)

	res := call(t, r, "calculate_total_expense", `{"costs":[1e17,1e17]}`)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, 2e17, res.Output.(map[string]any)["total_expense"])

	res = call(t, r, "calculate_daily_budget", `{"total":1e300,"days":1}`)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, 1e300, res.Output.(map[string]any)["daily_budget"])

	res = call(t, r, "calculate_total_expense", `{"costs":[-0.005,-1e17]}`)
	require.False(t, res.Failed(), res.Error)
	assert.Equal(t, -1e17, res.Output.(map[string]any)["total_expense"])

	res = call(t, r, "estimate_hotel_cost", `{"price_per_night":1e308,"nights":10}`)
	assert.True(t, res.Failed())
	assert.Contains(t, res.Error, "out of range")

	res = call(t, r, "calculate_total_expense", `{"costs":[1.7e308,1.7e308]}`)
	assert.True(t, res.Failed())
}

func TestRoundCents(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{1.005, 1.0},
		{2.675, 2.68},
		{-2.675, -2.68},
		{333.3333, 333.33},
		{9.2e16, 9.2e16},
		{-9.3e16, -9.3e16},
	}

	for _, tt := range tests {
		got, err := roundCents(tt.in)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 0.011, "roundCents(%v)", tt.in)
	}

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := roundCents(v)
		assert.Error(t, err)
	}
}

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Belém Tower</title><style>body{}</style></head>
			<body><h1>Belém   Tower</h1><script>var x = 1;</script><p>Built in 1519.</p><p>Open daily.</p></body></html>`))
	}))
	defer srv.Close()

	r := newRegistry(t, func(o *Options) { o.AllowPrivateNetworks = true })

	res := call(t, r, "fetch_page", `{"url":"`+srv.URL+`"}`)
	require.False(t, res.Failed(), res.Error)

	page := res.Output.(Page)
	assert.Equal(t, "Belém Tower", page.Title)
	assert.Equal(t, "Belém Tower\nBuilt in 1519.\nOpen daily.", page.Text)
	assert.False(t, page.Truncated)

	res = call(t, r, "fetch_page", `{"url":"file:///etc/passwd"}`)
	assert.True(t, res.Failed())
}

func TestFetchPageRefusesNonPublicAddresses(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hit = true
		_, _ = w.Write([]byte("<p>internal admin page</p>"))
	}))
	defer srv.Close()

	r := newRegistry(t)

	for _, target := range []string{
		srv.URL + "/admin",
		"http://127.0.0.1:1/",
		"http://169.254.169.254/latest/meta-data/",
		"http://10.0.0.1/",
		"http://[::1]:1/",
		"http://localhost:1/",
	} {
		res := call(t, r, "fetch_page", `{"url":"`+target+`"}`)
		require.True(t, res.Failed(), target)
		assert.Contains(t, res.Error, "non-public address", target)
	}

	assert.False(t, hit, "request reached the loopback server")
}

func TestIsPublicAddr(t *testing.T) {
	tests := map[string]bool{
		"93.184.216.34":    true,
		"2606:4700::1111":  true,
		"127.0.0.1":        false,
		"10.1.2.3":         false,
		"172.16.0.1":       false,
		"192.168.1.1":      false,
		"169.254.169.254":  false,
		"100.64.0.1":       false,
		"0.0.0.0":          false,
		"::1":              false,
		"fe80::1":          false,
		"fd00::1":          false,
		"::ffff:127.0.0.1": false,
		"224.0.0.1":        false,
	}

	for ip, want := range tests {
		assert.Equal(t, want, isPublicAddr(netip.MustParseAddr(ip)), ip)
	}
}

func TestFetchPageTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<p>" + strings.Repeat("a", 100) + "</p>"))
	}))
	defer srv.Close()

	r := newRegistry(t, func(o *Options) {
		o.MaxPageChars = 10
		o.AllowPrivateNetworks = true
	})

	res := call(t, r, "fetch_page", `{"url":"`+srv.URL+`"}`)
	require.False(t, res.Failed(), res.Error)

	page := res.Output.(Page)
	assert.Len(t, page.Text, 10)
	assert.True(t, page.Truncated)
}
