package travel

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/tool"
)

type weatherAPI struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type cityArgs struct {
	City string `json:"city" description:"City name, optionally with country code (e.g. Lisbon,PT)"`
}

// CurrentWeather is the summary returned by get_current_weather.
type CurrentWeather struct {
	City         string  `json:"city"`
	Description  string  `json:"description"`
	TemperatureC float64 `json:"temperature_c"`
	FeelsLikeC   float64 `json:"feels_like_c"`
	Humidity     int     `json:"humidity"`
	WindSpeedMS  float64 `json:"wind_speed_ms"`
}

// ForecastDay aggregates the three-hourly forecast entries of one date.
type ForecastDay struct {
	Date        string   `json:"date"`
	MinC        float64  `json:"min_c"`
	MaxC        float64  `json:"max_c"`
	Conditions  []string `json:"conditions"`
	RainEntries int      `json:"rain_entries"`
}

type owmCurrent struct {
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type owmForecast struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []struct {
		DtTxt string `json:"dt_txt"`
		Main  struct {
			TempMin float64 `json:"temp_min"`
			TempMax float64 `json:"temp_max"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"list"`
}

func (w *weatherAPI) endpoint(path, city string) string {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", w.apiKey)
	q.Set("units", "metric")

	return strings.TrimRight(w.baseURL, "/") + path + "?" + q.Encode()
}

func (w *weatherAPI) currentWeatherTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"get_current_weather",
		"Get the current weather for a city (temperature in Celsius, conditions, humidity, wind).",
		cityArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			var in cityArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			var raw owmCurrent
			if err := getJSON(tc.Context(), w.client, w.endpoint("/data/2.5/weather", in.City), nil, &raw); err != nil {
				return nil, fmt.Errorf("openweathermap: %w", err)
			}

			out := CurrentWeather{
				City:         raw.Name,
				TemperatureC: raw.Main.Temp,
				FeelsLikeC:   raw.Main.FeelsLike,
				Humidity:     raw.Main.Humidity,
				WindSpeedMS:  raw.Wind.Speed,
			}
			if len(raw.Weather) > 0 {
				out.Description = raw.Weather[0].Description
			}

			return out, nil
		},
	)
}

func (w *weatherAPI) forecastTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"get_weather_forecast",
		"Get a day-by-day weather forecast (up to five days) for a city.",
		cityArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			var in cityArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			var raw owmForecast
			if err := getJSON(tc.Context(), w.client, w.endpoint("/data/2.5/forecast", in.City), nil, &raw); err != nil {
				return nil, fmt.Errorf("openweathermap: %w", err)
			}

			return map[string]any{"city": raw.City.Name, "days": aggregateForecast(raw)}, nil
		},
	)
}

// aggregateForecast folds three-hourly entries into per-day summaries.
func aggregateForecast(raw owmForecast) []ForecastDay {
	byDate := map[string]*ForecastDay{}

	for _, e := range raw.List {
		date, _, _ := strings.Cut(e.DtTxt, " ")
		if date == "" {
			continue
		}

		day, ok := byDate[date]
		if !ok {
			day = &ForecastDay{Date: date, MinC: e.Main.TempMin, MaxC: e.Main.TempMax}
			byDate[date] = day
		}

		if e.Main.TempMin < day.MinC {
			day.MinC = e.Main.TempMin
		}

		if e.Main.TempMax > day.MaxC {
			day.MaxC = e.Main.TempMax
		}

		for _, cond := range e.Weather {
			if cond.Main == "Rain" {
				day.RainEntries++
			}

			if !contains(day.Conditions, cond.Description) {
				day.Conditions = append(day.Conditions, cond.Description)
			}
		}
	}

	days := make([]ForecastDay, 0, len(byDate))
	for _, d := range byDate {
		days = append(days, *d)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })

	return days
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
