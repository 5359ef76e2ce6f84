package travel

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/tool"
)

// Place categories accepted by search_places.
var placeCategories = []string{"attractions", "restaurants", "activities", "transportation"}

type placesAPI struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type searchPlacesArgs struct {
	Place    string `json:"place" description:"City or region to search in"`
	Category string `json:"category" description:"Kind of places to look for" enum:"attractions,restaurants,activities,transportation"`
}

// PlaceResult is one search hit.
type PlaceResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (p *placesAPI) searchPlacesTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"search_places",
		"Search the web for attractions, restaurants, activities or transportation options in a place.",
		searchPlacesArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			var in searchPlacesArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			req := tavilyRequest{
				Query:       placesQuery(in.Place, in.Category),
				SearchDepth: "basic",
				MaxResults:  5,
			}

			header := http.Header{}
			header.Set("Authorization", "Bearer "+p.apiKey)

			var raw tavilyResponse
			if err := postJSON(tc.Context(), p.client, strings.TrimRight(p.baseURL, "/")+"/search", header, req, &raw); err != nil {
				return nil, fmt.Errorf("tavily: %w", err)
			}

			out := make([]PlaceResult, 0, len(raw.Results))
			for _, r := range raw.Results {
				out = append(out, PlaceResult{Title: r.Title, URL: r.URL, Snippet: snippet(r.Content, 300)})
			}

			return map[string]any{"place": in.Place, "category": in.Category, "results": out}, nil
		},
	)
}

func placesQuery(place, category string) string {
	switch category {
	case "attractions":
		return fmt.Sprintf("top tourist attractions in %s", place)
	case "restaurants":
		return fmt.Sprintf("best restaurants in %s", place)
	case "activities":
		return fmt.Sprintf("things to do and activities in %s", place)
	case "transportation":
		return fmt.Sprintf("public transportation options in %s", place)
	default:
		return fmt.Sprintf("%s in %s", category, place)
	}
}
