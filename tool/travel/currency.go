package travel

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/tool"
)

type currencyAPI struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type convertCurrencyArgs struct {
	Amount       float64 `json:"amount" description:"Amount to convert"`
	FromCurrency string  `json:"from_currency" description:"ISO 4217 source currency code, e.g. USD"`
	ToCurrency   string  `json:"to_currency" description:"ISO 4217 target currency code, e.g. EUR"`
}

// Conversion is the result of convert_currency.
type Conversion struct {
	Amount       float64 `json:"amount"`
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Rate         float64 `json:"rate"`
	Converted    float64 `json:"converted"`
}

type exchangeRateResponse struct {
	Result           string  `json:"result"`
	ErrorType        string  `json:"error-type"`
	ConversionRate   float64 `json:"conversion_rate"`
	ConversionResult float64 `json:"conversion_result"`
}

func (c *currencyAPI) convertCurrencyTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"convert_currency",
		"Convert an amount of money from one currency to another using current exchange rates.",
		convertCurrencyArgs{},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			var in convertCurrencyArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			from := strings.ToUpper(strings.TrimSpace(in.FromCurrency))
			to := strings.ToUpper(strings.TrimSpace(in.ToCurrency))

			if len(from) != 3 || len(to) != 3 {
				return nil, fmt.Errorf("currency codes must be three letters, got %q and %q", in.FromCurrency, in.ToCurrency)
			}

			url := fmt.Sprintf("%s/v6/%s/pair/%s/%s/%v", strings.TrimRight(c.baseURL, "/"), c.apiKey, from, to, in.Amount)

			var raw exchangeRateResponse
			if err := getJSON(tc.Context(), c.client, url, nil, &raw); err != nil {
				return nil, fmt.Errorf("exchangerate-api: %w", err)
			}

			if raw.Result != "success" {
				return nil, fmt.Errorf("exchangerate-api: %s", raw.ErrorType)
			}

			converted, err := roundCents(raw.ConversionResult)
			if err != nil {
				return nil, fmt.Errorf("exchangerate-api: %w", err)
			}

			return Conversion{
				Amount:       in.Amount,
				FromCurrency: from,
				ToCurrency:   to,
				Rate:         raw.ConversionRate,
				Converted:    converted,
			}, nil
		},
	)
}
