package travel

import (
	"errors"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/tool"
)

type hotelCostArgs struct {
	PricePerNight float64 `json:"price_per_night" description:"Price of one night"`
	Nights        int     `json:"nights" description:"Number of nights"`
}

type totalExpenseArgs struct {
	Costs []float64 `json:"costs" description:"Individual costs to add up"`
}

type dailyBudgetArgs struct {
	Total float64 `json:"total" description:"Total trip budget"`
	Days  int     `json:"days" description:"Number of days"`
}

func hotelCostTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"estimate_hotel_cost",
		"Estimate the total hotel cost from the price per night and the number of nights.",
		hotelCostArgs{},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			var in hotelCostArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			if in.PricePerNight < 0 || in.Nights < 0 {
				return nil, errors.New("price_per_night and nights must not be negative")
			}

			total, err := roundCents(in.PricePerNight * float64(in.Nights))
			if err != nil {
				return nil, err
			}

			return map[string]any{"total_cost": total}, nil
		},
	)
}

func totalExpenseTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"calculate_total_expense",
		"Add up a list of costs into a total trip expense.",
		totalExpenseArgs{},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			var in totalExpenseArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			var total float64
			for _, c := range in.Costs {
				total += c
			}

			rounded, err := roundCents(total)
			if err != nil {
				return nil, err
			}

			return map[string]any{"total_expense": rounded, "items": len(in.Costs)}, nil
		},
	)
}

func dailyBudgetTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"calculate_daily_budget",
		"Split a total budget evenly across the number of trip days.",
		dailyBudgetArgs{},
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			var in dailyBudgetArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			if in.Days <= 0 {
				return nil, errors.New("days must be greater than zero")
			}

			daily, err := roundCents(in.Total / float64(in.Days))
			if err != nil {
				return nil, err
			}

			return map[string]any{"daily_budget": daily}, nil
		},
	)
}
