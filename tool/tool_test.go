package tool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------------------- FunctionTool Tests --------------------

func newToolContext(name string) *core.ToolContext {
	return core.NewToolContext(context.Background(), "inv-1", core.ToolCall{ID: "fc1", Name: name}, logging.NoOpLogger{})
}

func hotelTool() *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"price_per_night": map[string]any{"type": "number"},
			"nights":          map[string]any{"type": "integer"},
		},
		"required": []string{"price_per_night", "nights"},
	}

	return NewFunctionTool("estimate_hotel_cost", "Estimate hotel cost", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["price_per_night"].(float64) * args["nights"].(float64), nil
	})
}

func TestFunctionTool_Success(t *testing.T) {
	result, err := hotelTool().Call(newToolContext("estimate_hotel_cost"), map[string]any{"price_per_night": 80.0, "nights": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 240.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	_, err := hotelTool().Call(newToolContext("estimate_hotel_cost"), map[string]any{"price_per_night": 80.0})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "nights", vErr.Field)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	boom := errors.New("boom")
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, boom
	})

	_, err := execTool.Call(newToolContext("fail"), map[string]any{})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.ErrorIs(t, err, boom)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("custom", "quota exhausted", "QUOTA")
	ft := NewFunctionTool("custom", "Custom", map[string]any{"type": "object"}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, custom
	})

	_, err := ft.Call(newToolContext("custom"), map[string]any{})
	assert.Same(t, custom, err)
}

type budgetArgs struct {
	Total float64 `json:"total" description:"Total budget"`
	Days  int     `json:"days" description:"Days"`
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	ft := NewFunctionToolFromStruct("calculate_daily_budget", "Daily budget", budgetArgs{}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["total"].(float64) / args["days"].(float64), nil
	})

	assert.ElementsMatch(t, []string{"total", "days"}, ft.Parameters()["required"])

	out, err := ft.Call(newToolContext(ft.Name()), map[string]any{"total": 1000.0, "days": 4.0})
	require.NoError(t, err)
	assert.Equal(t, 250.0, out)
}

// -------------------- Registry Tests --------------------

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r, err := NewRegistry([]Tool{hotelTool()})
	require.NoError(t, err)

	got, err := r.Resolve("estimate_hotel_cost")
	require.NoError(t, err)
	assert.Equal(t, "estimate_hotel_cost", got.Name())

	_, err = r.Resolve("book_flight")
	assert.ErrorIs(t, err, core.ErrToolNotFound)

	assert.Error(t, r.Register(hotelTool()), "duplicate names are rejected")
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"estimate_hotel_cost"}, r.Names())

	defs := r.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "Estimate hotel cost", defs[0].Function.Description)
}

func TestRegistry_ExecuteFailuresBecomeResults(t *testing.T) {
	panicky := NewFunctionTool("panicky", "Panics", map[string]any{"type": "object"}, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		panic("kaboom")
	})

	r, err := NewRegistry([]Tool{hotelTool(), panicky})
	require.NoError(t, err)

	tests := []struct {
		name string
		call core.ToolCall
		code string
	}{
		{"unknown tool", core.ToolCall{ID: "1", Name: "book_flight", Arguments: `{}`}, CodeNotFound},
		{"bad json", core.ToolCall{ID: "2", Name: "estimate_hotel_cost", Arguments: `{nope`}, CodeInvalidArguments},
		{"schema", core.ToolCall{ID: "3", Name: "estimate_hotel_cost", Arguments: `{"price_per_night":"cheap","nights":2}`}, CodeValidation},
		{"panic", core.ToolCall{ID: "4", Name: "panicky", Arguments: ``}, CodePanic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Execute(newToolContext(tt.call.Name), tt.call)
			assert.True(t, res.Failed())
			assert.Equal(t, tt.call.ID, res.CallID)
			assert.Contains(t, res.Error, tt.code)
		})
	}

	ok := r.Execute(newToolContext("estimate_hotel_cost"), core.ToolCall{ID: "5", Name: "estimate_hotel_cost", Arguments: `{"price_per_night":100,"nights":2}`})
	assert.False(t, ok.Failed())
	assert.Equal(t, 200.0, ok.Output)
}

// -------------------- Executor Tests --------------------

func TestExecutor_PreservesOrderAndBoundsParallelism(t *testing.T) {
	var inFlight, peak int32

	slow := NewFunctionTool("slow", "Slow echo", map[string]any{
		"type":       "object",
		"properties": map[string]any{"n": map[string]any{"type": "number"}},
	}, func(_ *core.ToolContext, args map[string]any) (any, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)

		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}

		// Later calls finish first.
		time.Sleep(time.Duration(10-int(args["n"].(float64))) * time.Millisecond)

		return args["n"], nil
	})

	r, err := NewRegistry([]Tool{slow})
	require.NoError(t, err)

	calls := make([]core.ToolCall, 6)
	for i := range calls {
		calls[i] = core.ToolCall{ID: string(rune('a' + i)), Name: "slow", Arguments: `{"n":` + string(rune('0'+i)) + `}`}
	}

	exec := NewExecutor(r, func(o *ExecutorOptions) { o.MaxParallel = 2 })
	results := exec.Execute(core.WithInvocationID(context.Background(), "inv"), calls)

	require.Len(t, results, len(calls))
	for i, res := range results {
		assert.Equal(t, calls[i].ID, res.CallID)
		assert.Equal(t, float64(i), res.Output)
	}

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestExecutor_CanceledContext(t *testing.T) {
	r, err := NewRegistry([]Tool{hotelTool()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewExecutor(r).Execute(ctx, []core.ToolCall{
		{ID: "1", Name: "estimate_hotel_cost", Arguments: `{"price_per_night":1,"nights":1}`},
		{ID: "2", Name: "estimate_hotel_cost", Arguments: `{"price_per_night":1,"nights":1}`},
	})

	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Failed())
	}
}

func TestExecutor_Empty(t *testing.T) {
	r, err := NewRegistry(nil)
	require.NoError(t, err)
	assert.Empty(t, NewExecutor(r).Execute(context.Background(), nil))
}
