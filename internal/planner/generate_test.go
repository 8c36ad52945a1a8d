package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-order-assistant/internal/catering"
)

func TestParsePlanResponse(t *testing.T) {
	t.Run("wrapped object", func(t *testing.T) {
		raws, err := parsePlanResponse(`{"orders": [{"date": "2024-06-10", "period": "LUNCH", "dishId": "55", "reason": "x"}]}`)
		require.NoError(t, err)
		require.Len(t, raws, 1)
		assert.Equal(t, "2024-06-10", raws[0].Date)
	})

	t.Run("bare array", func(t *testing.T) {
		raws, err := parsePlanResponse(`[{"date": "2024-06-10", "period": "LUNCH", "dishId": 55, "reason": "x"}]`)
		require.NoError(t, err)
		require.Len(t, raws, 1)
		assert.Equal(t, catering.DishID("55"), raws[0].DishID)
	})

	t.Run("markdown fences stripped", func(t *testing.T) {
		raws, err := parsePlanResponse("```json\n{\"orders\": [{\"date\": \"2024-06-10\", \"period\": \"LUNCH\", \"dishId\": \"55\"}]}\n```")
		require.NoError(t, err)
		require.Len(t, raws, 1)
	})

	t.Run("wrapped empty list is a valid empty plan", func(t *testing.T) {
		raws, err := parsePlanResponse(`{"orders": []}`)
		require.NoError(t, err)
		assert.Empty(t, raws)
	})

	t.Run("garbage errors", func(t *testing.T) {
		_, err := parsePlanResponse("I could not produce a plan, sorry!")
		assert.Error(t, err)
	})
}

func enrichedLunch() EnrichedSlot {
	return EnrichedSlot{
		Slot: catering.Slot{
			Date: "2024-06-10", Period: catering.PeriodLunch, Status: catering.StatusOpen,
			Channel: "ch1", Namespace: "corpA", AddressID: "a9",
		},
		Menu: []catering.Dish{{ID: "55", Name: "Soup", Price: 990}},
	}
}

func TestReconcile(t *testing.T) {
	t.Run("string id matches numeric menu id", func(t *testing.T) {
		enriched := []EnrichedSlot{enrichedLunch()}
		proposals, discarded := reconcile(enriched, []rawProposal{
			{Date: "2024-06-10", Period: "LUNCH", DishID: "55", Reason: "warm"},
		})
		require.Len(t, proposals, 1)
		assert.Empty(t, discarded)
		assert.Equal(t, "Soup", proposals[0].DishName)
		// namespace and address hints carried over from the slot
		assert.Equal(t, "corpA", proposals[0].Namespace)
		assert.Equal(t, "a9", proposals[0].AddressID)
	})

	t.Run("unknown slot is discarded not fatal", func(t *testing.T) {
		proposals, discarded := reconcile([]EnrichedSlot{enrichedLunch()}, []rawProposal{
			{Date: "2024-06-15", Period: "LUNCH", DishID: "55"},
			{Date: "2024-06-10", Period: "LUNCH", DishID: "55"},
		})
		require.Len(t, proposals, 1)
		require.Len(t, discarded, 1)
		assert.Equal(t, "no matching slot", discarded[0].Reason)
	})

	t.Run("hallucinated dish is discarded", func(t *testing.T) {
		proposals, discarded := reconcile([]EnrichedSlot{enrichedLunch()}, []rawProposal{
			{Date: "2024-06-10", Period: "LUNCH", DishID: "999"},
		})
		assert.Empty(t, proposals)
		require.Len(t, discarded, 1)
		assert.Equal(t, "dish not on the slot's menu", discarded[0].Reason)
	})

	t.Run("period matching is case insensitive", func(t *testing.T) {
		proposals, _ := reconcile([]EnrichedSlot{enrichedLunch()}, []rawProposal{
			{Date: "2024-06-10", Period: "lunch", DishID: "55"},
		})
		require.Len(t, proposals, 1)
	})
}

func TestBuildPlanPrompt(t *testing.T) {
	prompt, err := buildPlanPrompt(promptData{
		Slots: []EnrichedSlot{enrichedLunch()},
		History: []catering.HistoricalOrder{
			{Date: "2024-06-03", Period: catering.PeriodLunch, DishName: "Ramen"},
		},
		Prefs: Preferences{Exclusions: []string{"pork"}},
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "2024-06-10 LUNCH")
	assert.Contains(t, prompt, `id=55 "Soup"`)
	assert.Contains(t, prompt, "Ramen")
	assert.Contains(t, prompt, "pork")
}
