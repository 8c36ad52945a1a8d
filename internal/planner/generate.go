package planner

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"meal-order-assistant/internal/catering"
	"meal-order-assistant/internal/llm"
)

//go:embed plan_prompt.md
var planPrompt string

var planTemplate = template.Must(template.New("plan").Parse(planPrompt))

type promptData struct {
	Slots   []EnrichedSlot
	History []catering.HistoricalOrder
	Prefs   Preferences
}

// rawProposal is one untrusted item from the generator's output.
type rawProposal struct {
	Date   string          `json:"date"`
	Period string          `json:"period"`
	DishID catering.DishID `json:"dishId"`
	Reason string          `json:"reason"`
}

// generate invokes the plan generator and reconciles its output against the
// enriched slots.
func (s *Session) generate(ctx context.Context) ([]Proposal, []Discarded, llm.CallMeta, error) {
	prompt, err := buildPlanPrompt(promptData{
		Slots:   s.enriched,
		History: s.history,
		Prefs:   s.prefs,
	})
	if err != nil {
		return nil, nil, llm.CallMeta{}, err
	}

	start := time.Now()
	resp, err := s.gen.GenerateContent(ctx, prompt)
	meta := llm.CallMeta{Usage: resp.Usage, Latency: time.Since(start)}
	if err != nil {
		return nil, nil, meta, err
	}

	raws, err := parsePlanResponse(resp.Content)
	if err != nil {
		return nil, nil, meta, fmt.Errorf("failed to parse plan: %w. Response: %s", err, resp.Content)
	}

	proposals, discarded := reconcile(s.enriched, raws)
	return proposals, discarded, meta, nil
}

func buildPlanPrompt(data promptData) (string, error) {
	var buf bytes.Buffer
	if err := planTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// parsePlanResponse decodes the generator's JSON, tolerating markdown code
// fences and either an {"orders": [...]} object or a bare array.
func parsePlanResponse(content string) ([]rawProposal, error) {
	content = stripCodeFences(content)

	// A decodable object is authoritative even when its list is empty: the
	// generator declining to plan anything is not a parse failure, and the
	// zero-proposal check downstream reports it accurately.
	var wrapped struct {
		Orders []rawProposal `json:"orders"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil {
		return wrapped.Orders, nil
	}

	var bare []rawProposal
	if err := json.Unmarshal([]byte(content), &bare); err != nil {
		return nil, err
	}
	return bare, nil
}

func stripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return content
	}
	lines = lines[1:]
	if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// reconcile validates generator output against the enriched slots. Each item
// must match a slot by (date, period) and a dish from that slot's menu by
// loose identifier equality; anything else is discarded with a reason, never
// aborting the batch.
func reconcile(enriched []EnrichedSlot, raws []rawProposal) ([]Proposal, []Discarded) {
	var proposals []Proposal
	var discarded []Discarded

	for _, raw := range raws {
		slot, ok := matchSlot(enriched, raw)
		if !ok {
			discarded = append(discarded, Discarded{
				Date: raw.Date, Period: raw.Period, DishID: string(raw.DishID),
				Reason: "no matching slot",
			})
			continue
		}

		dish, ok := matchDish(slot.Menu, string(raw.DishID))
		if !ok {
			discarded = append(discarded, Discarded{
				Date: raw.Date, Period: raw.Period, DishID: string(raw.DishID),
				Reason: "dish not on the slot's menu",
			})
			continue
		}

		proposals = append(proposals, Proposal{
			Date:      slot.Date,
			Period:    slot.Period,
			Channel:   slot.Channel,
			DishID:    string(dish.ID),
			DishName:  dish.Name,
			Price:     dish.Price,
			Reason:    raw.Reason,
			Namespace: slot.Namespace,
			AddressID: slot.AddressID,
		})
	}

	return proposals, discarded
}

func matchSlot(enriched []EnrichedSlot, raw rawProposal) (EnrichedSlot, bool) {
	period := catering.MealPeriod(strings.ToUpper(strings.TrimSpace(raw.Period)))
	date := strings.TrimSpace(raw.Date)
	for _, es := range enriched {
		if es.Date == date && es.Period == period {
			return es, true
		}
	}
	return EnrichedSlot{}, false
}

func matchDish(menu []catering.Dish, id string) (catering.Dish, bool) {
	for _, d := range menu {
		if d.ID.EqualsLoose(id) {
			return d, true
		}
	}
	return catering.Dish{}, false
}
