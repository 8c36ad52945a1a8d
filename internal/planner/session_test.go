package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meal-order-assistant/internal/catering"
	"meal-order-assistant/internal/llm"
)

type mockClient struct {
	slots        []catering.Slot
	slotsErr     error
	menus        map[string][]catering.Dish
	menuErr      map[string]error
	menuCalls    int
	history      []catering.HistoricalOrder
	historyErr   error
	historyCalls int
	books        map[string]catering.AddressBook
	bookErr      map[string]error
	addrCalls    map[string]int
	placeErr     map[string]error
	placed       []catering.PlaceOrderRequest
	deleteErr    error
	deleted      []string
}

func (m *mockClient) FetchCalendar(_ context.Context, _, _ time.Time) ([]catering.Slot, error) {
	return m.slots, m.slotsErr
}

func (m *mockClient) FetchDishes(_ context.Context, channel, _ string) ([]catering.Dish, error) {
	m.menuCalls++
	if err := m.menuErr[channel]; err != nil {
		return nil, err
	}
	return m.menus[channel], nil
}

func (m *mockClient) FetchRestaurants(ctx context.Context, channel, targetTime string) ([]catering.Dish, error) {
	return m.FetchDishes(ctx, channel, targetTime)
}

func (m *mockClient) FetchAddresses(_ context.Context, namespace string) (catering.AddressBook, error) {
	if m.addrCalls == nil {
		m.addrCalls = make(map[string]int)
	}
	m.addrCalls[namespace]++
	if err := m.bookErr[namespace]; err != nil {
		return catering.AddressBook{}, err
	}
	return m.books[namespace], nil
}

func (m *mockClient) FetchOrderHistory(_ context.Context, _, _ time.Time) ([]catering.HistoricalOrder, error) {
	m.historyCalls++
	return m.history, m.historyErr
}

func (m *mockClient) PlaceOrder(_ context.Context, req catering.PlaceOrderRequest) (string, error) {
	if err := m.placeErr[req.DishID]; err != nil {
		return "", err
	}
	m.placed = append(m.placed, req)
	return "order-" + req.DishID, nil
}

func (m *mockClient) DeleteOrder(_ context.Context, orderID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, orderID)
	return nil
}

type mockGen struct {
	content string
	err     error
	calls   int
}

func (g *mockGen) GenerateContent(_ context.Context, _ string) (llm.ContentResponse, error) {
	g.calls++
	if g.err != nil {
		return llm.ContentResponse{}, g.err
	}
	return llm.ContentResponse{Content: g.content, Usage: llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5}}, nil
}

func mondaySlot(period catering.MealPeriod, status catering.SlotStatus) catering.Slot {
	return catering.Slot{Date: "2024-06-10", Period: period, Status: status, Channel: "ch-" + string(period), Namespace: "corpA"}
}

func TestSessionConfigNeeded(t *testing.T) {
	client := &mockClient{}
	session := NewSession(client, nil, Preferences{}, nil)

	state := session.Start(context.Background())
	assert.Equal(t, StateConfigNeeded, state)
	assert.Zero(t, client.menuCalls)
}

func TestSessionFullyPlanned(t *testing.T) {
	// Every slot is either ordered, closed, or breakfast: nothing to plan,
	// and no menu/history/generator call may happen.
	client := &mockClient{slots: []catering.Slot{
		mondaySlot(catering.PeriodBreakfast, catering.StatusOpen),
		mondaySlot(catering.PeriodLunch, catering.StatusOrdered),
		mondaySlot(catering.PeriodDinner, catering.StatusClosed),
	}}
	gen := &mockGen{content: "{}"}
	session := NewSession(client, gen, Preferences{}, nil)

	state := session.Start(context.Background())
	assert.Equal(t, StateFullyPlanned, state)
	assert.Zero(t, client.menuCalls)
	assert.Zero(t, client.historyCalls)
	assert.Zero(t, gen.calls)
}

func TestSessionCalendarFailureIsFatal(t *testing.T) {
	client := &mockClient{slotsErr: errors.New("upstream down")}
	session := NewSession(client, &mockGen{content: "{}"}, Preferences{}, nil)

	state := session.Start(context.Background())
	assert.Equal(t, StateFailed, state)
	assert.ErrorContains(t, session.Err(), "upstream down")
}

func TestSessionMenuFailuresDropSlots(t *testing.T) {
	lunch := mondaySlot(catering.PeriodLunch, catering.StatusOpen)
	dinner := mondaySlot(catering.PeriodDinner, catering.StatusOpen)
	client := &mockClient{
		slots:   []catering.Slot{lunch, dinner},
		menus:   map[string][]catering.Dish{lunch.Channel: {{ID: "55", Name: "Soup"}}},
		menuErr: map[string]error{dinner.Channel: errors.New("menu down")},
	}
	gen := &mockGen{content: `{"orders": [{"date": "2024-06-10", "period": "LUNCH", "dishId": 55, "reason": "ok"}]}`}
	session := NewSession(client, gen, Preferences{}, nil)

	state := session.Start(context.Background())
	require.Equal(t, StateReview, state)
	require.Len(t, session.Proposals(), 1)
	assert.Equal(t, "Soup", session.Proposals()[0].DishName)
}

func TestSessionAllMenusFailingIsFatal(t *testing.T) {
	lunch := mondaySlot(catering.PeriodLunch, catering.StatusOpen)
	client := &mockClient{
		slots:   []catering.Slot{lunch},
		menuErr: map[string]error{lunch.Channel: errors.New("menu down")},
	}
	session := NewSession(client, &mockGen{content: "{}"}, Preferences{}, nil)

	state := session.Start(context.Background())
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, session.Err(), ErrNoUsableMenus)
}

func TestSessionHistoryFailureIsNonFatal(t *testing.T) {
	lunch := mondaySlot(catering.PeriodLunch, catering.StatusOpen)
	client := &mockClient{
		slots:      []catering.Slot{lunch},
		menus:      map[string][]catering.Dish{lunch.Channel: {{ID: "55", Name: "Soup"}}},
		historyErr: errors.New("history down"),
	}
	gen := &mockGen{content: `{"orders": [{"date": "2024-06-10", "period": "LUNCH", "dishId": "55", "reason": "ok"}]}`}
	session := NewSession(client, gen, Preferences{}, nil)

	state := session.Start(context.Background())
	assert.Equal(t, StateReview, state)
	assert.Equal(t, 1, client.historyCalls)
}

func TestSessionZeroUsableProposalsIsFatal(t *testing.T) {
	lunch := mondaySlot(catering.PeriodLunch, catering.StatusOpen)
	client := &mockClient{
		slots: []catering.Slot{lunch},
		menus: map[string][]catering.Dish{lunch.Channel: {{ID: "55", Name: "Soup"}}},
	}
	// A proposal for a Saturday that was never eligible: discarded, leaving nothing.
	gen := &mockGen{content: `{"orders": [{"date": "2024-06-15", "period": "LUNCH", "dishId": "55", "reason": "nope"}]}`}
	session := NewSession(client, gen, Preferences{}, nil)

	state := session.Start(context.Background())
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, session.Err(), ErrNoUsablePlan)
	require.Len(t, session.Discarded(), 1)
}

func TestSessionReviewEditing(t *testing.T) {
	lunch := mondaySlot(catering.PeriodLunch, catering.StatusOpen)
	dinner := mondaySlot(catering.PeriodDinner, catering.StatusOpen)
	client := &mockClient{
		slots: []catering.Slot{lunch, dinner},
		menus: map[string][]catering.Dish{
			lunch.Channel:  {{ID: "55", Name: "Soup"}},
			dinner.Channel: {{ID: "7", Name: "Pasta"}},
		},
		books: map[string]catering.AddressBook{
			"corpA": {Addresses: []catering.Address{{ID: "a1", Name: "HQ"}}, DefaultID: "a1"},
		},
	}
	gen := &mockGen{content: `{"orders": [
		{"date": "2024-06-10", "period": "LUNCH", "dishId": "55", "reason": "light"},
		{"date": "2024-06-10", "period": "DINNER", "dishId": 7, "reason": "hearty"}
	]}`}
	session := NewSession(client, gen, Preferences{}, nil)

	require.Equal(t, StateReview, session.Start(context.Background()))
	require.Len(t, session.Proposals(), 2)

	require.NoError(t, session.RemoveProposal(0))
	require.Len(t, session.Proposals(), 1)
	assert.Error(t, session.RemoveProposal(5))

	results, err := session.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
	assert.Equal(t, StateCompleted, session.State())

	ok, failed := session.Summary()
	assert.Equal(t, 1, ok)
	assert.Zero(t, failed)
}

func TestSessionExecuteRequiresProposals(t *testing.T) {
	lunch := mondaySlot(catering.PeriodLunch, catering.StatusOpen)
	client := &mockClient{
		slots: []catering.Slot{lunch},
		menus: map[string][]catering.Dish{lunch.Channel: {{ID: "55", Name: "Soup"}}},
	}
	gen := &mockGen{content: `{"orders": [{"date": "2024-06-10", "period": "LUNCH", "dishId": "55", "reason": "ok"}]}`}
	session := NewSession(client, gen, Preferences{}, nil)

	require.Equal(t, StateReview, session.Start(context.Background()))
	require.NoError(t, session.RemoveProposal(0))

	_, err := session.Execute(context.Background())
	assert.ErrorIs(t, err, ErrEmptyPlan)
}

// reviewSession builds a session sitting in review with two proposals.
func reviewSession(t *testing.T) (*Session, *mockClient) {
	t.Helper()
	lunch := mondaySlot(catering.PeriodLunch, catering.StatusOpen)
	dinner := mondaySlot(catering.PeriodDinner, catering.StatusOpen)
	client := &mockClient{
		slots: []catering.Slot{lunch, dinner},
		menus: map[string][]catering.Dish{
			lunch.Channel:  {{ID: "55", Name: "Soup"}},
			dinner.Channel: {{ID: "7", Name: "Pasta"}},
		},
		books: map[string]catering.AddressBook{
			"corpA": {Addresses: []catering.Address{{ID: "a1", Name: "HQ"}}, DefaultID: "a1"},
		},
	}
	gen := &mockGen{content: `{"orders": [
		{"date": "2024-06-10", "period": "LUNCH", "dishId": "55", "reason": "light"},
		{"date": "2024-06-10", "period": "DINNER", "dishId": "7", "reason": "hearty"}
	]}`}
	session := NewSession(client, gen, Preferences{}, nil)
	require.Equal(t, StateReview, session.Start(context.Background()))
	return session, client
}

func TestSessionConcurrentConfirmRunsBatchOnce(t *testing.T) {
	// Two confirmations landing together (a double-tap, or a redelivered
	// webhook update) must run the batch exactly once.
	session, client := reviewSession(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = session.Execute(context.Background())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, client.placed, 2)
	assert.Equal(t, StateCompleted, session.State())
}

func TestSessionConcurrentRemoveAndConfirm(t *testing.T) {
	// A removal racing a confirmation either lands before the batch snapshot
	// (one order placed) or is rejected once execution has begun (two orders);
	// no proposal is ever submitted twice and no state is corrupted.
	session, client := reviewSession(t)

	var wg sync.WaitGroup
	var removeErr, execErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		removeErr = session.RemoveProposal(0)
	}()
	go func() {
		defer wg.Done()
		_, execErr = session.Execute(context.Background())
	}()
	wg.Wait()

	require.NoError(t, execErr)
	if removeErr == nil {
		assert.Len(t, client.placed, 1)
	} else {
		assert.Len(t, client.placed, 2)
	}
	assert.Equal(t, StateCompleted, session.State())
}

func TestSessionEmptyGeneratorPlanIsNoUsablePlan(t *testing.T) {
	lunch := mondaySlot(catering.PeriodLunch, catering.StatusOpen)
	client := &mockClient{
		slots: []catering.Slot{lunch},
		menus: map[string][]catering.Dish{lunch.Channel: {{ID: "55", Name: "Soup"}}},
	}
	session := NewSession(client, &mockGen{content: `{"orders": []}`}, Preferences{}, nil)

	state := session.Start(context.Background())
	assert.Equal(t, StateFailed, state)
	assert.ErrorIs(t, session.Err(), ErrNoUsablePlan)
}

func TestSessionCancel(t *testing.T) {
	session := NewSession(&mockClient{}, &mockGen{}, Preferences{}, nil)
	require.NoError(t, session.Cancel())
	assert.Equal(t, StateIdle, session.State())

	session.state = StateExecuting
	assert.ErrorIs(t, session.Cancel(), ErrBatchRunning)
}
