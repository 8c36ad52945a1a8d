package planner

import (
	"errors"
	"time"

	"meal-order-assistant/internal/catering"
)

// State is the lifecycle state of a planning session.
type State string

const (
	StateIdle         State = "IDLE"
	StateConfigNeeded State = "CONFIG_NEEDED"  // AI provider config incomplete
	StateFullyPlanned State = "FULLY_PLANNED"  // nothing left to plan; terminal, not an error
	StateReview       State = "REVIEW"         // proposals awaiting user approval
	StateExecuting    State = "EXECUTING"      // batch submission in flight; cancel disabled
	StateCompleted    State = "COMPLETED"      // batch finished, results available
	StateFailed       State = "FAILED"
)

var (
	// ErrNoUsableMenus means every eligible slot was dropped during enrichment.
	ErrNoUsableMenus = errors.New("no usable menus found")
	// ErrNoUsablePlan means the generator returned zero reconcilable proposals.
	ErrNoUsablePlan = errors.New("ai did not produce a usable plan")
	// ErrBatchRunning rejects cancellation while a batch is executing.
	ErrBatchRunning = errors.New("batch execution in progress")
	// ErrEmptyPlan blocks confirmation of an empty proposal list.
	ErrEmptyPlan = errors.New("no proposals to execute")
	// ErrSlotClosed rejects modifications past the slot's deadline.
	ErrSlotClosed = errors.New("slot is past its modification deadline")
	// ErrSlotLeftEmpty reports a replace whose delete succeeded but whose
	// subsequent place failed. The slot ends up with no order at all.
	ErrSlotLeftEmpty = errors.New("existing order removed but replacement failed; slot left empty")
)

// Preferences is the immutable per-session configuration. The only in-flow
// mutations are proposal removal and the learned preferred address name, both
// held in session state.
type Preferences struct {
	IncludeWeekends  bool
	IncludeBreakfast bool // honored by manual-path defaults only; batch planning never books breakfast
	PlanningMode     string
	Exclusions       []string
	VendorWeights    map[string]float64
	DefaultAddressID string
}

// EnrichedSlot is a slot with its fetched menu attached.
type EnrichedSlot struct {
	catering.Slot
	Menu []catering.Dish
}

// Proposal is one generator-produced (slot, dish) pairing pending approval.
// Namespace and address hints are carried forward from the slot.
type Proposal struct {
	Date      string
	Period    catering.MealPeriod
	Channel   string
	DishID    string
	DishName  string
	Price     int
	Reason    string
	Namespace string
	AddressID string
}

// Discarded records a generator item that failed reconciliation.
type Discarded struct {
	Date   string
	Period string
	DishID string
	Reason string
}

// ExecutionResult is the per-proposal outcome of batch execution.
type ExecutionResult struct {
	Date     string
	DishName string
	OK       bool
	Err      string
}

// historyWindow is the trailing range of past orders fed to the generator.
const historyWindow = 28 * 24 * time.Hour

// WeekRange returns the Monday and Sunday of the week containing now.
func WeekRange(now time.Time) (time.Time, time.Time) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0
	monday := day.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 6)
}

// EligibleSlots filters the calendar to the slots open for automated
// planning: never breakfast (booked manually only), weekends only when the
// preference allows, and only slots whose status is open or not-offered.
// Not-offered slots stay eligible because the upstream sometimes accepts a
// speculative order for them; whether that is intentional upstream behaviour
// is an open product question, so it is preserved here.
func EligibleSlots(slots []catering.Slot, prefs Preferences) []catering.Slot {
	var eligible []catering.Slot
	for _, s := range slots {
		if s.Period == catering.PeriodBreakfast {
			continue
		}
		if s.IsWeekend() && !prefs.IncludeWeekends {
			continue
		}
		if s.Status != catering.StatusOpen && s.Status != catering.StatusNotOffered {
			continue
		}
		eligible = append(eligible, s)
	}
	return eligible
}
