package planner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"meal-order-assistant/internal/catering"
)

// defaultNamespaceKey caches address lookups for proposals without a
// namespace under an explicit key.
const defaultNamespaceKey = "default"

// batchExecutor submits an approved proposal list strictly sequentially.
// The address cache is private to one run: identifiers are never reused
// across namespaces without a per-namespace lookup, and a namespace whose
// fetch fails is cached as empty rather than retried within the batch.
type batchExecutor struct {
	client catering.Client
	log    *zap.Logger
	note   func(format string, args ...any)

	books         map[string]*catering.AddressBook // nil entry: fetch failed or no addresses
	preferredName string
}

func newBatchExecutor(client catering.Client, log *zap.Logger, note func(string, ...any)) *batchExecutor {
	return &batchExecutor{
		client: client,
		log:    log,
		note:   note,
		books:  make(map[string]*catering.AddressBook),
	}
}

func nsKey(namespace string) string {
	if namespace == "" {
		return defaultNamespaceKey
	}
	return namespace
}

// addressBook returns the cached address list for a namespace, fetching it
// lazily on first use.
func (e *batchExecutor) addressBook(ctx context.Context, namespace string) *catering.AddressBook {
	key := nsKey(namespace)
	if book, ok := e.books[key]; ok {
		return book
	}
	book, err := e.client.FetchAddresses(ctx, namespace)
	if err != nil {
		e.log.Warn("address fetch failed, marking namespace empty",
			zap.String("namespace", key), zap.Error(err))
		e.books[key] = nil
		return nil
	}
	e.books[key] = &book
	return &book
}

// seedPreferredName captures the session-wide preferred address display name.
// The configured default address is looked up once through a representative
// namespace; failing that, any slot already carrying an address teaches the
// name. Display names are the portable signal because identifiers differ
// across namespaces.
func (e *batchExecutor) seedPreferredName(ctx context.Context, defaultAddressID string, proposals []Proposal, slots []catering.Slot) {
	if defaultAddressID != "" && len(proposals) > 0 {
		if book := e.addressBook(ctx, proposals[0].Namespace); book != nil {
			if a, ok := book.ByID(defaultAddressID); ok {
				e.preferredName = a.Name
				return
			}
		}
	}
	for _, slot := range slots {
		if slot.AddressID == "" {
			continue
		}
		book := e.addressBook(ctx, slot.Namespace)
		if book == nil {
			continue
		}
		if a, ok := book.ByID(slot.AddressID); ok {
			e.preferredName = a.Name
			return
		}
	}
}

// resolveAddress picks the delivery address identifier for one proposal.
func (e *batchExecutor) resolveAddress(ctx context.Context, p Proposal) (string, error) {
	if p.AddressID != "" {
		return p.AddressID, nil
	}

	book := e.addressBook(ctx, p.Namespace)
	if book == nil || len(book.Addresses) == 0 {
		return "", fmt.Errorf("no valid address found for namespace %s", nsKey(p.Namespace))
	}

	if e.preferredName != "" {
		if a, ok := book.ByName(e.preferredName); ok {
			return a.ID, nil
		}
	}

	chosen, ok := book.ByID(book.DefaultID)
	if !ok {
		chosen = book.Addresses[0]
	}
	if e.preferredName == "" {
		// The first resolved namespace teaches its address name to the rest
		// of the batch.
		e.preferredName = chosen.Name
	}
	return chosen.ID, nil
}

// run processes every proposal in order and records one result each,
// regardless of individual failures.
func (e *batchExecutor) run(ctx context.Context, proposals []Proposal) []ExecutionResult {
	results := make([]ExecutionResult, 0, len(proposals))
	for _, p := range proposals {
		addrID, err := e.resolveAddress(ctx, p)
		if err != nil {
			e.note("%s %s: %v", p.Date, p.DishName, err)
			results = append(results, ExecutionResult{Date: p.Date, DishName: p.DishName, Err: err.Error()})
			continue
		}

		_, err = e.client.PlaceOrder(ctx, catering.PlaceOrderRequest{
			Channel:       p.Channel,
			DishID:        p.DishID,
			TargetTime:    catering.TargetTime(p.Period),
			CorpAddressID: addrID,
			UserAddressID: addrID,
		})

		result := ExecutionResult{Date: p.Date, DishName: p.DishName, OK: err == nil}
		if err != nil {
			result.Err = err.Error()
			e.note("%s %s: order failed: %v", p.Date, p.DishName, err)
			e.log.Warn("order placement failed",
				zap.String("date", p.Date), zap.String("dish", p.DishName), zap.Error(err))
		} else {
			e.note("%s %s: ordered", p.Date, p.DishName)
		}
		results = append(results, result)
	}
	return results
}
