package models

import "fmt"

// OrderStatus tracks where the broker-facing side of a trade is in its
// lifecycle, from draft through entry and contingent (exit) orders.
type OrderStatus string

const (
	OrderStatusDraft                    OrderStatus = "Draft"
	OrderStatusWorking                  OrderStatus = "Working"
	OrderStatusEntryOrderSubmitted      OrderStatus = "Entry Order Submitted"
	OrderStatusContingentOrderWorking   OrderStatus = "Contingent Order Working"
	OrderStatusContingentOrderSubmitted OrderStatus = "Contingent Order Submitted"
	OrderStatusInactive                 OrderStatus = "Inactive"
	OrderStatusCancelled                OrderStatus = "Cancelled"
	OrderStatusRejected                 OrderStatus = "Rejected"
)

// TradeStatus tracks the position side of the lifecycle.
type TradeStatus string

const (
	TradeStatusBlank     TradeStatus = ""
	TradeStatusPending   TradeStatus = "Pending"
	TradeStatusFilled    TradeStatus = "Filled"
	TradeStatusClosed    TradeStatus = "Closed"
	TradeStatusCancelled TradeStatus = "Cancelled"
)

// orderTransitions is the closed transition table. Cancelled and Rejected
// are additionally reachable from every non-terminal state.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:                    {OrderStatusWorking},
	OrderStatusWorking:                  {OrderStatusEntryOrderSubmitted},
	OrderStatusEntryOrderSubmitted:      {OrderStatusContingentOrderWorking},
	OrderStatusContingentOrderWorking:   {OrderStatusContingentOrderSubmitted},
	OrderStatusContingentOrderSubmitted: {OrderStatusInactive},
	OrderStatusInactive:                 {},
	OrderStatusCancelled:                {},
	OrderStatusRejected:                 {},
}

var tradeTransitions = map[TradeStatus][]TradeStatus{
	TradeStatusBlank:     {TradeStatusPending},
	TradeStatusPending:   {TradeStatusFilled, TradeStatusCancelled},
	TradeStatusFilled:    {TradeStatusClosed, TradeStatusCancelled},
	TradeStatusClosed:    {},
	TradeStatusCancelled: {},
}

// IsTerminal reports whether no further order transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusInactive, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// IsValid reports whether s is a member of the closed enumeration.
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransition reports whether s -> next is a legal move in the table.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	// Cancelled/Rejected are reachable from any non-terminal state.
	if (next == OrderStatusCancelled || next == OrderStatusRejected) && !s.IsTerminal() {
		return true
	}
	for _, t := range orderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Transition validates and returns the next status, or an error if the
// move is not in the table.
func (s OrderStatus) Transition(next OrderStatus) (OrderStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("illegal order status transition: %q -> %q", s, next)
	}
	return next, nil
}

// IsTerminal reports whether no further trade transitions are allowed.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeStatusClosed || s == TradeStatusCancelled
}

// IsValid reports whether s is a member of the closed enumeration.
func (s TradeStatus) IsValid() bool {
	_, ok := tradeTransitions[s]
	return ok
}

// CanTransition reports whether s -> next is a legal move in the table.
func (s TradeStatus) CanTransition(next TradeStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	for _, t := range tradeTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Transition validates and returns the next status, or an error if the
// move is not in the table.
func (s TradeStatus) Transition(next TradeStatus) (TradeStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("illegal trade status transition: %q -> %q", s, next)
	}
	return next, nil
}
