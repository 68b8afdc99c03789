package domain

import (
	"errors"
	"testing"
	"time"
)

func validOrder() Order {
	now := time.Now().UTC()
	return Order{
		ID:               "order-1",
		Status:           OrderStatusPending,
		TotalAmountMinor: 2500,
		TotalItems:       3,
		Items: []OrderItem{
			{ID: "item-1", ProductID: "prod-a", Quantity: 2, PriceMinor: 1000, CreatedAt: now},
			{ID: "item-2", ProductID: "prod-b", Quantity: 1, PriceMinor: 500, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrder_ValidateInvariants_OK(t *testing.T) {
	order := validOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no invariant errors, got %v", errs)
	}
}

func TestOrder_ValidateInvariants_TotalsMismatch(t *testing.T) {
	order := validOrder()
	order.TotalAmountMinor = 9999

	errs := order.ValidateInvariants()
	if len(errs) == 0 {
		t.Fatal("expected invariant errors")
	}
	found := false
	for _, err := range errs {
		if errors.Is(err, ErrTotalsMismatch) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected ErrTotalsMismatch, got %v", errs)
	}
}

func TestOrder_ValidateInvariants_EmptyItems(t *testing.T) {
	order := validOrder()
	order.Items = nil
	order.TotalAmountMinor = 0
	order.TotalItems = 0

	errs := order.ValidateInvariants()
	if len(errs) != 1 || !errors.Is(errs[0], ErrItemsRequired) {
		t.Fatalf("expected only ErrItemsRequired, got %v", errs)
	}
}

func TestOrder_ValidateInvariants_BadItem(t *testing.T) {
	order := validOrder()
	order.Items[0].Quantity = 0
	order.Items[1].ProductID = ""

	errs := order.ValidateInvariants()
	wantQty, wantProduct := false, false
	for _, err := range errs {
		if errors.Is(err, ErrItemQuantityInvalid) {
			wantQty = true
		}
		if errors.Is(err, ErrItemProductRequired) {
			wantProduct = true
		}
	}
	if !wantQty || !wantProduct {
		t.Fatalf("expected quantity and product errors, got %v", errs)
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("paid")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if status != OrderStatusPaid {
		t.Fatalf("expected paid, got %s", status)
	}

	if _, err := ParseOrderStatus("shipped"); !errors.Is(err, ErrStatusInvalid) {
		t.Fatalf("expected ErrStatusInvalid, got %v", err)
	}
}

func TestOrderStatus_Transitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusPaid, OrderStatusDelivered, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusPending, OrderStatus("shipped"), false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestOrderStatus_Terminal(t *testing.T) {
	if OrderStatusPending.Terminal() || OrderStatusPaid.Terminal() {
		t.Fatal("pending/paid must not be terminal")
	}
	if !OrderStatusDelivered.Terminal() || !OrderStatusCancelled.Terminal() {
		t.Fatal("delivered/cancelled must be terminal")
	}
}
