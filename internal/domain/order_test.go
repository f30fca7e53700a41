package domain

import "testing"

func TestAllItemsReturned(t *testing.T) {
	tests := []struct {
		name     string
		order    Order
		expected bool
	}{
		{
			name:     "no items",
			order:    Order{},
			expected: true,
		},
		{
			name: "all returned",
			order: Order{Items: []LineItem{
				{ID: "item_1", Quantity: 2, ReturnedQuantity: 2},
				{ID: "item_2", Quantity: 1, ReturnedQuantity: 1},
			}},
			expected: true,
		},
		{
			name: "partially returned",
			order: Order{Items: []LineItem{
				{ID: "item_1", Quantity: 2, ReturnedQuantity: 1},
			}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.order.AllItemsReturned(); got != tt.expected {
				t.Errorf("AllItemsReturned() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFindItem(t *testing.T) {
	order := Order{Items: []LineItem{
		{ID: "item_1", Quantity: 1},
		{ID: "item_2", Quantity: 2},
	}}

	item := order.FindItem("item_2")
	if item == nil || item.Quantity != 2 {
		t.Fatalf("FindItem(item_2) = %v, want quantity 2", item)
	}

	// Returned pointer aliases the slice element.
	item.FulfilledQuantity = 2
	if order.Items[1].FulfilledQuantity != 2 {
		t.Error("FindItem should return a pointer into the order's items")
	}

	if order.FindItem("item_missing") != nil {
		t.Error("FindItem should return nil for an unknown id")
	}
}

func TestFindFulfillment(t *testing.T) {
	order := Order{Fulfillments: []Fulfillment{
		{ID: "ful_1"},
		{ID: "ful_2"},
	}}

	if f := order.FindFulfillment("ful_2"); f == nil || f.ID != "ful_2" {
		t.Fatalf("FindFulfillment(ful_2) = %v", f)
	}
	if order.FindFulfillment("ful_missing") != nil {
		t.Error("FindFulfillment should return nil for an unknown id")
	}
}

func TestSetMetadata(t *testing.T) {
	order := Order{Metadata: map[string]any{"a": "1", "b": "2"}}

	order.SetMetadata(map[string]any{
		"b": "updated",
		"c": "3",
		"a": nil,
	})

	if _, ok := order.Metadata["a"]; ok {
		t.Error("nil value should delete the key")
	}
	if order.Metadata["b"] != "updated" {
		t.Errorf("Metadata[b] = %v, want updated", order.Metadata["b"])
	}
	if order.Metadata["c"] != "3" {
		t.Errorf("Metadata[c] = %v, want 3", order.Metadata["c"])
	}

	var empty Order
	empty.SetMetadata(map[string]any{"k": "v"})
	if empty.Metadata["k"] != "v" {
		t.Error("SetMetadata should initialize a nil metadata map")
	}
}
