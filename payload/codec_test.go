package payload

import (
	"reflect"
	"testing"
)

func TestWrap_OmitsEmptyMarkersKeepsFalsyValues(t *testing.T) {
	var missing *string
	wrapped := Wrap(map[string]any{
		"a": "",
		"b": nil,
		"c": missing,
		"d": 0,
		"e": false,
	})

	expected := map[string]any{
		"d": map[string]any{"value": 0},
		"e": map[string]any{"value": false},
	}
	if !reflect.DeepEqual(wrapped, expected) {
		t.Fatalf("expected %#v, got %#v", expected, wrapped)
	}
}

func TestWrap_RecursesThroughObjectsAndArrays(t *testing.T) {
	wrapped := Wrap(map[string]any{
		"CustomerID": "C001",
		"MainContact": map[string]any{
			"Email": "ops@example.com",
			"Phone": "",
		},
		"Details": []any{
			map[string]any{"InventoryID": "WIDGET", "OrderQty": 2},
			"note",
			[]any{1, map[string]any{"X": "y"}},
		},
	})

	expected := map[string]any{
		"CustomerID": map[string]any{"value": "C001"},
		"MainContact": map[string]any{
			"Email": map[string]any{"value": "ops@example.com"},
		},
		"Details": []any{
			map[string]any{
				"InventoryID": map[string]any{"value": "WIDGET"},
				"OrderQty":    map[string]any{"value": 2},
			},
			map[string]any{"value": "note"},
			[]any{
				map[string]any{"value": 1},
				map[string]any{"X": map[string]any{"value": "y"}},
			},
		},
	}
	if !reflect.DeepEqual(wrapped, expected) {
		t.Fatalf("expected %#v, got %#v", expected, wrapped)
	}
}

func TestWrap_NormalizesTypedGoValues(t *testing.T) {
	type line struct {
		InventoryID string `json:"InventoryID"`
		Qty         int    `json:"Qty"`
	}
	wrapped := Wrap(map[string]any{
		"Lines": []line{{InventoryID: "A", Qty: 1}},
		"Tags":  map[string]string{"k": "v"},
	})

	lines, ok := wrapped["Lines"].([]any)
	if !ok || len(lines) != 1 {
		t.Fatalf("expected one wrapped line, got %#v", wrapped["Lines"])
	}
	first := lines[0].(map[string]any)
	if !reflect.DeepEqual(first["InventoryID"], map[string]any{"value": "A"}) {
		t.Fatalf("expected wrapped inventory id, got %#v", first["InventoryID"])
	}
	if !reflect.DeepEqual(first["Qty"], map[string]any{"value": float64(1)}) {
		t.Fatalf("expected wrapped qty, got %#v", first["Qty"])
	}
	if !reflect.DeepEqual(wrapped["Tags"], map[string]any{"k": map[string]any{"value": "v"}}) {
		t.Fatalf("expected wrapped tags, got %#v", wrapped["Tags"])
	}
}

func TestUnwrap_ValueKeyShortCircuits(t *testing.T) {
	wire := map[string]any{
		"OrderNbr": map[string]any{"value": "SO001", "error": "ignored"},
		"Totals": map[string]any{
			"Amount": map[string]any{"value": 12.5},
		},
		"Details": []any{
			map[string]any{"Qty": map[string]any{"value": 3.0}},
			"raw",
		},
		"Empty": nil,
	}

	expected := map[string]any{
		"OrderNbr": "SO001",
		"Totals":   map[string]any{"Amount": 12.5},
		"Details": []any{
			map[string]any{"Qty": 3.0},
			"raw",
		},
		"Empty": nil,
	}
	if got := Unwrap(wire); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %#v, got %#v", expected, got)
	}
	if Unwrap(nil) != nil {
		t.Fatalf("expected nil to pass through")
	}
}

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		input    map[string]any
		expected map[string]any
	}{
		{
			name:     "scalars",
			input:    map[string]any{"a": "x", "b": 1.5, "c": true, "d": 0.0},
			expected: map[string]any{"a": "x", "b": 1.5, "c": true, "d": 0.0},
		},
		{
			name:     "drops empty markers",
			input:    map[string]any{"a": "", "b": nil, "c": "kept"},
			expected: map[string]any{"c": "kept"},
		},
		{
			name: "nested",
			input: map[string]any{
				"obj":  map[string]any{"x": "1", "y": nil},
				"list": []any{map[string]any{"q": 2.0}, "s", 4.0},
			},
			expected: map[string]any{
				"obj":  map[string]any{"x": "1"},
				"list": []any{map[string]any{"q": 2.0}, "s", 4.0},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Unwrap(Wrap(tc.input))
			if !reflect.DeepEqual(got, tc.expected) {
				t.Fatalf("expected %#v, got %#v", tc.expected, got)
			}
		})
	}
}

func TestSimplifyAll_UnwrapsRecords(t *testing.T) {
	items := SimplifyAll([]any{
		map[string]any{"CustomerID": map[string]any{"value": "C1"}},
		map[string]any{"CustomerID": map[string]any{"value": "C2"}},
	})
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[1].(map[string]any)["CustomerID"] != "C2" {
		t.Fatalf("expected simplified customer id, got %#v", items[1])
	}
}

func TestWrapValue_EmptyYieldsNil(t *testing.T) {
	if WrapValue("") != nil {
		t.Fatalf("expected empty string to yield nil")
	}
	if !reflect.DeepEqual(WrapValue("x"), map[string]any{"value": "x"}) {
		t.Fatalf("expected wrapped scalar")
	}
}
