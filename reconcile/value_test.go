package reconcile

import "testing"

func TestValueEquality_Coercion(t *testing.T) {
	cases := []struct {
		name  string
		a, b  any
		equal bool
	}{
		{"string number vs number", "123", float64(123), true},
		{"formatted number", "123.50", float64(123.5), true},
		{"string bool vs bool", "TRUE", true, true},
		{"false variants", "False", false, true},
		{"date formats collapse", "2024-03-01T00:00:00Z", "2024-03-01", true},
		{"date with offset", "2024-03-01T05:00:00+05:00", "2024-03-01T00:00:00Z", true},
		{"different strings", "Pricing", "Pricing v2", false},
		{"different numbers", "12", float64(13), false},
		{"whitespace trimmed", "  hello ", "hello", true},
	}
	for _, tc := range cases {
		got := ValuesEqual(FromAny(tc.a), FromAny(tc.b))
		if got != tc.equal {
			t.Fatalf("%s: ValuesEqual(%v, %v) = %v, want %v", tc.name, tc.a, tc.b, got, tc.equal)
		}
	}
}

func TestValueEquality_EmptyForms(t *testing.T) {
	empties := []any{nil, "", "   "}
	for _, a := range empties {
		for _, b := range empties {
			if !ValuesEqual(FromAny(a), FromAny(b)) {
				t.Fatalf("empty forms %q and %q should compare equal", a, b)
			}
		}
	}
	if ValuesEqual(FromAny(nil), FromAny("x")) {
		t.Fatal("empty must not equal a real value")
	}
	if FromAny(nil).Canonical() != "" {
		t.Fatal("empty canonical form must be the empty string")
	}
}

func TestValueEquality_ArraysOrderInsensitive(t *testing.T) {
	a := FromAny([]any{"blog", "pricing", "launch"})
	b := FromAny([]any{"pricing", "launch", "blog"})
	if !ValuesEqual(a, b) {
		t.Fatal("arrays with the same elements must compare equal regardless of order")
	}
	c := FromAny([]any{"pricing", "launch"})
	if ValuesEqual(a, c) {
		t.Fatal("arrays with different elements must not compare equal")
	}
}

func TestValueEquality_ObjectsKeyOrderInsensitive(t *testing.T) {
	a := FromAny(map[string]any{"x": 1, "y": "two"})
	b := FromAny(map[string]any{"y": "two", "x": "1"})
	if !ValuesEqual(a, b) {
		t.Fatal("objects with equal entries must compare equal")
	}
	c := FromAny(map[string]any{"x": 1, "y": "three"})
	if ValuesEqual(a, c) {
		t.Fatal("objects with different entries must not compare equal")
	}
}
