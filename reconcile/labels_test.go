package reconcile

import "testing"

func TestDisplayLabel_FallbackChain(t *testing.T) {
	cases := []struct {
		name string
		row  Row
		want string
	}{
		{"name wins", Row{"name": "Pricing", "htmlTitle": "Pricing | Acme"}, "Pricing"},
		{"htmlTitle next", Row{"htmlTitle": "Pricing | Acme", "slug": "pricing"}, "Pricing | Acme"},
		{"slug last", Row{"slug": "pricing"}, "pricing"},
		{"blank name skipped", Row{"name": "  ", "slug": "pricing"}, "pricing"},
		{"no candidates", Row{"metaDescription": "x"}, "Record 42"},
		{"nil row", nil, "Record 42"},
	}
	for _, tc := range cases {
		if got := DisplayLabel(tc.row, "42"); got != tc.want {
			t.Fatalf("%s: DisplayLabel = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFriendlyFieldName(t *testing.T) {
	cases := map[string]string{
		"htmlTitle":       "Page Title",
		"metaDescription": "Meta Description",
		"slug":            "URL Slug",
		"someCustomField": "Some Custom Field",
		"another_field":   "Another Field",
	}
	for key, want := range cases {
		if got := FriendlyFieldName(key); got != want {
			t.Fatalf("FriendlyFieldName(%q) = %q, want %q", key, got, want)
		}
	}
}
