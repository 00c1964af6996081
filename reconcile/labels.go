package reconcile

import (
	"fmt"
	"strings"
)

// FieldNotSet is the audit display sentinel for a previously missing or
// empty value.
const FieldNotSet = "Field not set"

// displayLabelFields is the fallback chain for a human-readable record
// label, tried in order.
var displayLabelFields = []string{"name", "htmlTitle", "pageTitle", "title", "label", "slug"}

var friendlyFieldNames = map[string]string{
	"name":            "Name",
	"htmlTitle":       "Page Title",
	"pageTitle":       "Page Title",
	"metaDescription": "Meta Description",
	"slug":            "URL Slug",
	"url":             "URL",
	"state":           "State",
	"currentState":    "Current State",
	"publishDate":     "Publish Date",
	"createdAt":       "Created At",
	"updatedAt":       "Updated At",
	"authorName":      "Author",
	"blogAuthorId":    "Author",
	"campaign":        "Campaign",
	"language":        "Language",
	"domain":          "Domain",
	"tagIds":          "Tags",
	"postBody":        "Post Body",
	"postSummary":     "Post Summary",
	"featuredImage":   "Featured Image",
	"headHtml":        "Head HTML",
	"footerHtml":      "Footer HTML",
	"archivedInDashboard": "Archived",
}

// DisplayLabel resolves a label for a record from its row fields, falling
// back to "Record {id}" when none of the label candidates carry a value.
func DisplayLabel(row Row, recordId string) string {
	for _, field := range displayLabelFields {
		if raw, ok := row[field]; ok {
			if s, ok := raw.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return fmt.Sprintf("Record %s", recordId)
}

// FriendlyFieldName maps a field key to its display name. Unknown keys are
// title-cased from camelCase or snake_case rather than shown raw.
func FriendlyFieldName(key string) string {
	if name, ok := friendlyFieldNames[key]; ok {
		return name
	}
	return titleize(key)
}

func titleize(key string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range key {
		switch {
		case r == '_' || r == '-':
			b.WriteByte(' ')
			prevLower = false
		case r >= 'A' && r <= 'Z' && prevLower:
			b.WriteByte(' ')
			b.WriteRune(r)
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
		}
	}
	words := strings.Fields(b.String())
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
