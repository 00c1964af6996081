package reconcile

import (
	"context"
	"fmt"
)

// StaticMetadataProvider carries the built-in classification of exported
// fields per content type. The CMS pages API has no property-introspection
// endpoint, so the classification is maintained here and drift against the
// live payload shape is surfaced by the schema check.
type StaticMetadataProvider struct{}

func (StaticMetadataProvider) FieldMetadata(ctx context.Context, contentType string) (map[string]FieldMetadata, error) {
	fields, ok := contentTypeFields[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMetadataUnavailable, contentType)
	}
	meta := make(map[string]FieldMetadata, len(fields))
	for _, f := range fields {
		meta[f.Key] = f
	}
	return meta, nil
}

func editable(key, dataType string) FieldMetadata {
	return FieldMetadata{Key: key, DataType: dataType, Editable: true, InAppEditable: true}
}

func readOnly(key, dataType string) FieldMetadata {
	return FieldMetadata{Key: key, DataType: dataType, ReadOnly: true}
}

// Fields shared by landing pages and site pages.
var pageFields = []FieldMetadata{
	readOnly("id", "string"),
	readOnly("createdAt", "datetime"),
	readOnly("updatedAt", "datetime"),
	readOnly("createdById", "string"),
	readOnly("updatedById", "string"),
	readOnly("archivedAt", "datetime"),
	readOnly("url", "string"),
	readOnly("currentState", "string"),
	readOnly("authorName", "string"),
	readOnly("domain", "string"),
	editable("name", "string"),
	editable("htmlTitle", "string"),
	editable("metaDescription", "string"),
	editable("slug", "string"),
	editable("state", "string"),
	editable("publishDate", "datetime"),
	editable("campaign", "string"),
	editable("language", "string"),
	editable("headHtml", "string"),
	editable("footerHtml", "string"),
	editable("archivedInDashboard", "bool"),
	editable("publicAccessRulesEnabled", "bool"),
}

var blogPostFields = append([]FieldMetadata{
	editable("postBody", "string"),
	editable("postSummary", "string"),
	editable("blogAuthorId", "string"),
	editable("tagIds", "array"),
	editable("featuredImage", "string"),
	editable("featuredImageAltText", "string"),
	editable("useFeaturedImage", "bool"),
	readOnly("contentGroupId", "string"),
	readOnly("publishedUrl", "string"),
}, pageFields...)

var contentTypeFields = map[string][]FieldMetadata{
	"landing-pages": pageFields,
	"site-pages":    pageFields,
	"blog-posts":    blogPostFields,
}
