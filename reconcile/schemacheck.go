package reconcile

import (
	"context"
	"sort"
	"time"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/config"
	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/utils"
)

// SchemaComparison reports drift between the built-in field classification
// and the shape of live records.
type SchemaComparison struct {
	ContentType     string    `json:"contentType"`
	MissingLocally  []string  `json:"missingLocally"`
	MissingRemotely []string  `json:"missingRemotely"`
	InSync          bool      `json:"inSync"`
	CheckedAt       time.Time `json:"checkedAt"`
}

const schemaCacheKeyPrefix = "SchemaComparison:"

// CompareSchemaDefinitions samples live records and diffs their field keys
// against the local classification. Results are cached in redis; pass
// forceRefresh to bypass the cache after a known remote schema change.
func CompareSchemaDefinitions(ctx context.Context, client *HubspotClient, provider MetadataProvider, contentType string, forceRefresh bool) (*SchemaComparison, error) {
	cacheKey := schemaCacheKeyPrefix + contentType
	if !forceRefresh {
		var cached SchemaComparison
		if found, _ := config.GetRedisObject(cacheKey, &cached); found {
			return &cached, nil
		}
	}

	meta, err := provider.FieldMetadata(ctx, contentType)
	if err != nil {
		return nil, err
	}

	page, err := client.ListRecords(ctx, contentType, 10, "")
	if err != nil {
		return nil, err
	}

	remoteFields := map[string]bool{}
	for _, row := range page.Results {
		for field := range row {
			remoteFields[field] = true
		}
	}

	comparison := &SchemaComparison{
		ContentType:     contentType,
		MissingLocally:  []string{},
		MissingRemotely: []string{},
		CheckedAt:       time.Now().UTC(),
	}
	for field := range remoteFields {
		if _, ok := meta[field]; !ok && !isRecordIdField(field) {
			comparison.MissingLocally = append(comparison.MissingLocally, field)
		}
	}
	// Only check fields the sample should always carry; a sample row not
	// having an optional field is not drift.
	if len(page.Results) > 0 {
		for field, md := range meta {
			if md.ReadOnly {
				continue
			}
			if !remoteFields[field] {
				comparison.MissingRemotely = append(comparison.MissingRemotely, field)
			}
		}
	}
	sort.Strings(comparison.MissingLocally)
	sort.Strings(comparison.MissingRemotely)
	comparison.InSync = len(comparison.MissingLocally) == 0 && len(comparison.MissingRemotely) == 0

	ttl := time.Duration(utils.IntFromEnv("SCHEMA_CHECK_TTL_MINUTES", 360)) * time.Minute
	_ = config.SetRedisObject(cacheKey, comparison, ttl)
	return comparison, nil
}
