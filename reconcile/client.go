package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrRecordGone marks a 404 from the remote API: the record existed at
// export time but no longer does. The dispatcher records it as a per-record
// failure; nothing is ever created on the remote side.
var ErrRecordGone = errors.New("record no longer exists in hubspot")

// HubspotClient talks to the HubSpot CMS v3 API with a shared request rate
// limiter. One client per connection token.
type HubspotClient struct {
	baseURL string
	token   string
	http    *http.Client
	limiter <-chan time.Time
}

func NewHubspotClient(token string) (*HubspotClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("HUBSPOT_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.hubapi.com"
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("hubspot access token is empty")
	}
	rateLimitPerSec := int64(8)
	if v := strings.TrimSpace(os.Getenv("HUBSPOT_RATE_LIMIT_PER_SEC")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerSec = n
		}
	}
	interval := time.Second / time.Duration(rateLimitPerSec)

	return &HubspotClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: time.Tick(interval),
	}, nil
}

var contentTypeEndpoints = map[string]string{
	"landing-pages": "/cms/v3/pages/landing-pages",
	"site-pages":    "/cms/v3/pages/site-pages",
	"blog-posts":    "/cms/v3/blogs/posts",
}

func endpointForContentType(contentType string) (string, error) {
	endpoint, ok := contentTypeEndpoints[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}
	return endpoint, nil
}

// SupportedContentTypes lists the content types the client can reach, in a
// stable order.
func SupportedContentTypes() []string {
	return []string{"landing-pages", "site-pages", "blog-posts"}
}

func IsSupportedContentType(contentType string) bool {
	_, ok := contentTypeEndpoints[contentType]
	return ok
}

// UpdateRecord patches one record's editable fields. Implements
// RecordUpdater.
func (c *HubspotClient) UpdateRecord(ctx context.Context, contentType string, recordId string, fields map[string]string) error {
	endpoint, err := endpointForContentType(contentType)
	if err != nil {
		return err
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	<-c.limiter
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+endpoint+"/"+url.PathEscape(recordId), bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrRecordGone, recordId)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("hubspot api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// RecordPage is one page of a paged listing.
type RecordPage struct {
	Results   []Row
	NextAfter string
}

type hubspotListResponse struct {
	Results []Row `json:"results"`
	Paging  *struct {
		Next struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// ListRecords fetches one page of records for a content type. Pass the
// previous page's NextAfter to continue; empty NextAfter means done.
func (c *HubspotClient) ListRecords(ctx context.Context, contentType string, limit int, after string) (*RecordPage, error) {
	endpoint, err := endpointForContentType(contentType)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if after != "" {
		params.Set("after", after)
	}

	<-c.limiter
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("hubspot api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed hubspotListResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, err
	}
	page := &RecordPage{Results: parsed.Results}
	if parsed.Paging != nil {
		page.NextAfter = parsed.Paging.Next.After
	}
	return page, nil
}

// ListAllRecords walks every page. Used by the export path.
func (c *HubspotClient) ListAllRecords(ctx context.Context, contentType string) ([]Row, error) {
	var rows []Row
	after := ""
	for {
		page, err := c.ListRecords(ctx, contentType, 100, after)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Results...)
		if page.NextAfter == "" {
			return rows, nil
		}
		after = page.NextAfter
	}
}

func (c *HubspotClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
}
