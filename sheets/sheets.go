// Package sheets adapts Google Sheets tabs to the reconciliation engine's
// row model: first row is the header, every following row becomes a field
// map keyed by header.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	sheetsapi "google.golang.org/api/sheets/v4"
	"google.golang.org/api/option"

	"github.com/Muhammad-Ali-Hassan-Alvi/Hubspot-Bulk-Edit-sub000/reconcile"
)

func NewService(ctx context.Context) (*sheetsapi.Service, error) {
	if credJSON := strings.TrimSpace(os.Getenv("SHEETS_CREDENTIALS_JSON")); credJSON != "" {
		return sheetsapi.NewService(ctx,
			option.WithCredentialsJSON([]byte(credJSON)),
			option.WithScopes(sheetsapi.SpreadsheetsScope),
		)
	}
	return sheetsapi.NewService(ctx, option.WithScopes(sheetsapi.SpreadsheetsScope))
}

// ReadTab reads a whole tab into rows. Cells beyond the header width are
// dropped; short rows leave trailing fields unset.
func ReadTab(ctx context.Context, svc *sheetsapi.Service, spreadsheetId string, tabName string) ([]reconcile.Row, error) {
	resp, err := svc.Spreadsheets.Values.Get(spreadsheetId, tabName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read tab %q: %w", tabName, err)
	}
	if len(resp.Values) == 0 {
		return nil, errors.New("tab is empty")
	}

	headers := make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		headers = append(headers, strings.TrimSpace(fmt.Sprintf("%v", cell)))
	}

	rows := make([]reconcile.Row, 0, len(resp.Values)-1)
	for _, raw := range resp.Values[1:] {
		row := reconcile.Row{}
		for i, cell := range raw {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			row[headers[i]] = cell
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// WriteTab replaces a tab's content with a header row plus one row per
// record, using the given header order.
func WriteTab(ctx context.Context, svc *sheetsapi.Service, spreadsheetId string, tabName string, headers []string, rows []reconcile.Row) error {
	if _, err := svc.Spreadsheets.Values.Clear(spreadsheetId, tabName, &sheetsapi.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear tab %q: %w", tabName, err)
	}

	values := make([][]interface{}, 0, len(rows)+1)
	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	values = append(values, headerRow)

	for _, row := range rows {
		cells := make([]interface{}, len(headers))
		for i, header := range headers {
			if v, ok := row[header]; ok && v != nil {
				cells[i] = cellString(v)
			} else {
				cells[i] = ""
			}
		}
		values = append(values, cells)
	}

	_, err := svc.Spreadsheets.Values.
		Update(spreadsheetId, tabName, &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write tab %q: %w", tabName, err)
	}
	return nil
}

func cellString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return reconcile.FromAny(v).Canonical()
}
