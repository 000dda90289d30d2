// Package sheets implements the row stores on a Google Sheets spreadsheet.
// Characters live in the "personagens" tab, memories in "memorias", each
// character's log in a tab named after it and its recaps in "<nome>_sinopse".
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	tabCharacters  = "personagens"
	tabMemories    = "memorias"
	synopsisSuffix = "_sinopse"
	valueInputUser = "USER_ENTERED"
	insertDataMode = "INSERT_ROWS"
)

// errMissingTab is returned by valuesAPI when the range names a tab that
// does not exist.
var errMissingTab = errors.New("tab does not exist")

// valuesAPI is the subset of the Sheets values API the repos need.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
}

// Client reads and appends rows of one spreadsheet.
type Client struct {
	api           valuesAPI
	spreadsheetID string
}

// NewClient authenticates with a service account JSON document.
func NewClient(ctx context.Context, credsJSON, spreadsheetID string) (*Client, error) {
	creds, err := normalizeCredentials(credsJSON)
	if err != nil {
		return nil, err
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return newClient(&serviceValues{svc: svc}, spreadsheetID), nil
}

func newClient(api valuesAPI, spreadsheetID string) *Client {
	return &Client{api: api, spreadsheetID: spreadsheetID}
}

// normalizeCredentials turns escaped "\n" sequences of the private key into
// real newlines; env vars usually carry the key on one line.
func normalizeCredentials(credsJSON string) ([]byte, error) {
	var creds map[string]any
	if err := json.Unmarshal([]byte(credsJSON), &creds); err != nil {
		return nil, fmt.Errorf("failed to parse google credentials: %w", err)
	}
	if key, ok := creds["private_key"].(string); ok {
		creds["private_key"] = strings.ReplaceAll(key, `\n`, "\n")
	}
	out, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode google credentials: %w", err)
	}
	return out, nil
}

// tabRange quotes a tab name as an A1 range so names holding "!", "'" or
// looking like a cell reference resolve to the whole tab.
func tabRange(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// values returns every row of a tab as strings.
func (c *Client) values(ctx context.Context, tab string) ([][]string, error) {
	raw, err := c.api.Get(ctx, c.spreadsheetID, tabRange(tab))
	if err != nil {
		return nil, fmt.Errorf("failed to read tab %q: %w", tab, err)
	}
	rows := make([][]string, 0, len(raw))
	for _, r := range raw {
		row := make([]string, len(r))
		for i, cell := range r {
			row[i] = strings.TrimSpace(fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// records reads a tab whose first row is a header.
func (c *Client) records(ctx context.Context, tab string) ([]map[string]string, error) {
	rows, err := c.values(ctx, tab)
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

func (c *Client) appendRow(ctx context.Context, tab string, row ...any) error {
	if err := c.api.Append(ctx, c.spreadsheetID, tabRange(tab), [][]any{row}); err != nil {
		return fmt.Errorf("failed to append to tab %q: %w", tab, err)
	}
	return nil
}

// toRecords maps data rows onto lower-cased header names. Short rows leave
// the missing columns empty.
func toRecords(rows [][]string) []map[string]string {
	if len(rows) == 0 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	records := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		for i, key := range header {
			if key == "" {
				continue
			}
			if i < len(row) {
				rec[key] = row[i]
			} else {
				rec[key] = ""
			}
		}
		records = append(records, rec)
	}
	return records
}

type serviceValues struct {
	svc *sheets.Service
}

func (s *serviceValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		if isMissingTab(err) {
			return nil, fmt.Errorf("%w: %s", errMissingTab, rng)
		}
		return nil, err
	}
	return resp.Values, nil
}

// isMissingTab recognizes the 400 the API answers for an unknown tab.
func isMissingTab(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusBadRequest {
		return false
	}
	return strings.Contains(apiErr.Message, "Unable to parse range")
}

func (s *serviceValues) Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption(valueInputUser).
		InsertDataOption(insertDataMode).
		Context(ctx).
		Do()
	return err
}
