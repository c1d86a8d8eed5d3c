// Package google mirrors the transaction ledger into a Google Sheet, one row
// per transaction: ID, Date, Type, Category, Description, Amount.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"

	"golang.org/x/oauth2"
	gauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the ledger tab base name; the current year is prefixed.
const DefaultSheetName = "Transactions"

const rowCacheTTL = 5 * time.Minute

var headerRow = []any{"ID", "Date", "Type", "Category", "Description", "Amount"}

// Ensure interface conformance
var (
	_ ports.LedgerWriter = (*Client)(nil)
	_ ports.LedgerIndex  = (*Client)(nil)
)

// Config selects the spreadsheet and the credentials.
type Config struct {
	SpreadsheetID string
	SheetName     string
	// Service account credentials, inline or as a file path.
	CredentialsJSON string
	CredentialsFile string
	// OAuth client and token, as produced by cmd/oauth-init. Used instead
	// of the service account when both are set.
	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	ledgerSheet   string

	// nextRow caches the first empty row so consecutive appends skip a read.
	mu          sync.Mutex
	nextRow     int
	cacheExpiry time.Time
}

// New creates a Sheets client. Extra options are passed to the Sheets
// service; when none are given the OAuth token from cfg is used, falling
// back to service account credentials (or GOOGLE_APPLICATION_CREDENTIALS).
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = DefaultSheetName
	}

	if len(opts) == 0 {
		var err error
		opts, err = clientOptions(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("sheets service: %w", err)
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		ledgerSheet:   yearPrefixedName(base, time.Now().Year()),
	}, nil
}

func clientOptions(ctx context.Context, cfg Config) ([]goption.ClientOption, error) {
	clientJSON, err := inlineOrFile(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	tokenJSON, err := inlineOrFile(cfg.OAuthTokenJSON, cfg.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if clientJSON != nil && tokenJSON != nil {
		httpClient, err := oauthHTTPClient(ctx, clientJSON, tokenJSON)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Using OAuth token credentials")
		return []goption.ClientOption{goption.WithHTTPClient(httpClient)}, nil
	}

	credentialsJSON, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// oauthHTTPClient builds a refreshing HTTP client from an OAuth client
// secret and a saved token.
func oauthHTTPClient(ctx context.Context, clientJSON, tokenJSON []byte) (*http.Client, error) {
	conf, err := gauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return conf.Client(ctx, &tok), nil
}

// inlineOrFile returns the inline value, the file contents, or nil when
// both are empty.
func inlineOrFile(inline, file string) ([]byte, error) {
	if v := strings.TrimSpace(inline); v != "" {
		return []byte(v), nil
	}
	if f := strings.TrimSpace(file); f != "" {
		return os.ReadFile(f)
	}
	return nil, nil
}

// loadCredentials reads service account JSON from cfg, falling back to
// GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// SheetName is the year-prefixed ledger tab.
func (c *Client) SheetName() string {
	return c.ledgerSheet
}

// AppendTransaction implements ports.LedgerWriter
func (c *Client) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if tx.ID <= 0 {
		return "", errors.New("transaction id is required")
	}

	nextRow, err := c.nextFreeRow(ctx)
	if err != nil {
		return "", err
	}

	if nextRow == 1 {
		if err := c.updateRow(ctx, 1, headerRow); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
		nextRow = 2
	}

	amount, _ := tx.Amount.Float64()
	row := []any{tx.ID, tx.Date.String(), string(tx.Type), tx.Category, tx.Description, amount}
	if err := c.updateRow(ctx, nextRow, row); err != nil {
		c.invalidateRowCache()
		return "", err
	}

	c.mu.Lock()
	c.nextRow = nextRow + 1
	c.cacheExpiry = time.Now().Add(rowCacheTTL)
	c.mu.Unlock()

	return fmt.Sprintf("%s!A%d:F%d", c.ledgerSheet, nextRow, nextRow), nil
}

// DeleteTransaction implements ports.LedgerWriter
func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	row, err := c.FindRow(ctx, id)
	if err != nil {
		return err
	}
	if row == 0 {
		slog.WarnContext(ctx, "Transaction not present in sheet, nothing to delete", "id", id, "sheet", c.ledgerSheet)
		return nil
	}

	sheetID, err := c.sheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d in sheet %s: %w", row, c.ledgerSheet, err)
	}
	c.invalidateRowCache()
	return nil
}

// FindRow implements ports.LedgerIndex
func (c *Client) FindRow(ctx context.Context, id int64) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return 0, err
	}
	want := strconv.FormatInt(id, 10)
	for i, v := range ids {
		if v == want {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (c *Client) readIDColumn(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", c.ledgerSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		out[i] = normalizeID(fmt.Sprint(row[0]))
	}
	return out, nil
}

func (c *Client) nextFreeRow(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.nextRow > 0 && time.Now().Before(c.cacheExpiry) {
		n := c.nextRow
		c.mu.Unlock()
		return n, nil
	}
	c.mu.Unlock()

	ids, err := c.readIDColumn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", c.ledgerSheet, err)
	}
	return len(ids) + 1, nil
}

func (c *Client) invalidateRowCache() {
	c.mu.Lock()
	c.nextRow = 0
	c.cacheExpiry = time.Time{}
	c.mu.Unlock()
}

func (c *Client) updateRow(ctx context.Context, row int, values []any) error {
	rng := fmt.Sprintf("%s!A%d:F%d", c.ledgerSheet, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

func (c *Client) sheetID(ctx context.Context) (int64, error) {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == c.ledgerSheet {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", c.ledgerSheet)
}

// normalizeID turns "12", "12.0" or " 12 " into "12".
func normalizeID(s string) string {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
