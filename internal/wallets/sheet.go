package wallets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// DefaultSheetURL is the wallet sheet scored when none is configured.
const DefaultSheetURL = "https://docs.google.com/spreadsheets/d/1ZzaeMgNYnxvriYYpe8PE7uMEblTI0GV5GIVUnsP-sBs/edit?usp=sharing"

const (
	defaultExportBase  = "https://docs.google.com/spreadsheets/d"
	defaultHTTPTimeout = 30 * time.Second
	maxSheetBytes      = 10 << 20
)

// ErrInvalidSheetURL is returned when a URL carries no spreadsheet ID.
var ErrInvalidSheetURL = errors.New("invalid Google Sheets URL")

var sheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// ExtractSheetID returns the spreadsheet ID of a Google Sheets URL.
func ExtractSheetID(sheetURL string) (string, error) {
	m := sheetIDPattern.FindStringSubmatch(sheetURL)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidSheetURL, sheetURL)
	}
	return m[1], nil
}

// SheetLoader downloads wallet lists from Google Sheets CSV exports.
type SheetLoader struct {
	client     *http.Client
	exportBase string
	logger     *slog.Logger
}

// SheetOption configures SheetLoader.
type SheetOption func(*SheetLoader)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) SheetOption {
	return func(l *SheetLoader) {
		l.client = c
	}
}

// WithExportBase sets the export endpoint prefix (for tests).
func WithExportBase(base string) SheetOption {
	return func(l *SheetLoader) {
		l.exportBase = strings.TrimRight(base, "/")
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SheetOption {
	return func(l *SheetLoader) {
		l.logger = logger
	}
}

// NewSheetLoader creates a loader.
func NewSheetLoader(opts ...SheetOption) *SheetLoader {
	l := &SheetLoader{
		client:     &http.Client{Timeout: defaultHTTPTimeout},
		exportBase: defaultExportBase,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ExportURL returns the CSV export URL of the sheet behind sheetURL.
func (l *SheetLoader) ExportURL(sheetURL string) (string, error) {
	id, err := ExtractSheetID(sheetURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/export?format=csv", l.exportBase, id), nil
}

// Fetch downloads and parses the sheet. Returns ErrNoWallets when the
// sheet holds no valid address.
func (l *SheetLoader) Fetch(ctx context.Context, sheetURL string) ([]string, error) {
	exportURL, err := l.ExportURL(sheetURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download sheet: HTTP %d", resp.StatusCode)
	}

	wallets, err := ParseCSV(io.LimitReader(resp.Body, maxSheetBytes))
	if err != nil {
		return nil, err
	}
	if len(wallets) == 0 {
		return nil, ErrNoWallets
	}
	return wallets, nil
}

// Load returns the wallets of the sheet, or SampleWallets when the sheet
// cannot be downloaded or holds no valid address.
func (l *SheetLoader) Load(ctx context.Context, sheetURL string) []string {
	l.logger.Info("loading wallets from sheet", "url", sheetURL)

	wallets, err := l.Fetch(ctx, sheetURL)
	if err != nil {
		l.logger.Warn("sheet unavailable, using sample wallets", "error", err)
		return SampleWallets()
	}

	l.logger.Info("loaded wallets from sheet", "count", len(wallets))
	return wallets
}
