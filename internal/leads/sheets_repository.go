package leads

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wvdi-ph/drivebot/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSheetsBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"
	defaultTokenURL      = "https://oauth2.googleapis.com/token"
	sheetsScope          = "https://www.googleapis.com/auth/spreadsheets"

	// headerSentinel is the expected A1 value. Anything else in a non-empty
	// sheet means the header row is missing.
	headerSentinel = "Thread ID"
)

var headerRow = []string{"Thread ID", "Timestamp", "Name", "Email", "Phone", "Services", "Summary", "Conversation"}

// SheetsConfig holds the Google Sheets connection settings.
type SheetsConfig struct {
	SpreadsheetID       string
	SheetName           string
	ServiceAccountEmail string
	PrivateKeyPEM       string

	// BaseURL and TokenURL are overridable for tests.
	BaseURL  string
	TokenURL string
}

// SheetsRepository upserts lead records into a Google Sheet, keyed by thread
// id in column A. Authentication uses a signed service-account JWT exchanged
// for a bearer token; the token is cached until shortly before expiry.
type SheetsRepository struct {
	cfg        SheetsConfig
	key        *rsa.PrivateKey
	httpClient *http.Client
	logger     *logging.Logger
	tracer     trace.Tracer

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewSheetsRepository validates credentials and parses the signing key.
// Missing credentials fail fast with ErrNotConfigured so callers can report a
// configuration problem instead of a generic failure.
func NewSheetsRepository(cfg SheetsConfig, logger *logging.Logger) (*SheetsRepository, error) {
	if strings.TrimSpace(cfg.ServiceAccountEmail) == "" || strings.TrimSpace(cfg.PrivateKeyPEM) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.SpreadsheetID == "" {
		return nil, ErrNotConfigured
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSheetsBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if logger == nil {
		logger = logging.Default()
	}

	// Env vars carry the key with literal "\n" escapes.
	pem := strings.ReplaceAll(cfg.PrivateKeyPEM, `\n`, "\n")
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("leads: parse service account key: %w", err)
	}

	return &SheetsRepository{
		cfg:        cfg,
		key:        key,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		tracer:     otel.Tracer("drivebot.internal.leads.sheets"),
	}, nil
}

// Upsert writes the record into the sheet: update in place when a row already
// carries the thread id, append otherwise. Any non-success response from the
// Sheets API fails the whole operation with the raw error body attached.
func (r *SheetsRepository) Upsert(ctx context.Context, record *Record) error {
	ctx, span := r.tracer.Start(ctx, "leads.sheets.upsert")
	defer span.End()

	token, err := r.accessToken(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if err := r.ensureHeader(ctx, token); err != nil {
		span.RecordError(err)
		return err
	}

	row, err := r.findRowByThreadID(ctx, token, record.ThreadID)
	if err != nil {
		span.RecordError(err)
		return err
	}

	if row > 0 {
		r.logger.Info("updating existing lead row", "thread_id", record.ThreadID, "row", row)
		err = r.updateRow(ctx, token, row, record)
	} else {
		r.logger.Info("appending new lead row", "thread_id", record.ThreadID)
		err = r.appendRow(ctx, token, record)
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// accessToken returns a cached bearer token, minting a fresh one via the
// JWT-bearer grant when the cache is empty or stale.
func (r *SheetsRepository) accessToken(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" && time.Now().Before(r.tokenExpiry.Add(-time.Minute)) {
		return r.token, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   r.cfg.ServiceAccountEmail,
		"scope": sheetsScope,
		"aud":   r.cfg.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(r.key)
	if err != nil {
		return "", fmt.Errorf("leads: sign token assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("leads: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("leads: token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("leads: token exchange failed (%d): %s", resp.StatusCode, body)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("leads: decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("leads: token response missing access_token")
	}

	r.token = tokenResp.AccessToken
	ttl := time.Duration(tokenResp.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	r.tokenExpiry = time.Now().Add(ttl)
	return r.token, nil
}

// ensureHeader makes sure row 1 carries the expected column headers. If the
// sheet already holds data without the header sentinel, a blank row is
// inserted at the top first so no existing row is overwritten.
func (r *SheetsRepository) ensureHeader(ctx context.Context, token string) error {
	values, err := r.readRange(ctx, token, fmt.Sprintf("%s!A1:H1", r.cfg.SheetName))
	if err != nil {
		return err
	}

	if len(values) > 0 && len(values[0]) > 0 && values[0][0] == headerSentinel {
		return nil
	}

	if len(values) > 0 && len(values[0]) > 0 {
		// Existing foreign content in row 1. Shift everything down before
		// writing headers.
		if err := r.insertTopRow(ctx, token); err != nil {
			return err
		}
	}

	return r.writeRange(ctx, token, fmt.Sprintf("%s!A1:H1", r.cfg.SheetName), headerRow)
}

// findRowByThreadID scans column A for the thread id and returns its 1-indexed
// row number, or 0 when absent. Row 1 (the header) is skipped.
func (r *SheetsRepository) findRowByThreadID(ctx context.Context, token, threadID string) (int, error) {
	values, err := r.readRange(ctx, token, fmt.Sprintf("%s!A:A", r.cfg.SheetName))
	if err != nil {
		return 0, err
	}
	for i, row := range values {
		if i == 0 {
			continue
		}
		if len(row) > 0 && row[0] == threadID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (r *SheetsRepository) updateRow(ctx context.Context, token string, row int, record *Record) error {
	rangeRef := fmt.Sprintf("%s!A%d:H%d", r.cfg.SheetName, row, row)
	return r.writeRange(ctx, token, rangeRef, recordCells(record))
}

func (r *SheetsRepository) appendRow(ctx context.Context, token string, record *Record) error {
	endpoint := fmt.Sprintf("%s/%s/values/%s:append?valueInputOption=USER_ENTERED",
		r.cfg.BaseURL, r.cfg.SpreadsheetID, url.PathEscape(fmt.Sprintf("%s!A:H", r.cfg.SheetName)))
	payload := map[string]any{"values": [][]string{recordCells(record)}}
	return r.doJSON(ctx, token, http.MethodPost, endpoint, payload, "append row")
}

func (r *SheetsRepository) readRange(ctx context.Context, token, rangeRef string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/%s/values/%s", r.cfg.BaseURL, r.cfg.SpreadsheetID, url.PathEscape(rangeRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("leads: build read request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("leads: read range: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("leads: read range failed (%d): %s", resp.StatusCode, body)
	}

	var rangeResp struct {
		Values [][]string `json:"values"`
	}
	if err := json.Unmarshal(body, &rangeResp); err != nil {
		return nil, fmt.Errorf("leads: decode range response: %w", err)
	}
	return rangeResp.Values, nil
}

func (r *SheetsRepository) writeRange(ctx context.Context, token, rangeRef string, cells []string) error {
	endpoint := fmt.Sprintf("%s/%s/values/%s?valueInputOption=USER_ENTERED",
		r.cfg.BaseURL, r.cfg.SpreadsheetID, url.PathEscape(rangeRef))
	payload := map[string]any{"values": [][]string{cells}}
	return r.doJSON(ctx, token, http.MethodPut, endpoint, payload, "write range")
}

// insertTopRow shifts the sheet contents down by one row via batchUpdate.
func (r *SheetsRepository) insertTopRow(ctx context.Context, token string) error {
	sheetID, err := r.sheetID(ctx, token)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s:batchUpdate", r.cfg.BaseURL, r.cfg.SpreadsheetID)
	payload := map[string]any{
		"requests": []map[string]any{{
			"insertDimension": map[string]any{
				"range": map[string]any{
					"sheetId":    sheetID,
					"dimension":  "ROWS",
					"startIndex": 0,
					"endIndex":   1,
				},
				"inheritFromBefore": false,
			},
		}},
	}
	return r.doJSON(ctx, token, http.MethodPost, endpoint, payload, "insert header row")
}

// sheetID resolves the numeric sheet id for the configured sheet name, which
// batchUpdate requires instead of the name.
func (r *SheetsRepository) sheetID(ctx context.Context, token string) (int64, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=sheets.properties", r.cfg.BaseURL, r.cfg.SpreadsheetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("leads: build metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("leads: read spreadsheet metadata: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("leads: read spreadsheet metadata failed (%d): %s", resp.StatusCode, body)
	}

	var meta struct {
		Sheets []struct {
			Properties struct {
				SheetID int64  `json:"sheetId"`
				Title   string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return 0, fmt.Errorf("leads: decode spreadsheet metadata: %w", err)
	}
	for _, sheet := range meta.Sheets {
		if sheet.Properties.Title == r.cfg.SheetName {
			return sheet.Properties.SheetID, nil
		}
	}
	return 0, fmt.Errorf("leads: sheet %q not found in spreadsheet", r.cfg.SheetName)
}

func (r *SheetsRepository) doJSON(ctx context.Context, token, method, endpoint string, payload any, op string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("leads: marshal %s payload: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("leads: build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("leads: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("leads: %s failed (%d): %s", op, resp.StatusCode, body)
	}
	return nil
}

func recordCells(record *Record) []string {
	return []string{
		record.ThreadID,
		record.Timestamp,
		record.Name,
		record.Email,
		record.Phone,
		record.Services,
		record.Summary,
		record.Conversation,
	}
}
