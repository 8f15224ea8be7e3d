package leads

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSpreadsheetID = "sheet-1"

// fakeSheets emulates the handful of Sheets API calls the repository makes,
// backed by an in-memory grid.
type fakeSheets struct {
	t *testing.T

	mu            sync.Mutex
	rows          [][]string
	tokenRequests int
}

func (f *fakeSheets) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", f.handleToken)
	mux.HandleFunc("/", f.handleSheets)
	return mux
}

func (f *fakeSheets) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tokenRequests++
	f.mu.Unlock()

	require.NoError(f.t, r.ParseForm())
	assert.Equal(f.t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.Form.Get("grant_type"))
	assert.NotEmpty(f.t, r.Form.Get("assertion"))

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": "test-token",
		"expires_in":   3600,
	})
}

func (f *fakeSheets) handleSheets(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/sheets/"+testSpreadsheetID)
	switch {
	case path == ":batchUpdate" && r.Method == http.MethodPost:
		f.rows = append([][]string{{}}, f.rows...)
		writeJSON(w, http.StatusOK, map[string]any{})

	case path == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"sheets": []map[string]any{
				{"properties": map[string]any{"sheetId": 111, "title": "Sheet1"}},
			},
		})

	case strings.HasPrefix(path, "/values/"):
		f.handleValues(w, r, strings.TrimPrefix(path, "/values/"))

	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (f *fakeSheets) handleValues(w http.ResponseWriter, r *http.Request, rangeRef string) {
	switch {
	case strings.HasSuffix(rangeRef, ":append") && r.Method == http.MethodPost:
		f.rows = append(f.rows, f.decodeCells(r))
		writeJSON(w, http.StatusOK, map[string]any{})

	case rangeRef == "Sheet1!A1:H1" && r.Method == http.MethodGet:
		var values [][]string
		if len(f.rows) > 0 {
			values = [][]string{f.rows[0]}
		}
		writeJSON(w, http.StatusOK, map[string]any{"values": values})

	case rangeRef == "Sheet1!A:A" && r.Method == http.MethodGet:
		var values [][]string
		for _, row := range f.rows {
			if len(row) > 0 {
				values = append(values, []string{row[0]})
			} else {
				values = append(values, []string{})
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"values": values})

	case r.Method == http.MethodPut:
		var rowNum int
		_, err := fmt.Sscanf(rangeRef, "Sheet1!A%d:", &rowNum)
		require.NoError(f.t, err, "unexpected write range %q", rangeRef)

		for len(f.rows) < rowNum {
			f.rows = append(f.rows, []string{})
		}
		f.rows[rowNum-1] = f.decodeCells(r)
		writeJSON(w, http.StatusOK, map[string]any{})

	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (f *fakeSheets) decodeCells(r *http.Request) []string {
	var payload struct {
		Values [][]string `json:"values"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&payload))
	require.Len(f.t, payload.Values, 1)
	return payload.Values[0]
}

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

func newTestSheetsRepository(t *testing.T, fake *fakeSheets) *SheetsRepository {
	t.Helper()

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	repo, err := NewSheetsRepository(SheetsConfig{
		SpreadsheetID:       testSpreadsheetID,
		SheetName:           "Sheet1",
		ServiceAccountEmail: "bot@project.iam.gserviceaccount.com",
		PrivateKeyPEM:       testPrivateKeyPEM(t),
		BaseURL:             srv.URL + "/sheets",
		TokenURL:            srv.URL + "/token",
	}, nil)
	require.NoError(t, err)
	return repo
}

func TestSheetsUpsert_AppendsToEmptySheet(t *testing.T) {
	fake := &fakeSheets{t: t}
	repo := newTestSheetsRepository(t, fake)

	rec := &Record{ThreadID: "session_1_a", Timestamp: "2026-08-31T00:00:00Z", Name: "Maria"}
	require.NoError(t, repo.Upsert(context.Background(), rec))

	require.Len(t, fake.rows, 2)
	assert.Equal(t, headerRow, fake.rows[0])
	assert.Equal(t, "session_1_a", fake.rows[1][0])
	assert.Equal(t, "Maria", fake.rows[1][2])
}

func TestSheetsUpsert_UpdatesExistingThreadInPlace(t *testing.T) {
	fake := &fakeSheets{t: t}
	repo := newTestSheetsRepository(t, fake)

	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, &Record{ThreadID: "session_1_a", Name: "Maria"}))
	require.NoError(t, repo.Upsert(ctx, &Record{ThreadID: "session_2_b", Name: "Juan"}))
	require.NoError(t, repo.Upsert(ctx, &Record{ThreadID: "session_1_a", Name: "Maria Santos", Phone: "09171234567"}))

	require.Len(t, fake.rows, 3, "re-submitting a thread must not add a row")
	assert.Equal(t, "Maria Santos", fake.rows[1][2])
	assert.Equal(t, "09171234567", fake.rows[1][4])
	assert.Equal(t, "Juan", fake.rows[2][2])
}

func TestSheetsUpsert_CachesAccessToken(t *testing.T) {
	fake := &fakeSheets{t: t}
	repo := newTestSheetsRepository(t, fake)

	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, &Record{ThreadID: "a"}))
	require.NoError(t, repo.Upsert(ctx, &Record{ThreadID: "b"}))

	assert.Equal(t, 1, fake.tokenRequests)
}

func TestSheetsUpsert_InsertsHeaderAboveForeignContent(t *testing.T) {
	fake := &fakeSheets{t: t, rows: [][]string{{"old-data", "kept"}}}
	repo := newTestSheetsRepository(t, fake)

	require.NoError(t, repo.Upsert(context.Background(), &Record{ThreadID: "session_1_a"}))

	require.Len(t, fake.rows, 3)
	assert.Equal(t, headerRow, fake.rows[0])
	assert.Equal(t, []string{"old-data", "kept"}, fake.rows[1])
	assert.Equal(t, "session_1_a", fake.rows[2][0])
}

func TestNewSheetsRepository_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  SheetsConfig
	}{
		{"empty config", SheetsConfig{}},
		{"missing key", SheetsConfig{SpreadsheetID: "x", ServiceAccountEmail: "a@b.c"}},
		{"missing spreadsheet", SheetsConfig{ServiceAccountEmail: "a@b.c", PrivateKeyPEM: "pem"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSheetsRepository(tt.cfg, nil)
			assert.True(t, errors.Is(err, ErrNotConfigured))
		})
	}
}

func TestNewSheetsRepository_UnescapesPrivateKey(t *testing.T) {
	escaped := strings.ReplaceAll(testPrivateKeyPEM(t), "\n", `\n`)

	_, err := NewSheetsRepository(SheetsConfig{
		SpreadsheetID:       "x",
		ServiceAccountEmail: "a@b.c",
		PrivateKeyPEM:       escaped,
	}, nil)
	require.NoError(t, err)
}
