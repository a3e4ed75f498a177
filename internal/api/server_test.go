package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sounding_parser/internal/sounding"
	"sounding_parser/internal/storage"
)

const (
	aaText = "TTAA 51231 03808 99996 07819 17005 00057 00057 05008 31313"
	bbText = "TTBB 51238 03808 00996 07819 11995 08018 21212 00996 17005"
)

// fakeStore is an in-memory ProfileStore.
type fakeStore struct {
	records map[string][]storage.Record // newest first
	err     error
	limit   int
}

func (f *fakeStore) Latest(_ context.Context, station string) (*storage.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rs := f.records[station]; len(rs) > 0 {
		return &rs[0], nil
	}
	return nil, nil
}

func (f *fakeStore) List(_ context.Context, station string, limit int) ([]storage.Record, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	rs := f.records[station]
	if len(rs) > limit {
		rs = rs[:limit]
	}
	return rs, nil
}

func newTestStore() *fakeStore {
	return &fakeStore{records: map[string][]storage.Record{
		"03808": {
			{ID: uuid.New(), Station: "03808", Day: 2, Hour: 0, Profile: &sounding.Profile{Station: "03808"}},
			{ID: uuid.New(), Station: "03808", Day: 1, Hour: 12, Profile: &sounding.Profile{Station: "03808"}},
		},
	}}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	h := NewServer(nil, Config{}, nil).Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestDecodeEndpoint(t *testing.T) {
	h := NewServer(nil, Config{}, nil).Router()

	body, _ := json.Marshal(DecodeRequest{TTAA: aaText, TTBB: bbText})
	rec := do(t, h, http.MethodPost, "/decode", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DecodeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Profile)
	assert.Empty(t, resp.Errors)
	assert.Equal(t, "03808", resp.Profile.Station)
	assert.Len(t, resp.Profile.Mandatory, 1)
	assert.Len(t, resp.Profile.Significant, 2)
	assert.Equal(t, 5.9, *resp.Profile.Surface.Dewpoint)
}

func TestDecodeBulletinText(t *testing.T) {
	h := NewServer(nil, Config{}, nil).Router()

	text := "USUK01 EGRR 012300\n" + aaText + "=\n" + bbText + "="
	body, _ := json.Marshal(DecodeRequest{Text: text})
	rec := do(t, h, http.MethodPost, "/decode", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DecodeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Profile)
	assert.Len(t, resp.Profile.Significant, 2)
}

func TestDecodeTextWithSeparateTTBB(t *testing.T) {
	h := NewServer(nil, Config{}, nil).Router()

	body, _ := json.Marshal(DecodeRequest{TTBB: bbText, Text: aaText})
	rec := do(t, h, http.MethodPost, "/decode", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DecodeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Profile)
	assert.Len(t, resp.Profile.Mandatory, 1)
	assert.Len(t, resp.Profile.Significant, 2)
}

func TestDecodeErrors(t *testing.T) {
	h := NewServer(nil, Config{}, nil).Router()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"invalid json", "{", http.StatusBadRequest, "Invalid JSON"},
		{"nothing to decode", `{"ttbb": "` + bbText + `"}`, http.StatusBadRequest, "Invalid request"},
		{"bulletin without ttaa", `{"text": "` + bbText + `"}`, http.StatusUnprocessableEntity, "TTAA data is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/decode", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantError)
		})
	}
}

func TestDecodePartialResult(t *testing.T) {
	h := NewServer(nil, Config{}, nil).Router()

	rec := do(t, h, http.MethodPost, "/decode", `{"ttaa": "TTAA 5/231 03808 99996 07819 17005"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DecodeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Profile)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0], sounding.ErrHeader.Error())
	assert.Nil(t, resp.Profile.Day)
}

func TestDecodeCache(t *testing.T) {
	h := NewServer(nil, Config{CacheTTL: time.Minute}, nil).Router()
	body := `{"ttaa": "` + aaText + `"}`

	first := do(t, h, http.MethodPost, "/decode", body)
	second := do(t, h, http.MethodPost, "/decode", body)

	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	other := do(t, h, http.MethodPost, "/decode", `{"ttaa": "`+aaText+`", "ttbb": "`+bbText+`"}`)
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, cacheKey("a", "b"), cacheKey("a", "b"))
	assert.NotEqual(t, cacheKey("ab", ""), cacheKey("a", "b"))
}

func TestAuthMiddleware(t *testing.T) {
	h := NewServer(newTestStore(), Config{
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123", "another-key"},
	}, nil).Router()

	tests := []struct {
		name       string
		target     string
		apiKey     string
		keyHeader  string
		wantStatus int
	}{
		{"no key", "/profiles/03808/latest", "", "", http.StatusUnauthorized},
		{"invalid key", "/profiles/03808/latest", "wrong-key", "X-API-Key", http.StatusForbidden},
		{"valid key via X-API-Key", "/profiles/03808/latest", "test-key-123", "X-API-Key", http.StatusOK},
		{"valid key via Bearer", "/profiles/03808/latest", "another-key", "Authorization", http.StatusOK},
		{"valid key via query", "/profiles/03808/latest?api_key=test-key-123", "", "", http.StatusOK},
		{"health is open", "/health", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.apiKey != "" {
				if tt.keyHeader == "Authorization" {
					req.Header.Set("Authorization", "Bearer "+tt.apiKey)
				} else {
					req.Header.Set(tt.keyHeader, tt.apiKey)
				}
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestProfileEndpoints(t *testing.T) {
	store := newTestStore()
	h := NewServer(store, Config{}, nil).Router()

	rec := do(t, h, http.MethodGet, "/profiles/03808/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest storage.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&latest))
	assert.Equal(t, store.records["03808"][0].ID, latest.ID)

	rec = do(t, h, http.MethodGet, "/profiles/03808?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []storage.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	do(t, h, http.MethodGet, "/profiles/03808?limit=5000", "")
	assert.Equal(t, maxListLimit, store.limit)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"unknown station", "/profiles/72201/latest", http.StatusNotFound},
		{"empty list", "/profiles/72201", http.StatusOK},
		{"bad station", "/profiles/0380/latest", http.StatusBadRequest},
		{"bad limit", "/profiles/03808?limit=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, do(t, h, http.MethodGet, tt.target, "").Code)
		})
	}
}

func TestProfileEndpointsWithoutStore(t *testing.T) {
	h := NewServer(nil, Config{}, nil).Router()
	rec := do(t, h, http.MethodGet, "/profiles/03808/latest", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProfileStoreFailure(t *testing.T) {
	h := NewServer(&fakeStore{err: errors.New("connection refused")}, Config{}, nil).Router()

	rec := do(t, h, http.MethodGet, "/profiles/03808/latest", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")

	h = NewServer(&fakeStore{err: storage.ErrNoStore}, Config{}, nil).Router()
	rec = do(t, h, http.MethodGet, "/profiles/03808", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewServer(nil, Config{}, nil).Handler()
	rec := do(t, h, http.MethodOptions, "/api/v1/decode", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
