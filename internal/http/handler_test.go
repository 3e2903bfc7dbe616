package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-reader/internal/auth"
	"plate-reader/internal/config"
	"plate-reader/internal/domain/reader"
	"plate-reader/internal/http/middleware"
	"plate-reader/internal/model"
	"plate-reader/internal/service"
	"plate-reader/internal/storage"
)

const testSecret = "test-secret"

type stubFinder struct {
	err error
}

func (f stubFinder) FindPlate(string) (*reader.Crop, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &reader.Crop{
		Region:     image.Rect(0, 0, 120, 40),
		Candidates: 1,
		Image:      image.NewGray(image.Rect(0, 0, 120, 40)),
	}, nil
}

type stubEngine struct{}

func (stubEngine) Name() string { return "stub" }

func (stubEngine) Recognize(context.Context, string) (string, error) {
	return "0B34567\n", nil
}

type stubStore struct {
	runs    []reader.Run
	deleted int
}

func (s *stubStore) CreateRun(_ context.Context, run *reader.Run) error {
	s.runs = append(s.runs, *run)
	return nil
}

func (s *stubStore) GetRun(_ context.Context, id uuid.UUID) (*reader.Run, error) {
	for _, r := range s.runs {
		if r.ID == id {
			run := r
			return &run, nil
		}
	}
	return nil, reader.ErrNotFound
}

func (s *stubStore) FindRuns(context.Context, reader.RunFilter) ([]reader.Run, error) {
	return s.runs, nil
}

func (s *stubStore) DeleteOldRuns(_ context.Context, days int) (int64, error) {
	s.deleted = days
	return 3, nil
}

type testServer struct {
	router *gin.Engine
	store  *stubStore
	tokens *auth.Parser
}

func newTestServer(t *testing.T, finder service.PlateFinder, withHistory bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Environment:        "test",
		Input:              config.InputConfig{DataDir: t.TempDir()},
		RunRetentionDays:   30,
		MaxUploadSizeBytes: 1 << 20,
	}

	deps := service.Deps{
		Finder: finder,
		Engine: stubEngine{},
		Local:  storage.NewLocal(t.TempDir(), 0),
	}
	var store *stubStore
	if withHistory {
		store = &stubStore{}
		deps.Store = store
	}

	svc := service.NewReaderService(deps, zerolog.Nop())
	tokens := auth.NewParser(testSecret)
	handler := NewHandler(svc, cfg, zerolog.Nop())
	router := NewRouter(handler, middleware.Auth(tokens), cfg.Environment, nil, zerolog.Nop())

	return &testServer{router: router, store: store, tokens: tokens}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func imageUpload(t *testing.T, field string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, "car.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("not really a jpeg"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plates/recognize", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, stubFinder{}, false)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","history":"disabled"}`, rec.Body.String())
}

func TestCorrectPlate(t *testing.T) {
	s := newTestServer(t, stubFinder{}, false)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantBody   string
	}{
		{
			name:       "default layout",
			body:       map[string]string{"text": "0B34567"},
			wantStatus: http.StatusOK,
			wantBody:   `{"raw":"0B34567","corrected":"OB34567","layout":"default"}`,
		},
		{
			name:       "trailing newline kept",
			body:       map[string]string{"text": "AB1234Z\n"},
			wantStatus: http.StatusOK,
			wantBody:   `{"raw":"AB1234Z\n","corrected":"AB123A2\n","layout":"default"}`,
		},
		{
			name:       "unknown layout",
			body:       map[string]string{"text": "0B34567", "layout": "nope"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(jsonRequest(http.MethodPost, "/api/v1/plates/correct", tt.body))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plates/correct", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestListLayouts(t *testing.T) {
	s := newTestServer(t, stubFinder{}, false)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/layouts", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"default":"default","layouts":["default"]}`, rec.Body.String())
}

func TestRecognizePlate(t *testing.T) {
	s := newTestServer(t, stubFinder{}, true)

	rec := s.do(imageUpload(t, "image"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data reader.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "0B34567\n", resp.Data.RawText)
	assert.Equal(t, "OB34567\n", resp.Data.CorrectedText)
	assert.Equal(t, "stub", resp.Data.Engine)
	assert.Contains(t, resp.Data.SourceImage, "car.jpg")
	assert.Len(t, s.store.runs, 1)
}

func TestRecognizePlateErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		s := newTestServer(t, stubFinder{}, false)
		rec := s.do(imageUpload(t, "photo"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no plate", func(t *testing.T) {
		s := newTestServer(t, stubFinder{err: reader.ErrNoPlate}, false)
		rec := s.do(imageUpload(t, "image"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unreadable image", func(t *testing.T) {
		s := newTestServer(t, stubFinder{err: reader.ErrImageUnreadable}, false)
		rec := s.do(imageUpload(t, "image"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func (s *testServer) token(t *testing.T, role model.UserRole) string {
	t.Helper()
	token, err := s.tokens.Issue(string(role)+"-user", role, time.Hour)
	require.NoError(t, err)
	return token
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRunsHistoryDisabled(t *testing.T) {
	s := newTestServer(t, stubFinder{}, false)
	operator := s.token(t, model.UserRoleOperator)

	for _, path := range []string{"/api/v1/runs", "/api/v1/runs/export", "/api/v1/runs/" + uuid.NewString()} {
		rec := s.do(withBearer(httptest.NewRequest(http.MethodGet, path, nil), operator))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestExportRunsRequiresOperator(t *testing.T) {
	s := newTestServer(t, stubFinder{}, true)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs/export", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/runs/export", nil), s.token(t, "VIEWER")))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	for _, role := range []model.UserRole{model.UserRoleOperator, model.UserRoleAdmin} {
		rec = s.do(withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/runs/export", nil), s.token(t, role)))
		assert.Equal(t, http.StatusOK, rec.Code, role)
	}
}

func TestRuns(t *testing.T) {
	s := newTestServer(t, stubFinder{}, true)
	id := uuid.New()
	s.store.runs = []reader.Run{{ID: id, SourceImage: "a.jpg", CorrectedText: "OB34567", CreatedAt: time.Now()}}

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs?plate=ob34567&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []reader.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, id, list.Data[0].ID)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+id.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/runs?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/runs/export", nil), s.token(t, model.UserRoleOperator)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.NotZero(t, rec.Body.Len())
}

func TestDeleteOldRuns(t *testing.T) {
	s := newTestServer(t, stubFinder{}, true)

	admin, err := s.tokens.Issue("admin", model.UserRoleAdmin, time.Hour)
	require.NoError(t, err)
	operator, err := s.tokens.Issue("op", model.UserRoleOperator, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusUnauthorized, s.do(req).Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, s.do(req).Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer "+operator)
	assert.Equal(t, http.StatusForbidden, s.do(req).Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/runs", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := s.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, s.store.deleted)
	assert.JSONEq(t, `{"status":"ok","deleted_count":3,"days":30}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/runs?older_than_days=7", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusOK, s.do(req).Code)
	assert.Equal(t, 7, s.store.deleted)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/runs?older_than_days=abc", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}
