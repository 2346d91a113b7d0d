package reg_api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"ms-registration/internal/analytics"
	analytics_api "ms-registration/internal/analytics/api"
	"ms-registration/internal/assets"
	"ms-registration/internal/auth"
	"ms-registration/internal/catalog"
	"ms-registration/internal/config"
	"ms-registration/internal/logger"
	"ms-registration/internal/models"
	"ms-registration/internal/passes"
	"ms-registration/internal/registration"
	"ms-registration/internal/registration/db"
	"ms-registration/internal/registration/reg_api"
	"ms-registration/internal/sse"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// pngProof starts with the PNG signature so content sniffing accepts it.
var pngProof = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

type fakeAssets struct {
	mu        sync.Mutex
	uploaded  []string
	deleted   []string
	uploadErr error
}

func (f *fakeAssets) Upload(_ context.Context, _ []byte, meta assets.Metadata) (assets.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return assets.Asset{}, f.uploadErr
	}
	id := fmt.Sprintf("proofs/%s/%d.png", meta.EventTitle, len(f.uploaded))
	f.uploaded = append(f.uploaded, id)
	return assets.Asset{URL: "https://cdn.example.com/" + id, AssetID: id}, nil
}

func (f *fakeAssets) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAssets) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type testEnv struct {
	router  http.Handler
	store   *db.DB
	assets  *fakeAssets
	emitter *sse.SeatEventEmitter
	passes  *passes.Generator
	handler *reg_api.Handler
}

const adminPassword = "let-me-in"

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewWriterLogger(io.Discard)

	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, db.CreateSchema(context.Background(), bunDB))
	store := &db.DB{Bun: bunDB}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	authn, err := auth.NewAuthenticator(config.AdminConfig{
		Username:  "admin",
		Password:  adminPassword,
		JWTSecret: "test-secret",
	}, auth.NewRedisSessionStore(rdb), log)
	require.NoError(t, err)

	cat := catalog.Default()
	fake := &fakeAssets{}
	emitter := sse.NewSeatEventEmitter()
	gen := passes.NewGenerator("pass-secret")

	svc := registration.NewService(registration.Dependencies{
		Catalog: cat,
		Ledger:  store,
		Store:   store,
		Assets:  fake,
		Events:  sse.LocalPublisher{Emitter: emitter},
		Logger:  log,
	}, registration.Options{MaxUploadBytes: 5 << 20})

	h := reg_api.NewHandler(svc, emitter, gen, authn, log, 5<<20)
	stats := analytics_api.NewHandler(analytics.NewService(cat, store, store), log)

	r := chi.NewRouter()
	h.RegisterRoutes(r, nil, stats.RegisterRoutes)

	return &testEnv{router: r, store: store, assets: fake, emitter: emitter, passes: gen, handler: h}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, path string, payload models.RegistrationRequest, proof []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("payload", string(data)))
	if proof != nil {
		fw, err := mw.CreateFormFile("proof", "payment.png")
		require.NoError(t, err)
		_, err = fw.Write(proof)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func standupRequest(n int, row string, column int) models.RegistrationRequest {
	return models.RegistrationRequest{
		Name:               fmt.Sprintf("Participant %d", n),
		RegistrationNumber: fmt.Sprintf("21BCE%04d", n),
		Email:              fmt.Sprintf("p%d@example.com", n),
		Phone:              "9876543210",
		UTRID:              fmt.Sprintf("UTR%012d", n),
		Seat:               &models.SeatPosition{Row: row, Column: column},
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

type errorBody struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Error   string               `json:"error"`
	Field   string               `json:"field"`
	Seat    *models.SeatPosition `json:"seat"`
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	rec := e.do(jsonRequest(t, http.MethodPost, "/admin/login", models.LoginRequest{Username: "admin", Password: adminPassword}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp models.LoginResponse
	decode(t, rec, &resp)
	return resp.Token
}

var errUploadDown = errors.New("bucket unavailable")
