package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartfarm.io/farm/internal/api/middleware"
	"smartfarm.io/farm/internal/api/openapi"
	"smartfarm.io/farm/internal/domain"
	"smartfarm.io/farm/internal/export"
	"smartfarm.io/farm/internal/jobs"
	"smartfarm.io/farm/internal/pkg/logger"
	"smartfarm.io/farm/internal/pkg/worker"
	"smartfarm.io/farm/internal/repository/memory"
	"smartfarm.io/farm/internal/service"
	"smartfarm.io/farm/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

type testAPI struct {
	t      *testing.T
	engine *gin.Engine
	repo   *memory.Store
	jwt    middleware.JWTConfig
	media  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()

	pools, err := worker.NewPools(ctx, worker.PoolConfig{GeneralPoolSize: 4, StoragePoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)

	media := t.TempDir()
	store, err := storage.NewLocal(media, "/media")
	require.NoError(t, err)
	cleanup := jobs.NewDetachedImageCleanup(pools, store)

	jwtCfg := middleware.JWTConfig{SigningKey: []byte("handler-test-key-0123456789abcdef"), Issuer: "smartfarm", ExpiresIn: time.Hour}
	srv := NewServer(ServerDeps{
		Repo:       repo,
		Users:      service.NewUserService(repo, middleware.NewTokenIssuer(jwtCfg)),
		Plots:      service.NewPlotService(repo, cleanup),
		Cycles:     service.NewCycleService(repo),
		Activities: service.NewActivityService(repo, cleanup),
		Aggregates: service.NewAggregationService(repo),
		Catalog:    service.NewCatalogService(repo, time.Minute),
		Admin:      service.NewAdminService(repo, pools.General),
		Uploads:    service.NewUploadService(store, pools.Storage, 1024),
	})

	doc, err := openapi.Load(ctx)
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.ErrorHandler())
	v1 := engine.Group("/api/v1")
	v1.Use(middleware.MustOpenAPIValidator(doc, "/api/v1"))
	srv.RegisterPublic(v1)
	authed := v1.Group("", middleware.JWTAuth(jwtCfg))
	srv.RegisterAuthenticated(authed)
	srv.RegisterAdmin(authed.Group("/admin", middleware.RequireRole(domain.RoleAdmin)))

	for _, u := range []domain.User{
		{ID: "farmer-1", Name: "Somchai", Username: "somchai", Role: domain.RoleFarmer, CreatedAt: time.Now()},
		{ID: "farmer-2", Name: "Malee", Username: "malee", Role: domain.RoleFarmer, CreatedAt: time.Now()},
		{ID: "admin-1", Name: "Admin", Username: "admin", Role: domain.RoleAdmin, CreatedAt: time.Now()},
	} {
		u := u
		require.NoError(t, repo.CreateUser(ctx, &u))
	}

	return &testAPI{t: t, engine: engine, repo: repo, jwt: jwtCfg, media: media}
}

func (a *testAPI) token(userID string) string {
	a.t.Helper()
	u, err := a.repo.GetUser(context.Background(), userID)
	require.NoError(a.t, err)
	tok, _, err := middleware.GenerateToken(a.jwt, u.ID, u.Username, u.Role)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.Equal(t, code, body["code"])
	assert.NotEmpty(t, body["message"])
}

type idBody struct {
	ID string `json:"id"`
}

// adminCatalog creates Rice / Jasmine 105 with a one-task plan.
func (a *testAPI) adminCatalog() (varietyID, planID string) {
	a.t.Helper()
	admin := a.token("admin-1")
	w := a.do(http.MethodPost, "/admin/crop-types", admin, map[string]any{"name": "Rice", "nameTh": "ข้าว"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	rice := decode[idBody](a.t, w)

	w = a.do(http.MethodPost, "/admin/varieties", admin, map[string]any{
		"cropTypeId": rice.ID, "name": "Jasmine 105", "nameTh": "ข้าวหอมมะลิ 105", "growthPeriodDays": 120,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	variety := decode[idBody](a.t, w)

	w = a.do(http.MethodPost, "/admin/standard-plans", admin, map[string]any{
		"name":       "Jasmine plan",
		"varietyIds": []string{variety.ID},
		"tasks":      []map[string]any{{"title": "Plant", "dayFromStart": 0, "activityType": "PLANTING"}},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return variety.ID, decode[idBody](a.t, w).ID
}

func TestAPI_Health(t *testing.T) {
	api := newTestAPI(t)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/health/live", "", nil).Code)
	w := api.do(http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"ok"}}`, w.Body.String())
}

func TestAPI_RegisterLoginProfile(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/auth/register", "", map[string]any{"username": "prasert", "password": "secret1", "name": "Prasert"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret1")

	w = api.do(http.MethodPost, "/auth/login", "", map[string]any{"username": "prasert", "password": "nope"})
	requireError(t, w, http.StatusUnauthorized, "INVALID_CREDENTIALS")

	w = api.do(http.MethodPost, "/auth/login", "", map[string]any{"username": "prasert", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	session := decode[struct {
		Token string `json:"token"`
	}](t, w)
	require.NotEmpty(t, session.Token)

	w = api.do(http.MethodGet, "/me", session.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[map[string]any](t, w)
	assert.Equal(t, "prasert", profile["username"])
	assert.Equal(t, true, profile["hasPassword"])
	assert.NotContains(t, profile, "passwordHash")

	w = api.do(http.MethodPost, "/auth/login", "", map[string]any{"username": "prasert"})
	requireError(t, w, http.StatusBadRequest, "VALIDATION_FAILED")
}

func TestAPI_LastLoginMethod(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token("farmer-1")

	w := api.do(http.MethodPost, "/me/accounts", tok, map[string]any{"provider": "line", "providerAccountId": "U1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodDelete, "/me/accounts/line", tok, nil)
	requireError(t, w, http.StatusConflict, "LAST_LOGIN_METHOD")
}

func TestAPI_Unauthorized(t *testing.T) {
	api := newTestAPI(t)
	requireError(t, api.do(http.MethodGet, "/plots", "", nil), http.StatusUnauthorized, "UNAUTHORIZED")

	farmer := api.token("farmer-1")
	w := api.do(http.MethodPost, "/plots", farmer, map[string]any{"name": "North", "latitude": 14.3, "longitude": 100.5})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	plot := decode[idBody](t, w)

	stranger := api.token("farmer-2")
	requireError(t, api.do(http.MethodGet, "/plots/"+plot.ID, stranger, nil), http.StatusUnauthorized, "UNAUTHORIZED")
	requireError(t, api.do(http.MethodGet, "/plots/no-such-plot", farmer, nil), http.StatusUnauthorized, "UNAUTHORIZED")
	requireError(t, api.do(http.MethodGet, "/admin/stats", farmer, nil), http.StatusUnauthorized, "UNAUTHORIZED")
	requireError(t, api.do(http.MethodPost, "/admin/crop-types", farmer, map[string]any{"name": "Fruits"}), http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestAPI_CycleFlow(t *testing.T) {
	api := newTestAPI(t)
	varietyID, planID := api.adminCatalog()
	farmer := api.token("farmer-1")

	w := api.do(http.MethodPost, "/plots", farmer, map[string]any{
		"name": "North field", "sizeRai": 1, "sizeNgan": 2, "sizeWa": 200, "latitude": 14.3, "longitude": 100.5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	plot := decode[idBody](t, w)

	requireError(t, api.do(http.MethodPost, "/plots/"+plot.ID+"/cycles", farmer, map[string]any{}), http.StatusBadRequest, "VALIDATION_FAILED")
	requireError(t, api.do(http.MethodPost, "/plots/"+plot.ID+"/cycles", farmer, map[string]any{"cropVarietyId": "ghost"}), http.StatusNotFound, "VARIETY_NOT_FOUND")

	w = api.do(http.MethodPost, "/plots/"+plot.ID+"/cycles", farmer, map[string]any{"cropVarietyId": varietyID, "startDate": "2025-01-05"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cycle := decode[struct {
		ID             string `json:"id"`
		Status         string `json:"status"`
		StandardPlanID string `json:"standardPlanId"`
	}](t, w)
	assert.Equal(t, "ACTIVE", cycle.Status)
	assert.Equal(t, planID, cycle.StandardPlanID)

	w = api.do(http.MethodPost, "/plots/"+plot.ID+"/cycles", farmer, map[string]any{"cropVarietyId": varietyID})
	requireError(t, w, http.StatusConflict, "CYCLE_ALREADY_ACTIVE")

	w = api.do(http.MethodPost, "/cycles/"+cycle.ID+"/activities", farmer, map[string]any{"type": "PLANTING", "activityDate": "2025-01-06", "cost": 150})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = api.do(http.MethodPost, "/cycles/"+cycle.ID+"/activities", farmer, map[string]any{"type": "HARVESTING", "activityDate": "2025-01-20T08:00:00+07:00", "income": 900})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	harvest := decode[idBody](t, w)

	w = api.do(http.MethodGet, "/cycles/"+cycle.ID+"/stats", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[domain.CycleStats](t, w)
	assert.Equal(t, domain.Totals{TotalCost: 150, TotalIncome: 900, NetProfit: 750, ActivityCount: 2}, stats.Totals)

	w = api.do(http.MethodGet, "/cycles/"+cycle.ID+"/stats/by-type", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	byType := decode[map[string]domain.TypeTotals](t, w)
	assert.Equal(t, domain.TypeTotals{Count: 1, TotalIncome: 900}, byType["HARVESTING"])

	w = api.do(http.MethodGet, "/summary?startDate=2025-01-01&endDate=2025-01-31", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sum := decode[service.Summary](t, w)
	require.Len(t, sum.ActivePlots, 1)
	assert.Equal(t, "ข้าวหอมมะลิ 105", sum.ActivePlots[0].CropName)
	assert.Equal(t, 750.0, sum.ActiveTotals.NetProfit)
	assert.Empty(t, sum.CompletedPlots)

	requireError(t, api.do(http.MethodGet, "/summary?endDate=2025-01-31", farmer, nil), http.StatusBadRequest, "DATE_RANGE_REQUIRED")

	w = api.do(http.MethodPost, "/cycles/"+cycle.ID+"/complete", farmer, map[string]any{"endDate": "2025-01-25"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	requireError(t, api.do(http.MethodPost, "/cycles/"+cycle.ID+"/complete", farmer, nil), http.StatusUnprocessableEntity, "CYCLE_NOT_ACTIVE")
	requireError(t, api.do(http.MethodPost, "/cycles/"+cycle.ID+"/activities", farmer, map[string]any{"type": "OTHER"}), http.StatusUnprocessableEntity, "CYCLE_NOT_ACTIVE")

	// Closed cycles can still be corrected.
	w = api.do(http.MethodPatch, "/activities/"+harvest.ID, farmer, map[string]any{"income": 1000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/plots/"+plot.ID+"/cycles", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]service.CycleWithStats](t, w)
	require.Len(t, history, 1)
	assert.Equal(t, 850.0, history[0].Stats.NetProfit)

	w = api.do(http.MethodGet, "/plots/"+plot.ID, farmer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[map[string]any](t, w)
	assert.Equal(t, 2.0, detail["totalRai"])
	assert.Nil(t, detail["activeCycle"])
}

func TestAPI_ExportSummary(t *testing.T) {
	api := newTestAPI(t)
	farmer := api.token("farmer-1")

	w := api.do(http.MethodGet, "/summary/export?startDate=2025-01-01&endDate=2025-01-31", farmer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "summary_2025-01-01_2025-01-31.xlsx")
	assert.NotZero(t, w.Body.Len())

	requireError(t, api.do(http.MethodGet, "/summary/export", farmer, nil), http.StatusBadRequest, "DATE_RANGE_REQUIRED")
}

func TestAPI_CatalogGuards(t *testing.T) {
	api := newTestAPI(t)
	varietyID, _ := api.adminCatalog()
	admin := api.token("admin-1")

	w := api.do(http.MethodGet, "/crop-types", api.token("farmer-1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	types := decode[[]service.CropTypeWithVarieties](t, w)
	require.Len(t, types, 1)
	require.Len(t, types[0].Varieties, 1)

	requireError(t, api.do(http.MethodDelete, "/admin/crop-types/"+types[0].ID, admin, nil), http.StatusConflict, "CROP_TYPE_HAS_VARIETIES")
	requireError(t, api.do(http.MethodPost, "/admin/crop-types", admin, map[string]any{"name": "Rice"}), http.StatusConflict, "CATALOG_NAME_TAKEN")

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/admin/varieties/"+varietyID, admin, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/admin/crop-types/"+types[0].ID, admin, nil).Code)
	requireError(t, api.do(http.MethodGet, "/admin/crop-types/"+types[0].ID, admin, nil), http.StatusNotFound, "CROP_TYPE_NOT_FOUND")

	w = api.do(http.MethodGet, "/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalUsers":2,"totalPlots":0,"activeCycles":0,"totalActivities":0}`, w.Body.String())
}

func multipartBody(t *testing.T, files map[string][]byte, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (a *testAPI) upload(token string, body *bytes.Buffer, ct string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func TestAPI_Uploads(t *testing.T) {
	api := newTestAPI(t)
	farmer := api.token("farmer-1")

	body, ct := multipartBody(t, map[string][]byte{"leaf.jpg": []byte("jpeg")}, "image/jpeg")
	w := api.upload(farmer, body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	objects := decode[[]storage.Object](t, w)
	require.Len(t, objects, 1)
	assert.Equal(t, "/media/"+objects[0].PublicID, objects[0].URL)

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/uploads/"+objects[0].PublicID, farmer, nil).Code)
	requireError(t, api.do(http.MethodDelete, "/uploads/../secrets", farmer, nil), http.StatusBadRequest, "VALIDATION_FAILED")

	body, ct = multipartBody(t, map[string][]byte{"notes.txt": []byte("hi")}, "text/plain")
	requireError(t, api.upload(farmer, body, ct), http.StatusBadRequest, "IMAGE_TYPE_INVALID")

	body, ct = multipartBody(t, map[string][]byte{"big.png": bytes.Repeat([]byte{1}, 2048)}, "image/png")
	requireError(t, api.upload(farmer, body, ct), http.StatusBadRequest, "IMAGE_TOO_LARGE")

	body, ct = multipartBody(t, nil, "image/png")
	requireError(t, api.upload(farmer, body, ct), http.StatusBadRequest, "IMAGE_MISSING")
}
