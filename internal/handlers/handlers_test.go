package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bizrent_ledger/internal/ledger"
	"bizrent_ledger/internal/middleware"
	"bizrent_ledger/internal/models"
	"bizrent_ledger/internal/services"
)

var (
	testNow  = time.Date(2024, time.June, 10, 12, 0, 0, 0, time.UTC)
	pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 64)...)
)

type testApp struct {
	t      *testing.T
	e      *echo.Echo
	db     *gorm.DB
	ledger *ledger.Ledger
	tokens *services.TokenService
	cache  *services.RedisCache
	redis  *miniredis.Miniredis

	landlord models.User
	tenant   models.User
	unit     models.Unit
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, services.AutoMigrate(db))

	mr := miniredis.RunT(t)
	cache := services.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cache.Close() })

	tokens, err := services.NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)
	files, err := services.NewLocalFileStore(t.TempDir(), "https://rent.test")
	require.NoError(t, err)

	l := ledger.New(ledger.Options{
		DB:     db,
		Files:  files,
		Cache:  cache,
		Now:    func() time.Time { return testNow },
		AppURL: "https://rent.test",
	})

	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = middleware.ErrorHandler
	RegisterRoutes(e, Handlers{
		Auth:        NewAuthHandler(services.NewAccountService(db, tokens)),
		Preferences: NewUserPreferenceHandler(services.NewPreferenceService(db)),
		Dashboard:   NewDashboardHandler(l, cache),
		Invoices:    NewInvoiceHandler(l),
		Payments:    NewPaymentHandler(l, cache, 0),
		Properties:  NewPropertyHandler(l),
		Users:       NewUserHandler(l),
		Public:      NewPublicHandler(l, db),
	}, services.NewJWTAuthenticator(db, tokens))

	app := &testApp{t: t, e: e, db: db, ledger: l, tokens: tokens, cache: cache, redis: mr}
	app.landlord = app.user("owner@rent.test", models.RoleLandlord)
	app.tenant = app.user("tenant@rent.test", models.RoleTenant)

	prop := models.Property{LandlordID: app.landlord.ID, Name: "Maple Court", City: "Springfield"}
	require.NoError(t, db.Create(&prop).Error)
	app.unit = models.Unit{PropertyID: prop.ID, UnitNumber: "101", Rent: decimal.NewFromInt(1200), TenantID: &app.tenant.ID}
	require.NoError(t, db.Create(&app.unit).Error)
	return app
}

func (a *testApp) user(email string, role models.Role) models.User {
	u := models.User{Email: email, FirstName: "Test", LastName: string(role), Role: role}
	require.NoError(a.t, a.db.Create(&u).Error)
	return u
}

func (a *testApp) token(u models.User) string {
	token, _, err := a.tokens.Issue(&u)
	require.NoError(a.t, err)
	return token
}

func (a *testApp) invoice(amount string, status models.InvoiceStatus) models.Invoice {
	inv := models.Invoice{
		TenantID:    a.tenant.ID,
		UnitID:      a.unit.ID,
		Amount:      decimal.RequireFromString(amount),
		DueDate:     testNow.AddDate(0, 0, 5),
		Status:      status,
		Description: "Rent for June 2024 - Unit 101",
	}
	require.NoError(a.t, a.db.Create(&inv).Error)
	return inv
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	token       string
	headers     map[string]string
}

func (a *testApp) do(r request) *httptest.ResponseRecorder {
	req := httptest.NewRequest(r.method, r.path, r.body)
	if r.contentType != "" {
		req.Header.Set(echo.HeaderContentType, r.contentType)
	}
	if r.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) json(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	return a.do(request{method: method, path: path, body: reader, contentType: echo.MIMEApplicationJSON, token: token})
}

// multipartBody builds a payment submission form with the proof in the "proof" field
func multipartBody(t *testing.T, txID, filename string, data []byte) (io.Reader, string) {
	return paymentForm(t, map[string]string{"transactionId": txID}, "proof", filename, data)
}

func paymentForm(t *testing.T, fields map[string]string, fileField, filename string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Field   string          `json:"field"`
	Reason  string          `json:"reason"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, data), string(env.Data))
	}
	return env
}
