package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/crochet_shop/internal/db"
	"github.com/Skotchmaster/crochet_shop/internal/events"
	"github.com/Skotchmaster/crochet_shop/internal/models"
	"github.com/Skotchmaster/crochet_shop/internal/repo"
	"github.com/Skotchmaster/crochet_shop/internal/service"
	"github.com/Skotchmaster/crochet_shop/internal/tokens"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
	"github.com/Skotchmaster/crochet_shop/internal/validation"
)

var (
	accessSecret  = []byte("http-access")
	refreshSecret = []byte("http-refresh")
)

type testEnv struct {
	e    *echo.Echo
	auth *service.AuthService
	hub  *events.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open(ctx, "sqlite", fmt.Sprintf("file:http_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })

	r := repo.New(gdb)
	hub := events.NewHub(8)
	t.Cleanup(hub.Close)

	authSvc := &service.AuthService{Repo: r, Events: hub, JWTSecret: accessSecret, RefreshSecret: refreshSecret}
	accounts := &service.AccountService{Repo: r, Events: hub}

	e := echo.New()
	e.Validator = validation.New()
	Register(e, &Deps{
		CartHandler:        &CartHTTP{Svc: &service.CartService{Repo: r, Events: hub}},
		OrderHandler:       &OrderHTTP{Svc: &service.OrderService{Repo: r, Events: hub}},
		AccountHandler:     &AccountHTTP{Svc: accounts},
		AuthHandler:        &AuthHTTP{Svc: authSvc, Accounts: accounts},
		TestimonialHandler: &TestimonialHTTP{Svc: &service.TestimonialService{Repo: r, Events: hub}, Hub: hub},
		JWTSecret:          accessSecret,
		Refresher:          authSvc,
		Ready:              r.Ping,
	})
	return &testEnv{e: e, auth: authSvc, hub: hub}
}

type caller struct {
	id    uuid.UUID
	token string
}

func (env *testEnv) register(t *testing.T, username string) caller {
	t.Helper()
	u, err := env.auth.Register(context.Background(), transport.RegisterRequest{
		FullName: "Test " + username,
		Username: username,
		Email:    username + "@example.com",
		Password: "yarn-and-hook",
	})
	require.NoError(t, err)
	tok, err := tokens.NewAccessToken(u.ID.String(), models.RoleUser, time.Now().Add(time.Minute), accessSecret)
	require.NoError(t, err)
	return caller{id: u.ID, token: tok}
}

func adminCaller(t *testing.T) caller {
	t.Helper()
	id := uuid.New()
	tok, err := tokens.NewAccessToken(id.String(), models.RoleAdmin, time.Now().Add(time.Minute), accessSecret)
	require.NoError(t, err)
	return caller{id: id, token: tok}
}

func (env *testEnv) do(t *testing.T, as *caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload string
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		payload = string(b)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if as != nil {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+as.token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

var homeAddress = map[string]any{
	"line1": "12 Mabini St", "city": "Calamba City", "state": "Laguna", "postalCode": "4027", "country": "PH",
}

func exampleOrderBody(total string) map[string]any {
	return map[string]any{
		"products": []map[string]any{
			{"id": "p1", "name": "Bunny", "price": 150, "qty": 2},
			{"id": "p2", "name": "Bear", "price": 300, "qty": 1},
		},
		"shippingAddress": homeAddress,
		"shippingFee":     36,
		"total":           json.Number(total),
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, nil, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, nil, http.MethodGet, "/health/ready", nil).Code)
}

func TestShippingRegions(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, nil, http.MethodGet, "/api/v1/shipping/regions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Calamba City")
}

func TestCart_SelfOnlyAndRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	path := "/api/v1/cart/" + alice.id.String()

	assert.Equal(t, http.StatusUnauthorized, env.do(t, nil, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, &bob, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, &alice, http.MethodGet, "/api/v1/cart/not-a-uuid", nil).Code)

	rec := env.do(t, &alice, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	empty := decode[models.Cart](t, rec)
	assert.Empty(t, empty.Items)

	rec = env.do(t, &alice, http.MethodPost, path, map[string]any{
		"items":  []map[string]any{{"_id": "p1", "name": "Bunny", "price": 150, "qty": 2}},
		"region": "South Luzon",
		"city":   "Calamba City",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, &alice, http.MethodPost, path+"/merge", map[string]any{
		"items": []map[string]any{{"id": "p1", "quantity": 1}, {"productId": "p2", "price": 300}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	merged := decode[models.Cart](t, rec)
	require.Len(t, merged.Items, 2)
	assert.Equal(t, 3, merged.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(36).Equal(merged.ShippingFee))

	// Last write wins.
	rec = env.do(t, &alice, http.MethodPost, path, map[string]any{"items": []map[string]any{}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, &alice, http.MethodGet, path, nil)
	assert.Empty(t, decode[models.Cart](t, rec).Items)

	rec = env.do(t, &alice, http.MethodPost, path, map[string]any{
		"items": []map[string]any{{"id": "p1", "qty": 0}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrders_PlaceAndCancel(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	rec := env.do(t, &alice, http.MethodPost, "/api/v1/orders", exampleOrderBody("600"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := exampleOrderBody("636")
	body["userId"] = bob.id.String()
	assert.Equal(t, http.StatusForbidden, env.do(t, &alice, http.MethodPost, "/api/v1/orders", body).Code)

	rec = env.do(t, &alice, http.MethodPost, "/api/v1/orders", exampleOrderBody("636"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decode[models.Order](t, rec)
	assert.Equal(t, alice.id, order.UserID)
	assert.Equal(t, "alice", order.Username)

	linePath := fmt.Sprintf("/api/v1/orders/%s/product/", order.ID)

	assert.Equal(t, http.StatusForbidden, env.do(t, &bob, http.MethodDelete, linePath+"p2", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, &alice, http.MethodDelete, linePath+"p9", nil).Code)

	rec = env.do(t, &alice, http.MethodDelete, linePath+"p2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[transport.CancelLineResponse](t, rec)
	assert.False(t, res.OrderDeleted)
	require.NotNil(t, res.Order)
	assert.True(t, decimal.NewFromInt(336).Equal(res.Order.Total))
	assert.Len(t, res.Order.Lines, 1)

	rec = env.do(t, &alice, http.MethodDelete, linePath+"p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[transport.CancelLineResponse](t, rec).OrderDeleted)

	rec = env.do(t, &alice, http.MethodGet, "/api/v1/orders/myorders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.Order](t, rec))
}

func TestOrders_AdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	admin := adminCaller(t)

	rec := env.do(t, &alice, http.MethodPost, "/api/v1/orders", exampleOrderBody("636"))
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decode[models.Order](t, rec)

	assert.Equal(t, http.StatusForbidden, env.do(t, &alice, http.MethodGet, "/api/v1/orders", nil).Code)

	rec = env.do(t, &admin, http.MethodGet, "/api/v1/orders?status=pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[transport.OrdersPage](t, rec)
	assert.EqualValues(t, 1, page.Total)

	statusPath := fmt.Sprintf("/api/v1/orders/%s/status", order.ID)
	assert.Equal(t, http.StatusBadRequest, env.do(t, &admin, http.MethodPatch, statusPath, map[string]any{}).Code)
	rec = env.do(t, &admin, http.MethodPatch, statusPath, map[string]any{"status": "shipped"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, &alice, http.MethodDelete, fmt.Sprintf("/api/v1/orders/%s", order.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUsers_UpdateGating(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	path := "/api/v1/users/" + alice.id.String()

	assert.Equal(t, http.StatusBadRequest, env.do(t, &alice, http.MethodPatch, path, map[string]any{"username": "x"}).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, &alice, http.MethodPatch, path, map[string]any{"password": "bad", "username": "x"}).Code)

	rec := env.do(t, &alice, http.MethodPatch, path, map[string]any{"password": "yarn-and-hook", "username": "alice2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "alice2", decode[models.User](t, rec).Username)

	rec = env.do(t, &alice, http.MethodPatch, path, map[string]any{"password": "yarn-and-hook", "username": "alice3"})
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 7, body["daysRemaining"])
	assert.Contains(t, body["message"], "7 day(s)")

	rec = env.do(t, &alice, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "yarn-and-hook")
	assert.NotContains(t, rec.Body.String(), "passwordHash")
}

func TestAuth_RegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	reg := map[string]any{"fullName": "Carol", "username": "carol", "email": "carol@example.com", "password": "granny-square"}
	require.Equal(t, http.StatusCreated, env.do(t, nil, http.MethodPost, "/api/v1/auth/register", reg).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, nil, http.MethodPost, "/api/v1/auth/register", reg).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, nil, http.MethodPost, "/api/v1/auth/register", map[string]any{"email": "bad"}).Code)

	rec := env.do(t, nil, http.MethodPost, "/api/v1/auth/login", map[string]any{"email": "carol@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, nil, http.MethodPost, "/api/v1/auth/login", map[string]any{"email": "carol@example.com", "password": "granny-square"})
	require.Equal(t, http.StatusOK, rec.Code)
	tok := decode[transport.TokenResponse](t, rec)
	assert.NotEmpty(t, tok.AccessToken)
	assert.NotEmpty(t, tok.RefreshToken)
	assert.Len(t, rec.Result().Cookies(), 2)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/user", nil)
	req.AddCookie(&http.Cookie{Name: tokens.AccessCookie, Value: tok.AccessToken})
	me := httptest.NewRecorder()
	env.e.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "carol", decode[models.User](t, me).Username)

	rec = env.do(t, nil, http.MethodPost, "/api/v1/auth/refresh", map[string]any{"refreshToken": tok.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decode[transport.TokenResponse](t, rec)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, nil, http.MethodPost, "/api/v1/auth/refresh", map[string]any{"refreshToken": tok.RefreshToken}).Code)

	assert.Equal(t, http.StatusOK, env.do(t, nil, http.MethodPost, "/api/v1/auth/logout", map[string]any{"refreshToken": rotated.RefreshToken}).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, nil, http.MethodPost, "/api/v1/auth/refresh", map[string]any{"refreshToken": rotated.RefreshToken}).Code)
}

func TestTestimonials(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	admin := adminCaller(t)

	assert.Equal(t, http.StatusBadRequest, env.do(t, nil, http.MethodPost, "/api/v1/testimonials", map[string]any{"quote": "Nice", "author": "Dee", "rating": 9}).Code)

	rec := env.do(t, nil, http.MethodPost, "/api/v1/testimonials", map[string]any{"quote": "Nice", "author": "Dee", "rating": 5})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Testimonial](t, rec)

	rec = env.do(t, nil, http.MethodGet, "/api/v1/testimonials", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Testimonial](t, rec), 1)

	path := "/api/v1/testimonials/" + created.ID.String()
	assert.Equal(t, http.StatusForbidden, env.do(t, &alice, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, &admin, http.MethodDelete, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, &admin, http.MethodDelete, path, nil).Code)
}

func TestTestimonials_Stream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/testimonials/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get(echo.HeaderContentType))

	// Headers arrive after the handler subscribed, so this event is seen.
	rec := env.do(t, nil, http.MethodPost, "/api/v1/testimonials", map[string]any{"quote": "Cozy", "author": "Eve", "rating": 4})
	require.Equal(t, http.StatusCreated, rec.Code)

	lines := nextEvent(t, resp)
	require.Len(t, lines, 2)
	assert.Equal(t, "event: testimonial_inserted", lines[0])
	assert.Contains(t, lines[1], `"quote":"Cozy"`)
}

func TestTestimonials_StreamOutlivesWriteTimeout(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewUnstartedServer(env.e)
	srv.Config.WriteTimeout = 300 * time.Millisecond
	srv.Start()
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/testimonials/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	time.Sleep(500 * time.Millisecond)
	rec := env.do(t, nil, http.MethodPost, "/api/v1/testimonials", map[string]any{"quote": "Still here", "author": "Ivy", "rating": 5})
	require.Equal(t, http.StatusCreated, rec.Code)

	lines := nextEvent(t, resp)
	require.Len(t, lines, 2)
	assert.Equal(t, "event: testimonial_inserted", lines[0])
	assert.Contains(t, lines[1], `"quote":"Still here"`)
}

// nextEvent reads lines up to the blank line that ends one event.
func nextEvent(t *testing.T, resp *http.Response) []string {
	t.Helper()
	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" && len(lines) > 0 {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
