package routes

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pdabank/pdabank/internal/auth"
	"github.com/pdabank/pdabank/internal/config"
	"github.com/pdabank/pdabank/internal/identity"
	"github.com/pdabank/pdabank/internal/ledger"
	"github.com/pdabank/pdabank/internal/logging"
	"github.com/pdabank/pdabank/internal/middleware"
)

type client struct {
	id   identity.Identity
	priv ed25519.PrivateKey
}

func newClient(t *testing.T) client {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	id, err := identity.FromPublicKey(pub)
	require.NoError(t, err)
	return client{id: id, priv: priv}
}

type statementBody struct {
	Address      string `json:"address"`
	DisplayName  string `json:"display_name"`
	Balance      uint64 `json:"balance"`
	Owner        string `json:"owner"`
	RealValue    uint64 `json:"real_value"`
	Reserve      uint64 `json:"reserve"`
	Withdrawable uint64 `json:"withdrawable"`
}

func testConfig() config.Config {
	return config.Config{
		AppName:          "PDABank",
		AppEnv:           "test",
		IdempotencyTTL:   time.Minute,
		DomainTag:        identity.DefaultDomainTag,
		RecordSpace:      5000,
		Rent:             ledger.DefaultRent(),
		LockTTL:          time.Second,
		SignatureMaxSkew: time.Minute,
		FaucetEnabled:    true,
		FaucetMaxAmount:  1_000_000_000,
		RateLimitPerMin:  1_000,
	}
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	require.NoError(t, Setup(app, Deps{Cfg: testConfig(), Cache: cache, Logger: logging.Discard()}))
	return app
}

func (cl client) send(t *testing.T, app *fiber.App, method, path string, payload any, idemKey string) (int, []byte) {
	t.Helper()
	if idemKey == "" {
		idemKey = uuid.NewString()
	}
	return do(t, app, cl.request(t, method, path, payload, time.Now().Unix(), idemKey))
}

func (cl client) request(t *testing.T, method, path string, payload any, ts int64, idemKey string) *http.Request {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(middleware.IdentityHeader, cl.id.String())
	req.Header.Set(middleware.TimestampHeader, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.SignatureHeader, auth.Sign(cl.priv, method, path, ts, body))
	req.Header.Set("Idempotency-Key", idemKey)
	return req
}

func get(t *testing.T, app *fiber.App, path string) (int, []byte) {
	t.Helper()
	return do(t, app, httptest.NewRequest(http.MethodGet, path, nil))
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode(t *testing.T, raw []byte) statementBody {
	t.Helper()
	var st statementBody
	require.NoError(t, json.Unmarshal(raw, &st), string(raw))
	return st
}

func TestAccountLifecycle(t *testing.T) {
	app := newTestApp(t)
	a := newClient(t)
	b := newClient(t)
	reserve := ledger.DefaultRent().MinimumReserve(5000)

	status, raw := a.send(t, app, http.MethodPost, "/api/v1/faucet/airdrop", fiber.Map{"identity": a.id.String(), "amount": 100_000_000}, "")
	require.Equal(t, http.StatusOK, status, string(raw))

	status, raw = a.send(t, app, http.MethodPost, "/api/v1/accounts", fiber.Map{"name": "x"}, "")
	require.Equal(t, http.StatusCreated, status, string(raw))
	rec := decode(t, raw)
	require.Equal(t, "x", rec.DisplayName)
	require.Equal(t, a.id.String(), rec.Owner)
	require.Zero(t, rec.Balance)
	accountPath := "/api/v1/accounts/" + rec.Address

	status, _ = a.send(t, app, http.MethodPost, "/api/v1/accounts", fiber.Map{"name": "again"}, "")
	require.Equal(t, http.StatusConflict, status)

	status, raw = a.send(t, app, http.MethodPost, accountPath+"/deposit", fiber.Map{"amount": 50_000_000}, "")
	require.Equal(t, http.StatusOK, status, string(raw))
	require.Equal(t, uint64(50_000_000), decode(t, raw).Balance)

	status, _ = b.send(t, app, http.MethodPost, accountPath+"/withdraw", fiber.Map{"amount": 1}, "")
	require.Equal(t, http.StatusForbidden, status)

	status, _ = a.send(t, app, http.MethodPost, accountPath+"/withdraw", fiber.Map{"amount": 50_000_000 - reserve + 1}, "")
	require.Equal(t, http.StatusUnprocessableEntity, status)

	status, raw = a.send(t, app, http.MethodPost, accountPath+"/withdraw", fiber.Map{"amount": 10_000_000}, "")
	require.Equal(t, http.StatusOK, status, string(raw))
	require.Equal(t, uint64(40_000_000), decode(t, raw).Balance)

	status, raw = get(t, app, accountPath)
	require.Equal(t, http.StatusOK, status, string(raw))
	st := decode(t, raw)
	require.Equal(t, uint64(40_000_000), st.Balance)
	require.Equal(t, uint64(40_000_000), st.RealValue)
	require.Equal(t, reserve, st.Reserve)
	require.Equal(t, 40_000_000-reserve, st.Withdrawable)

	status, raw = get(t, app, "/api/v1/owners/"+a.id.String()+"/account")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, rec.Address, decode(t, raw).Address)

	status, raw = get(t, app, "/api/v1/identities/"+a.id.String()+"/balance")
	require.Equal(t, http.StatusOK, status)
	var bal struct {
		Balance uint64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(raw, &bal))
	require.Equal(t, uint64(100_000_000-40_000_000), bal.Balance)
}

func TestDepositReplayIsIdempotent(t *testing.T) {
	app := newTestApp(t)
	a := newClient(t)

	status, _ := a.send(t, app, http.MethodPost, "/api/v1/faucet/airdrop", fiber.Map{"identity": a.id.String(), "amount": 1_000}, "")
	require.Equal(t, http.StatusOK, status)
	status, raw := a.send(t, app, http.MethodPost, "/api/v1/accounts", fiber.Map{"name": "replay"}, "")
	require.Equal(t, http.StatusCreated, status)
	depositPath := "/api/v1/accounts/" + decode(t, raw).Address + "/deposit"

	key := uuid.NewString()
	status, first := a.send(t, app, http.MethodPost, depositPath, fiber.Map{"amount": 100}, key)
	require.Equal(t, http.StatusOK, status)
	status, second := a.send(t, app, http.MethodPost, depositPath, fiber.Map{"amount": 100}, key)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, string(first), string(second))
	require.Equal(t, uint64(100), decode(t, second).Balance)
}

func TestSignedRequestCannotBeReplayed(t *testing.T) {
	for name, withRedis := range map[string]bool{"redis": true, "memory": false} {
		t.Run(name, func(t *testing.T) {
			var app *fiber.App
			if withRedis {
				app = newTestApp(t)
			} else {
				app = fiber.New()
				require.NoError(t, Setup(app, Deps{Cfg: testConfig(), Logger: logging.Discard()}))
			}
			a := newClient(t)

			status, _ := a.send(t, app, http.MethodPost, "/api/v1/faucet/airdrop", fiber.Map{"identity": a.id.String(), "amount": 1_000}, "")
			require.Equal(t, http.StatusOK, status)
			status, raw := a.send(t, app, http.MethodPost, "/api/v1/accounts", fiber.Map{"name": "target"}, "")
			require.Equal(t, http.StatusCreated, status)
			addr := decode(t, raw).Address
			depositPath := "/api/v1/accounts/" + addr + "/deposit"

			ts := time.Now().Unix()
			status, _ = do(t, app, a.request(t, http.MethodPost, depositPath, fiber.Map{"amount": 100}, ts, "first"))
			require.Equal(t, http.StatusOK, status)

			// Same signed bytes under fresh idempotency keys.
			for _, key := range []string{"second", "third"} {
				status, _ = do(t, app, a.request(t, http.MethodPost, depositPath, fiber.Map{"amount": 100}, ts, key))
				require.Equal(t, http.StatusUnauthorized, status)
			}

			status, raw = get(t, app, "/api/v1/accounts/"+addr)
			require.Equal(t, http.StatusOK, status)
			st := decode(t, raw)
			require.Equal(t, uint64(100), st.Balance)
			require.Equal(t, uint64(100), st.RealValue)
		})
	}
}

func TestUnknownAPIPathIsNotFound(t *testing.T) {
	app := newTestApp(t)

	status, _ := get(t, app, "/api/v1/nowhere")
	require.Equal(t, http.StatusNotFound, status)

	status, _ = do(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/nowhere", nil))
	require.Equal(t, http.StatusNotFound, status)
}

func TestErrorMapping(t *testing.T) {
	app := newTestApp(t)
	a := newClient(t)

	status, raw := a.send(t, app, http.MethodPost, "/api/v1/accounts", fiber.Map{"name": "poor"}, "")
	require.Equal(t, http.StatusCreated, status)
	depositPath := "/api/v1/accounts/" + decode(t, raw).Address + "/deposit"

	// No value to move: the ledger transfer fails.
	status, _ = a.send(t, app, http.MethodPost, depositPath, fiber.Map{"amount": 10}, "")
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = a.send(t, app, http.MethodPost, depositPath, fiber.Map{"amount": 0}, "")
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = a.send(t, app, http.MethodPost, "/api/v1/accounts/not-an-address/deposit", fiber.Map{"amount": 1}, "")
	require.Equal(t, http.StatusBadRequest, status)

	other := newClient(t)
	status, _ = get(t, app, "/api/v1/owners/"+other.id.String()+"/account")
	require.Equal(t, http.StatusNotFound, status)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", bytes.NewReader([]byte(`{"name":"x"}`)))
	status, _ = do(t, app, req)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestHealthAndPing(t *testing.T) {
	app := newTestApp(t)

	status, raw := get(t, app, "/healthz")
	require.Equal(t, http.StatusOK, status)
	var health struct {
		Status map[string]string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(raw, &health))
	require.Equal(t, backendInMemory, health.Status["postgres"])
	require.Equal(t, "ok", health.Status["redis"])

	status, _ = get(t, app, "/api/v1/ping")
	require.Equal(t, http.StatusOK, status)
}

func TestSetupRequiresBackendsOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"
	err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	require.Error(t, err)
}
