package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"tdcchain/core"
	"tdcchain/core/events"
	"tdcchain/core/types"
	"tdcchain/crypto"
	"tdcchain/gateway/middleware"
	"tdcchain/storage"
	"tdcchain/storage/journal"
)

var (
	admin = principal(0xA0)
	bob   = principal(0xB0)
	carol = principal(0xC0)
)

func principal(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

type gatewayFixture struct {
	handler http.Handler
	feed    *events.Feed
	journal *journal.Journal
}

func newGatewayFixture(t *testing.T, auth middleware.AuthConfig) *gatewayFixture {
	t.Helper()
	j, err := journal.Open(journal.DriverSQLite, filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	feed := events.NewFeed()

	runtime, err := core.NewRuntime(storage.NewMemDB(), core.WithEmitter(events.Multi{feed, j}))
	require.NoError(t, err)
	ctx := context.Background()
	for name, kind := range map[string]core.Kind{
		"badges":       core.KindBadges,
		"collectibles": core.KindCollectibles,
		"coins":        core.KindCoins,
	} {
		_, err := runtime.Deploy(ctx, name, kind, [][20]byte{admin})
		require.NoError(t, err)
	}

	handler, err := New(Config{
		Runtime:       runtime,
		History:       j,
		Feed:          feed,
		Authenticator: middleware.NewAuthenticator(auth, nil),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{Enabled: true}, nil),
	})
	require.NoError(t, err)
	return &gatewayFixture{handler: handler, feed: feed, journal: j}
}

func (f *gatewayFixture) call(t *testing.T, method, path string, caller *[20]byte, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	if caller != nil {
		req.Header.Set(middleware.DevCallerHeader, crypto.FormatAddress(*caller))
	}
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	decoded := map[string]interface{}{}
	if strings.HasPrefix(res.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(res.Body.Bytes(), &decoded)
	}
	return res, decoded
}

func (f *gatewayFixture) wireBadges(t *testing.T) {
	t.Helper()
	res, _ := f.call(t, http.MethodPut, "/v1/ledgers/badges/links/collectibles", &admin, map[string]string{"ledger": "collectibles"})
	require.Equal(t, http.StatusOK, res.Code)
	res, _ = f.call(t, http.MethodPut, "/v1/ledgers/badges/links/coins", &admin, map[string]string{"ledger": "coins"})
	require.Equal(t, http.StatusOK, res.Code)
	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/badges/roles/grant", &admin, roleRequest{Role: "MINTER_ROLE", Account: crypto.FormatAddress(admin)})
	require.Equal(t, http.StatusOK, res.Code)
	badgeLedger := crypto.FormatAddress(core.LedgerAddress("badges"))
	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/coins/roles/grant", &admin, roleRequest{Role: "MINTER_ROLE", Account: badgeLedger})
	require.Equal(t, http.StatusOK, res.Code)
}

func TestBadgeLifecycleOverHTTP(t *testing.T) {
	f := newGatewayFixture(t, middleware.AuthConfig{})
	f.wireBadges(t)

	res, body := f.call(t, http.MethodPost, "/v1/ledgers/badges/mint", &admin, mintRequest{To: crypto.FormatAddress(bob)})
	require.Equal(t, http.StatusOK, res.Code)
	require.EqualValues(t, 0, body["tokenId"])

	for _, count := range []uint64{0, 2} {
		n := count
		res, body = f.call(t, http.MethodPost, "/v1/ledgers/badges/mint", &admin, mintRequest{To: crypto.FormatAddress(bob), Count: &n})
		require.Equal(t, http.StatusBadRequest, res.Code, "count %d", count)
		require.Contains(t, body["error"], "invalid count")
	}

	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/badges/transfer", &bob, transferRequest{
		From: crypto.FormatAddress(bob), To: crypto.FormatAddress(carol), TokenID: 0,
	})
	require.Equal(t, http.StatusOK, res.Code)

	res, body = f.call(t, http.MethodPost, "/v1/ledgers/badges/transfer", &carol, transferRequest{
		From: crypto.FormatAddress(carol), To: crypto.FormatAddress(bob), TokenID: 0,
	})
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "already transferred", body["reason"])

	res, body = f.call(t, http.MethodGet, "/v1/ledgers/badges/tokens/0", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, crypto.FormatAddress(carol), body["owner"])
	require.Equal(t, "transferred", body["state"])

	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/badges/redeem", &bob, redeemRequest{TokenID: 0})
	require.Equal(t, http.StatusForbidden, res.Code)

	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/badges/redeem", &carol, redeemRequest{TokenID: 0})
	require.Equal(t, http.StatusOK, res.Code)

	res, body = f.call(t, http.MethodGet, "/v1/ledgers/coins/balances/"+crypto.FormatAddress(carol), nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "1", body["balance"])

	res, body = f.call(t, http.MethodGet, "/v1/ledgers/badges/supply", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "0", body["totalSupply"])

	res, body = f.call(t, http.MethodGet, "/v1/ledgers/badges/tokens/0", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, crypto.FormatAddress([20]byte{}), body["owner"])
	require.Equal(t, "redeemed", body["state"])

	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/badges/redeem", &carol, redeemRequest{TokenID: 0})
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestRedeemWithoutCoinsLinkIsRejected(t *testing.T) {
	f := newGatewayFixture(t, middleware.AuthConfig{})
	res, _ := f.call(t, http.MethodPut, "/v1/ledgers/badges/links/collectibles", &admin, map[string]string{"ledger": "collectibles"})
	require.Equal(t, http.StatusOK, res.Code)
	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/badges/roles/grant", &admin, roleRequest{Role: "MINTER_ROLE", Account: crypto.FormatAddress(admin)})
	require.Equal(t, http.StatusOK, res.Code)
	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/badges/mint", &admin, mintRequest{To: crypto.FormatAddress(bob)})
	require.Equal(t, http.StatusOK, res.Code)
	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/badges/transfer", &bob, transferRequest{
		From: crypto.FormatAddress(bob), To: crypto.FormatAddress(carol),
	})
	require.Equal(t, http.StatusOK, res.Code)

	res, body := f.call(t, http.MethodPost, "/v1/ledgers/badges/redeem", &carol, redeemRequest{TokenID: 0})
	require.Equal(t, http.StatusConflict, res.Code)
	require.Equal(t, "coins ref unset", body["reason"])

	res, body = f.call(t, http.MethodGet, "/v1/ledgers/badges/tokens/0", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, crypto.FormatAddress(carol), body["owner"])
}

func TestWritesRequireCaller(t *testing.T) {
	f := newGatewayFixture(t, middleware.AuthConfig{})
	res, _ := f.call(t, http.MethodPost, "/v1/ledgers/badges/mint", nil, mintRequest{To: crypto.FormatAddress(bob)})
	require.Equal(t, http.StatusUnauthorized, res.Code)

	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/badges/mint", &bob, mintRequest{To: crypto.FormatAddress(bob)})
	require.Equal(t, http.StatusForbidden, res.Code)

	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/missing/mint", &admin, mintRequest{To: crypto.FormatAddress(bob)})
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestRolesAndMetadataRoutes(t *testing.T) {
	f := newGatewayFixture(t, middleware.AuthConfig{})
	path := "/v1/ledgers/collectibles/roles/MINTER_ROLE/" + crypto.FormatAddress(bob)

	res, body := f.call(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, false, body["hasRole"])

	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/collectibles/roles/grant", &bob, roleRequest{Role: "MINTER_ROLE", Account: crypto.FormatAddress(bob)})
	require.Equal(t, http.StatusForbidden, res.Code)

	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/collectibles/roles/grant", &admin, roleRequest{Role: "MINTER_ROLE", Account: crypto.FormatAddress(bob)})
	require.Equal(t, http.StatusOK, res.Code)
	_, body = f.call(t, http.MethodGet, path, nil, nil)
	require.Equal(t, true, body["hasRole"])

	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/collectibles/roles/renounce", &bob, roleRequest{Role: "MINTER_ROLE"})
	require.Equal(t, http.StatusOK, res.Code)
	_, body = f.call(t, http.MethodGet, path, nil, nil)
	require.Equal(t, false, body["hasRole"])

	res, _ = f.call(t, http.MethodPut, "/v1/ledgers/collectibles/metadata/base-uri", &admin, uriRequest{URI: "ipfs://art/"})
	require.Equal(t, http.StatusOK, res.Code)
	res, _ = f.call(t, http.MethodPut, "/v1/ledgers/collectibles/metadata/contract-uri", &admin, uriRequest{URI: "ipfs://art/contract.json"})
	require.Equal(t, http.StatusOK, res.Code)
	_, body = f.call(t, http.MethodGet, "/v1/ledgers/collectibles/metadata", nil, nil)
	require.Equal(t, "ipfs://art/", body["baseURI"])
	require.Equal(t, "ipfs://art/contract.json", body["contractURI"])

	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/collectibles/roles/grant", &admin, roleRequest{Role: "MINTER_ROLE", Account: crypto.FormatAddress(admin)})
	require.Equal(t, http.StatusOK, res.Code)
	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/collectibles/mint", &admin, mintRequest{To: crypto.FormatAddress(bob)})
	require.Equal(t, http.StatusOK, res.Code)
	res, body = f.call(t, http.MethodGet, "/v1/ledgers/collectibles/tokens/0/uri", nil, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "ipfs://art/0.json", body["uri"])

	res, _ = f.call(t, http.MethodGet, "/v1/ledgers/coins/metadata", nil, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHistoryListsCommittedEvents(t *testing.T) {
	f := newGatewayFixture(t, middleware.AuthConfig{})
	f.wireBadges(t)
	res, _ := f.call(t, http.MethodPost, "/v1/ledgers/badges/mint", &bob, mintRequest{To: crypto.FormatAddress(bob)})
	require.Equal(t, http.StatusForbidden, res.Code)
	res, _ = f.call(t, http.MethodPost, "/v1/ledgers/badges/mint", &admin, mintRequest{To: crypto.FormatAddress(bob)})
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	f.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/ledgers/badges/history?type="+events.TypeTokenTransfer, nil))
	require.Equal(t, http.StatusOK, res.Code)
	var entries []historyEntry
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, crypto.FormatAddress(bob), entries[0].Attributes["to"])
}

func TestLedgerListing(t *testing.T) {
	f := newGatewayFixture(t, middleware.AuthConfig{})
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/ledgers", nil))
	require.Equal(t, http.StatusOK, res.Code)
	var ledgers []ledgerView
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &ledgers))
	require.Len(t, ledgers, 3)

	res2, body := f.call(t, http.MethodGet, "/v1/ledgers/coins", nil, nil)
	require.Equal(t, http.StatusOK, res2.Code)
	require.Equal(t, "coins", body["kind"])
	require.Equal(t, "0", body["totalSupply"])
	require.Equal(t, "TDC", body["symbol"])
}

func TestBearerTokenIdentifiesCaller(t *testing.T) {
	secret := "router-secret"
	f := newGatewayFixture(t, middleware.AuthConfig{Enabled: true, HMACSecret: secret, AllowAnonymousReads: true})

	token, err := middleware.IssueToken([]byte(secret), "", "", crypto.FormatAddress(admin), time.Minute)
	require.NoError(t, err)
	payload, err := json.Marshal(roleRequest{Role: "MINTER_ROLE", Account: crypto.FormatAddress(bob)})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/ledgers/coins/roles/grant", bytes.NewReader(payload))
	req.Header.Set(middleware.DevCallerHeader, crypto.FormatAddress(bob))
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/ledgers/coins/roles/grant", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+token)
	res = httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	f.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/ledgers", nil))
	require.Equal(t, http.StatusOK, res.Code)
}

func TestEventStreamDeliversCommittedEvents(t *testing.T) {
	f := newGatewayFixture(t, middleware.AuthConfig{})
	f.wireBadges(t)
	server := httptest.NewServer(f.handler)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/events/ws?ledger=badges&type=" + events.TypeTokenTransfer
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return f.feed.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	res, _ := f.call(t, http.MethodPost, "/v1/ledgers/badges/mint", &admin, mintRequest{To: crypto.FormatAddress(bob)})
	require.Equal(t, http.StatusOK, res.Code)

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var evt types.Event
	require.NoError(t, json.Unmarshal(data, &evt))
	require.Equal(t, events.TypeTokenTransfer, evt.Type)
	require.Equal(t, crypto.FormatAddress(core.LedgerAddress("badges")), evt.Attr("ledger"))
	require.Equal(t, crypto.FormatAddress(bob), evt.Attr("to"))
}
