package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"rewardcenter/core/genesis"
	"rewardcenter/core/runtime"
	"rewardcenter/core/types"
	"rewardcenter/crypto"
	"rewardcenter/gateway/middleware"
	"rewardcenter/indexer"
	"rewardcenter/native/token"
	"rewardcenter/storage"
)

type harness struct {
	server *httptest.Server
	exec   *runtime.Executor
	index  *indexer.Indexer
	payer  *crypto.PrivateKey
}

func newHarness(t *testing.T, withIndex bool) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	payer, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	spec := &genesis.GenesisSpec{GenesisTime: "2024-01-01T00:00:00Z", Alloc: map[string]string{payer.Address().String(): "1000"}}
	require.NoError(t, spec.Validate())
	exec, err := runtime.Open(db, spec)
	require.NoError(t, err)

	h := &harness{exec: exec, payer: payer}
	if withIndex {
		gdb, err := indexer.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
		require.NoError(t, err)
		h.index = indexer.New(gdb, nil)
		ctx, cancel := context.WithCancel(context.Background())
		t.Cleanup(cancel)
		go h.index.Run(ctx, exec.Hub(), exec)
	}
	srv := New(exec, h.index, Config{EnableMetrics: true}, nil)
	h.server = httptest.NewServer(srv.Handler())
	t.Cleanup(h.server.Close)
	return h
}

func (h *harness) mintTx(t *testing.T, nonce uint64) (*types.Transaction, crypto.Address) {
	t.Helper()
	mintKey, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	ix, err := token.NewInitializeMintInstruction(mintKey.Address(), h.payer.Address(), 6)
	require.NoError(t, err)
	tx := &types.Transaction{Nonce: nonce, Payer: h.payer.Address(), Instructions: []types.Instruction{ix}}
	require.NoError(t, tx.Sign(h.payer, mintKey))
	return tx, mintKey.Address()
}

func (h *harness) post(t *testing.T, tx *types.Transaction) (*http.Response, map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(tx)
	require.NoError(t, err)
	resp, err := http.Post(h.server.URL+"/v1/transactions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestSubmitAndReadAccount(t *testing.T) {
	h := newHarness(t, false)
	tx, mint := h.mintTx(t, 1)

	resp, body := h.post(t, tx)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])
	require.Equal(t, float64(1), body["seq"])
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = h.post(t, tx)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Contains(t, body["error"], "already applied")

	acct, err := http.Get(h.server.URL + "/v1/accounts/" + mint.String())
	require.NoError(t, err)
	defer acct.Body.Close()
	require.Equal(t, http.StatusOK, acct.StatusCode)
	var view struct {
		Record string                 `json:"record"`
		Data   map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(acct.Body).Decode(&view))
	require.Equal(t, "mint", view.Record)
	require.Equal(t, float64(6), view.Data["decimals"])

	head, err := http.Get(h.server.URL + "/v1/head")
	require.NoError(t, err)
	defer head.Body.Close()
	var headView struct {
		Seq uint64 `json:"seq"`
	}
	require.NoError(t, json.NewDecoder(head.Body).Decode(&headView))
	require.Equal(t, uint64(1), headView.Seq)
}

func TestSubmitReportsFailures(t *testing.T) {
	h := newHarness(t, false)

	resp, err := http.Post(h.server.URL+"/v1/transactions", "application/json", strings.NewReader(`{"nonce":1,"bogus":true}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	tx, _ := h.mintTx(t, 2)
	tx.Signatures = tx.Signatures[:1]
	resp, _ = h.post(t, tx)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Initialising the native mint again fails inside the token program.
	ix, err := token.NewInitializeMintInstruction(token.NativeMint, h.payer.Address(), 9)
	require.NoError(t, err)
	for i := range ix.Accounts {
		ix.Accounts[i].Signer = false
	}
	failing := &types.Transaction{Nonce: 3, Payer: h.payer.Address(), Instructions: []types.Instruction{ix}}
	require.NoError(t, failing.Sign(h.payer))
	resp, body := h.post(t, failing)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, false, body["success"])
	require.NotNil(t, body["error"])
}

func TestAccountErrors(t *testing.T) {
	h := newHarness(t, false)
	for path, status := range map[string]int{
		"/v1/accounts/not-an-address": http.StatusBadRequest,
		"/v1/accounts/" + crypto.ProgramAddress("empty").String(): http.StatusNotFound,
		"/v1/events": http.StatusServiceUnavailable,
	} {
		resp, err := http.Get(h.server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, status, resp.StatusCode, path)
	}
}

func TestEventStreamAndIndex(t *testing.T) {
	h := newHarness(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/v1/events/ws?type=token.mint"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// The subscription is registered asynchronously after the upgrade.
	var msg streamMessage
	for nonce := uint64(1); ; nonce++ {
		tx, _ := h.mintTx(t, nonce)
		resp, _ := h.post(t, tx)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		readCtx, readCancel := context.WithTimeout(ctx, 200*time.Millisecond)
		_, data, err := conn.Read(readCtx)
		readCancel()
		if err == nil {
			require.NoError(t, json.Unmarshal(data, &msg))
			break
		}
		require.Less(t, nonce, uint64(20), "no stream message received")
		conn, _, err = websocket.Dial(ctx, wsURL, nil)
		require.NoError(t, err)
	}
	require.Len(t, msg.Events, 1)
	require.Equal(t, token.EventTypeMintInitialized, msg.Events[0].Type)

	require.Eventually(t, func() bool {
		resp, err := http.Get(h.server.URL + "/v1/events?type=" + token.EventTypeMintInitialized)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var rows []map[string]interface{}
		if json.NewDecoder(resp.Body).Decode(&rows) != nil {
			return false
		}
		return len(rows) > 0
	}, 2*time.Second, 20*time.Millisecond)

	metrics, err := http.Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	require.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestSubmitRequiresTokenWhenAuthEnabled(t *testing.T) {
	h := newHarness(t, false)
	secured := httptest.NewServer(New(h.exec, nil, Config{
		Auth: middleware.AuthConfig{Enabled: true, HMACSecret: "topsecret"},
	}, nil).Handler())
	defer secured.Close()

	tx, _ := h.mintTx(t, 7)
	body, err := json.Marshal(tx)
	require.NoError(t, err)

	resp, err := http.Post(secured.URL+"/v1/transactions", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "ops",
		"exp":   time.Now().Add(time.Minute).Unix(),
		"scope": middleware.ScopeSubmit,
	}).SignedString([]byte("topsecret"))
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, secured.URL+"/v1/transactions", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	head, err := http.Get(secured.URL + "/v1/head")
	require.NoError(t, err)
	head.Body.Close()
	require.Equal(t, http.StatusOK, head.StatusCode)
}
