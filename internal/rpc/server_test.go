package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledgermsg/internal/engine"
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
	"github.com/roach88/ledgermsg/internal/pda"
	"github.com/roach88/ledgermsg/internal/program"
	"github.com/roach88/ledgermsg/internal/store"
	"github.com/roach88/ledgermsg/internal/testutil"
)

const testOrigin = "https://app.example.com"

type fixture struct {
	t   *testing.T
	srv *Server
	ts  *httptest.Server
	eng *engine.Engine
	n   int
}

func newEngine(t *testing.T, reg prometheus.Registerer) (*engine.Engine, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	eng, err := engine.New(ctx, st, program.New(program.DefaultID),
		engine.WithTimeOracle(testutil.NewDeterministicTime(1_700_000_000, 1)),
		engine.WithTxIDGenerator(engine.NewFixedGenerator("fund")),
		engine.WithMetrics(engine.NewMetrics(reg)),
	)
	require.NoError(t, err)
	require.NoError(t, eng.Genesis(ctx, []engine.Allocation{
		{Address: testutil.Pubkey("alice"), Lamports: 1_000_000_000},
		{Address: testutil.Pubkey("bob"), Lamports: 1_000_000_000},
	}))
	return eng, st
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	eng, st := newEngine(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = eng.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	srv := New(eng, st, Options{CORSOrigins: []string{testOrigin}, Registry: reg})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{t: t, srv: srv, ts: ts, eng: eng}
}

func (f *fixture) envelope(signer string, ix ir.Instruction) ir.Envelope {
	f.n++
	return testutil.Sign(f.t, signer, fmt.Sprintf("tx-%d", f.n), ix)
}

func (f *fixture) post(body any) (*http.Response, map[string]any) {
	f.t.Helper()
	data, err := json.Marshal(body)
	require.NoError(f.t, err)
	return f.do(http.MethodPost, "/v1/transactions", bytes.NewReader(data))
}

func (f *fixture) get(path string) (*http.Response, map[string]any) {
	f.t.Helper()
	return f.do(http.MethodGet, path, nil)
}

func (f *fixture) do(method, path string, body io.Reader) (*http.Response, map[string]any) {
	f.t.Helper()
	req, err := http.NewRequest(method, f.ts.URL+path, body)
	require.NoError(f.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp, decoded
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestSubmitTransaction(t *testing.T) {
	f := newFixture(t)
	alice := testutil.Pubkey("alice")
	want, _, err := pda.ChannelAddress(program.DefaultID, alice, "news")
	require.NoError(t, err)

	env := f.envelope("alice", ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: "news"})
	resp, body := f.post(env)
	require.Equal(t, http.StatusOK, resp.StatusCode, "%v", body)
	assert.Equal(t, want.String(), body["address"])

	entry := body["entry"].(map[string]any)
	assert.Equal(t, "ok", entry["status"])
	assert.Equal(t, float64(3), entry["seq"])

	// Same envelope again.
	resp, body = f.post(env)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DuplicateTransaction", errorCode(body))

	resp, body = f.get("/v1/accounts/" + want.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "BroadcastChannel", body["type"])
	assert.Equal(t, program.DefaultID.String(), body["owner"])
	assert.Equal(t, float64(ledger.DefaultRent.MinimumBalance(ir.ChannelSpace)), body["lamports"])
	record := body["record"].(map[string]any)
	assert.Equal(t, "news", record["channel_name"])
	assert.Equal(t, alice.String(), record["owner"])
}

func TestSubmitTransaction_InstructionFailure(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(f.envelope("alice", ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: "news"}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	channel := body["address"].(string)
	target := ir.MustPubkey(channel)

	resp, body = f.post(f.envelope("bob", ir.Instruction{Op: ir.OpSendBroadcast, Target: target, MessageIndex: 0}))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "UnauthorizedSender", errorCode(body))
	entry := body["entry"].(map[string]any)
	assert.Equal(t, "UnauthorizedSender", entry["status"])

	resp, body = f.post(f.envelope("alice", ir.Instruction{Op: ir.OpSendBroadcast, Target: target, MessageIndex: 5}))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "InvalidMessageIndex", errorCode(body))

	resp, body = f.post(f.envelope("alice", ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: "this channel name is far too long!"}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "ChannelNameTooLong", errorCode(body))
}

func TestSubmitTransaction_Rejected(t *testing.T) {
	f := newFixture(t)

	tampered := f.envelope("alice", ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: "news"})
	tampered.Instruction.ChannelName = "olds"
	resp, body := f.post(tampered)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "InvalidSignature", errorCode(body))

	seq, _ := f.eng.Head()
	assert.Equal(t, int64(2), seq, "rejected envelopes are not logged")
}

func TestSubmitTransaction_BadRequests(t *testing.T) {
	f := newFixture(t)
	valid := f.envelope("alice", ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: "news"}).Wire()

	missingSig := valid
	missingSig.Signature = ""
	faucet := valid
	faucet.Instruction = "fund"
	badArgs := valid
	badArgs.Args = ir.Object{"channel_name": ir.Int(7)}

	tests := []struct {
		name string
		body any
		code string
	}{
		{"missing signature", missingSig, "ValidationFailed"},
		{"faucet not exposed", faucet, "ValidationFailed"},
		{"malformed args", badArgs, "MalformedEnvelope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.post(tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(body))
		})
	}

	resp, body := f.do(http.MethodPost, "/v1/transactions", bytes.NewBufferString("{not json"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidJSON", errorCode(body))
}

func TestGetEntry(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get("/v1/entries/1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "fund", body["instruction"])
	assert.Equal(t, ir.GenesisID, body["prev_id"])

	resp, body = f.get("/v1/entries/99")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "EntryNotFound", errorCode(body))

	resp, _ = f.get("/v1/entries/zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAccount_Errors(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get("/v1/accounts/not-base58!")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "InvalidAddress", errorCode(body))

	resp, body = f.get("/v1/accounts/" + testutil.Pubkey("nobody").String())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "AccountNotFound", errorCode(body))

	// Wallets have no record.
	resp, body = f.get("/v1/accounts/" + testutil.Pubkey("alice").String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ir.SystemProgramID.String(), body["owner"])
	assert.Nil(t, body["record"])
}

func TestHeadAndHealth(t *testing.T) {
	f := newFixture(t)
	_, head := f.eng.Head()

	resp, body := f.get("/v1/head")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["seq"])
	assert.Equal(t, head, body["id"])

	resp, body = f.get("/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, body = f.get("/v2/nothing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NotFound", errorCode(body))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.post(f.envelope("alice", ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: "news"}))
	f.get("/v1/head")

	resp, err := http.Get(f.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, `ledgermsg_instructions_total{instruction="initialize_channel",status="ok"} 1`)
	assert.Contains(t, text, `http_requests_total{method="POST",path="/v1/transactions",status="200"} 1`)
	assert.Contains(t, text, `http_requests_total{method="GET",path="/v1/head",status="200"} 1`)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.ts.URL+"/v1/transactions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, testOrigin, resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodGet, f.ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestServeListener_Shutdown(t *testing.T) {
	eng, st := newEngine(t, prometheus.NewRegistry())
	srv := New(eng, st, Options{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	env := testutil.Sign(t, "alice", "served", ir.Instruction{Op: ir.OpInitializeChannel, ChannelName: "news"})
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Post("http://"+ln.Addr().String()+"/v1/transactions", "application/json", bytes.NewReader(data))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	res := <-eng.Submit(env)
	assert.True(t, engine.IsRejected(res.Err, engine.ErrCodeStopped))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&engine.RejectError{Code: engine.ErrCodeMalformed}, http.StatusBadRequest, "MalformedEnvelope"},
		{&engine.RejectError{Code: engine.ErrCodeStopped}, http.StatusServiceUnavailable, "EngineStopped"},
		{&program.Error{Code: program.ConstraintSeeds}, http.StatusBadRequest, "ConstraintSeeds"},
		{&ledger.Error{Code: ledger.InsufficientFunds}, http.StatusPaymentRequired, "InsufficientFunds"},
		{&ledger.Error{Code: ledger.AccountNotInitialized}, http.StatusNotFound, "AccountNotInitialized"},
		{&ledger.Error{Code: ledger.ArithmeticOverflow}, http.StatusUnprocessableEntity, "ArithmeticOverflow"},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, "InternalError"},
	}
	for _, tt := range tests {
		status, code := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.code)
		assert.Equal(t, tt.code, code)
	}
}
