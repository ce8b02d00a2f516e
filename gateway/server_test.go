package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/assetauction/config"
	"github.com/cloudx-io/assetauction/core"
	"github.com/cloudx-io/assetauction/enclaveapi"
	"github.com/cloudx-io/assetauction/ledger"
	"github.com/cloudx-io/assetauction/logging"
	"github.com/cloudx-io/assetauction/sequencer"
)

// fakeEnclave answers the enclave protocol on a loopback TCP listener.
func fakeEnclave(t *testing.T) DialFunc {
	t.Helper()
	events := &core.RecordingSink{}
	l := ledger.New()
	e := core.NewEngine(core.DefaultConfig(), l, sequencer.EngineOptions(events, logging.Discard())...)
	seq := sequencer.New(e, l, events)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				var req enclaveapi.Request
				if err := json.NewDecoder(c).Decode(&req); err != nil {
					return
				}
				var resp any
				if req.Type == enclaveapi.TypePing {
					resp = &enclaveapi.Response{Type: "pong", Success: true}
				} else {
					resp = seq.Handle(req)
				}
				_ = json.NewEncoder(c).Encode(resp)
			}(conn)
		}
	}()

	addr := listener.Addr().String()
	return func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
}

func newTestGateway(t *testing.T, dial DialFunc) *httptest.Server {
	t.Helper()
	cfg := config.Default().Gateway
	srv := New(cfg, NewClient(dial, 5*time.Second), logging.Discard())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, op string, caller string, body any) (int, enclaveapi.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/"+op, &buf)
	assert.NoError(t, err)
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	resp, err := ts.Client().Do(req)
	assert.NoError(t, err)
	defer resp.Body.Close()

	var out enclaveapi.Response
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestGateway_Healthz(t *testing.T) {
	ts := newTestGateway(t, fakeEnclave(t))

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	assert.NoError(t, err)
	defer resp.Body.Close()

	check.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGateway_HealthzEnclaveDown(t *testing.T) {
	ts := newTestGateway(t, func(context.Context) (net.Conn, error) {
		return nil, errors.New("connection refused")
	})

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	assert.NoError(t, err)
	defer resp.Body.Close()

	check.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGateway_ForwardsOperations(t *testing.T) {
	ts := newTestGateway(t, fakeEnclave(t))

	code, created := post(t, ts, enclaveapi.TypeCreateAsset, "alice", map[string]string{"name": "vase"})
	check.Equal(t, http.StatusOK, code)
	check.True(t, created.Success)
	check.Equal(t, "create_asset_response", created.Type)
	assert.NotNil(t, created.Asset)
	check.Equal(t, core.AccountID("alice"), *created.Asset.Owner)

	// A caller in the body takes precedence over the header.
	code, listed := post(t, ts, enclaveapi.TypeListAssets, "mallory", enclaveapi.Request{Caller: "alice"})
	check.Equal(t, http.StatusOK, code)
	check.Equal(t, []core.Hash{created.Asset.ID}, listed.Assets)

	code, balance := post(t, ts, enclaveapi.TypeBalance, "bob", nil)
	check.Equal(t, http.StatusOK, code)
	assert.NotNil(t, balance.Balance)
	check.Equal(t, "0", balance.Balance.Free.String())
}

func TestGateway_DepositNotExposed(t *testing.T) {
	ts := newTestGateway(t, fakeEnclave(t))

	code, resp := post(t, ts, enclaveapi.TypeDeposit, "bob", enclaveapi.Request{Amount: decimal.NewFromInt(1000000)})
	check.Equal(t, http.StatusNotFound, code)
	check.False(t, resp.Success)
	check.Equal(t, "invalid_input", resp.ErrorKind)

	// Nothing reached the ledger.
	code, balance := post(t, ts, enclaveapi.TypeBalance, "bob", nil)
	check.Equal(t, http.StatusOK, code)
	check.Equal(t, "0", balance.Balance.Free.String())
}

func TestExposed(t *testing.T) {
	check.True(t, Exposed(enclaveapi.TypeBid))
	check.True(t, Exposed(enclaveapi.TypeCloseAuction))
	check.True(t, Exposed(enclaveapi.TypeBalance))
	check.False(t, Exposed(enclaveapi.TypeDeposit))
	check.False(t, Exposed("mint_money"))
}

func TestGateway_ErrorStatus(t *testing.T) {
	ts := newTestGateway(t, fakeEnclave(t))

	code, resp := post(t, ts, enclaveapi.TypeGetAsset, "", enclaveapi.Request{AssetID: core.Hash{9}})

	check.Equal(t, http.StatusNotFound, code)
	check.False(t, resp.Success)
	check.Equal(t, "not_found", resp.ErrorKind)
}

func TestGateway_UnknownOperation(t *testing.T) {
	ts := newTestGateway(t, fakeEnclave(t))

	code, resp := post(t, ts, "mint_money", "alice", nil)

	check.Equal(t, http.StatusNotFound, code)
	check.Equal(t, "invalid_input", resp.ErrorKind)
}

func TestGateway_TypeMismatch(t *testing.T) {
	ts := newTestGateway(t, fakeEnclave(t))

	code, resp := post(t, ts, enclaveapi.TypeGetAsset, "", enclaveapi.Request{Type: enclaveapi.TypeDeposit})

	check.Equal(t, http.StatusBadRequest, code)
	check.Equal(t, "invalid_input", resp.ErrorKind)
}

func TestGateway_MalformedBody(t *testing.T) {
	ts := newTestGateway(t, fakeEnclave(t))

	resp, err := ts.Client().Post(ts.URL+"/v1/bid", "application/json", strings.NewReader("{not json"))
	assert.NoError(t, err)
	defer resp.Body.Close()

	check.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGateway_EnclaveUnavailable(t *testing.T) {
	ts := newTestGateway(t, func(context.Context) (net.Conn, error) {
		return nil, errors.New("no route to enclave")
	})

	code, resp := post(t, ts, enclaveapi.TypeBalance, "bob", nil)

	check.Equal(t, http.StatusBadGateway, code)
	check.False(t, resp.Success)
	check.True(t, strings.Contains(resp.Message, "no route to enclave"))
}

func TestStatusFor(t *testing.T) {
	check.Equal(t, http.StatusNotFound, StatusFor("not_found"))
	check.Equal(t, http.StatusForbidden, StatusFor("unauthorized"))
	check.Equal(t, http.StatusBadRequest, StatusFor("invalid_input"))
	check.Equal(t, http.StatusConflict, StatusFor("bid_too_low"))
	check.Equal(t, http.StatusInternalServerError, StatusFor("internal"))
}
