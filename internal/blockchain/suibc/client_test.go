package suibc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rovshanmuradov/kappa-sdk/internal/blockchain/ptb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type rpcHandler func(method string, params []json.RawMessage) (interface{}, *ResponseError)

func newTestServer(t *testing.T, h rpcHandler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rerr := h(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rerr != nil {
			resp["error"] = rerr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, urls ...string) *Client {
	c, err := NewClient(urls, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresNodes(t *testing.T) {
	_, err := NewClient(nil, nil)
	assert.ErrorIs(t, err, ErrNoRPCNodes)
}

func TestGetCoinMetadataNull(t *testing.T) {
	srv := newTestServer(t, func(method string, _ []json.RawMessage) (interface{}, *ResponseError) {
		assert.Equal(t, "suix_getCoinMetadata", method)
		return nil, nil
	})
	meta, err := newTestClient(t, srv.URL).GetCoinMetadata(context.Background(), "0x2::sui::SUI")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestGetCoinsDecodesStrings(t *testing.T) {
	srv := newTestServer(t, func(method string, params []json.RawMessage) (interface{}, *ResponseError) {
		assert.Equal(t, "suix_getCoins", method)
		assert.Equal(t, `"cur"`, string(params[2]))
		return map[string]interface{}{
			"data": []map[string]string{
				{"coinType": "0x2::sui::SUI", "coinObjectId": "0x11", "version": "7", "digest": "d", "balance": "1000"},
			},
			"nextCursor":  "next",
			"hasNextPage": true,
		}, nil
	})
	page, err := newTestClient(t, srv.URL).GetCoins(context.Background(), "0x1", "0x2::sui::SUI", "cur")
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, uint64(1000), page.Data[0].Balance)
	assert.Equal(t, uint64(7), page.Data[0].Version)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "next", page.NextCursor)
}

func TestNodeErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(string, []json.RawMessage) (interface{}, *ResponseError) {
		calls.Add(1)
		return nil, &ResponseError{Code: -32602, Message: "invalid params"}
	})
	_, err := newTestClient(t, srv.URL).GetBalance(context.Background(), "0x1", "0x2::sui::SUI")
	require.Error(t, err)

	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "suix_getBalance", rpcErr.Method)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransportErrorRotatesNodes(t *testing.T) {
	var badCalls atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		badCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := newTestServer(t, func(string, []json.RawMessage) (interface{}, *ResponseError) {
		return "1000", nil
	})

	price, err := newTestClient(t, bad.URL, good.URL).GetReferenceGasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), price)
	assert.Equal(t, int32(1), badCalls.Load())
}

func objectJSON(id string, owner interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": map[string]interface{}{
			"objectId": id, "version": "12", "digest": digest(3), "type": "0x2::coin::Coin<0x2::sui::SUI>",
			"owner": owner,
		},
	}
}

func TestGetObjectNotExists(t *testing.T) {
	srv := newTestServer(t, func(string, []json.RawMessage) (interface{}, *ResponseError) {
		return map[string]interface{}{"error": map[string]string{"code": "notExists", "object_id": "0x9"}}, nil
	})
	_, err := newTestClient(t, srv.URL).GetObject(context.Background(), "0x9")
	assert.True(t, IsObjectNotFound(err))
}

func TestResolveInputs(t *testing.T) {
	srv := newTestServer(t, func(method string, params []json.RawMessage) (interface{}, *ResponseError) {
		assert.Equal(t, "sui_multiGetObjects", method)
		var ids []string
		require.NoError(t, json.Unmarshal(params[0], &ids))
		require.Len(t, ids, 2)
		return []interface{}{
			objectJSON(ids[0], map[string]interface{}{"Shared": map[string]uint64{"initial_shared_version": 5}}),
			objectJSON(ids[1], map[string]string{"AddressOwner": "0x1"}),
		}, nil
	})

	tx := ptb.New()
	shared := tx.Object("0xa")
	owned := tx.Object("0xb")
	tx.PureU64(1)

	require.NoError(t, newTestClient(t, srv.URL).ResolveInputs(context.Background(), tx))
	require.NotNil(t, tx.Inputs[shared.Index].InitialSharedVersion)
	assert.Equal(t, uint64(5), *tx.Inputs[shared.Index].InitialSharedVersion)
	require.NotNil(t, tx.Inputs[owned.Index].Ref)
	assert.Equal(t, uint64(12), tx.Inputs[owned.Index].Ref.Version)
}

type stubSigner struct{ signed []byte }

func (s *stubSigner) Address() string { return "0x1" }

func (s *stubSigner) SignTransaction(b []byte) (string, error) {
	s.signed = b
	return "c2ln", nil
}

func TestSignAndExecute(t *testing.T) {
	var executed atomic.Bool
	srv := newTestServer(t, func(method string, params []json.RawMessage) (interface{}, *ResponseError) {
		switch method {
		case "suix_getReferenceGasPrice":
			return "750", nil
		case "suix_getCoins":
			return map[string]interface{}{
				"data": []map[string]string{
					{"coinType": suiCoinType, "coinObjectId": "0x20", "version": "1", "digest": digest(2), "balance": "900000000"},
				},
				"hasNextPage": false,
			}, nil
		case "sui_executeTransactionBlock":
			executed.Store(true)
			var sigs []string
			require.NoError(t, json.Unmarshal(params[1], &sigs))
			assert.Equal(t, []string{"c2ln"}, sigs)
			return map[string]interface{}{
				"digest":  "TxDigest",
				"effects": map[string]interface{}{"status": map[string]string{"status": "success"}},
			}, nil
		}
		t.Errorf("unexpected method %s", method)
		return nil, nil
	})

	tx := ptb.New()
	coin := tx.SplitCoins(ptb.GasCoin, tx.PureU64(10))
	addr, err := tx.PureAddress("0x1")
	require.NoError(t, err)
	tx.TransferObjects(coin, addr)

	signer := &stubSigner{}
	res, err := newTestClient(t, srv.URL).SignAndExecute(context.Background(), signer, tx)
	require.NoError(t, err)
	assert.True(t, executed.Load())
	assert.True(t, res.Succeeded())
	assert.Equal(t, "TxDigest", res.Digest)
	assert.NotEmpty(t, signer.signed)
	assert.Equal(t, uint64(750), tx.GasPrice)
	require.Len(t, tx.GasPayment, 1)
}
