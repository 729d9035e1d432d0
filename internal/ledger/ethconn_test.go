package ledger

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// rpcNode answers the handful of JSON-RPC methods EthConnection reads with.
func rpcNode(t *testing.T, results map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if res, ok := results[req.Method]; ok {
			resp["result"] = res
		} else {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEthConnection_Call(t *testing.T) {
	packed, err := ContractABI.Methods[MethodGetTotalShipments].Outputs.Pack(big.NewInt(7))
	require.NoError(t, err)

	srv := rpcNode(t, map[string]interface{}{
		"eth_chainId": "0x106a",
		"eth_call":    hexutil.Encode(packed),
	})

	conn, err := Dial(context.Background(), srv.URL, common.HexToAddress("0xa4e64aabcae48a5f4c45d84dd2493b9fb3f81d84"))
	require.NoError(t, err)
	defer conn.Close()

	assert.EqualValues(t, 4202, conn.ChainID().Int64())

	total, err := NewGateway(conn, ReadOnly).ReadTotalCount(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
}

func TestEthConnection_SubmitWithoutSigner(t *testing.T) {
	srv := rpcNode(t, map[string]interface{}{"eth_chainId": "0x106a"})

	conn, err := Dial(context.Background(), srv.URL, common.Address{})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Submit(context.Background(), common.Address{1}, []byte{0x01})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestEthConnection_WaitMinedHonoursContext(t *testing.T) {
	srv := rpcNode(t, map[string]interface{}{
		"eth_chainId":               "0x106a",
		"eth_getTransactionReceipt": nil,
	})

	conn, err := Dial(context.Background(), srv.URL, common.Address{})
	require.NoError(t, err)
	defer conn.Close()
	conn.receiptPoll = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err = conn.WaitMined(ctx, common.HexToHash("0x01"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
