package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/RaikyD/blockroute-client/internal/domain"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultReceiptPoll = 2 * time.Second

// EthConnection talks JSON-RPC to an EVM node.
type EthConnection struct {
	client      *ethclient.Client
	contract    common.Address
	chainID     *big.Int
	signer      bind.SignerFn
	receiptPoll time.Duration
}

var _ Connection = (*EthConnection)(nil)

func Dial(ctx context.Context, rpcURL string, contract common.Address) (*EthConnection, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}
	return &EthConnection{
		client:      client,
		contract:    contract,
		chainID:     chainID,
		receiptPoll: defaultReceiptPoll,
	}, nil
}

func (c *EthConnection) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// SetSigner enables Submit. Without one the connection is read-only.
func (c *EthConnection) SetSigner(fn bind.SignerFn) {
	c.signer = fn
}

func (c *EthConnection) Close() {
	c.client.Close()
}

func (c *EthConnection) Call(ctx context.Context, data []byte) ([]byte, error) {
	return c.client.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
}

func (c *EthConnection) Submit(ctx context.Context, from common.Address, data []byte) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, fmt.Errorf("%w: connection has no signer", domain.ErrUnauthenticated)
	}

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}
	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &c.contract, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &c.contract,
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := c.signer(from, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

func (c *EthConnection) WaitMined(ctx context.Context, tx common.Hash) error {
	ticker := time.NewTicker(c.receiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, tx)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return fmt.Errorf("transaction %s reverted", tx.Hex())
			}
			return nil
		case !errors.Is(err, ethereum.NotFound):
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
