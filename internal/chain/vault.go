package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// balanceOfSelector is the 4-byte method id of ERC-20 balanceOf(address).
var balanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]

// VaultOracle reads the watched vault's token balances via eth_call against
// an HTTP JSON-RPC endpoint. Results are converted to human units using the
// configured token decimals.
type VaultOracle struct {
	rpcURL     string
	httpClient *http.Client

	vault      common.Address
	baseToken  common.Address
	quoteToken common.Address

	baseDecimals  int
	quoteDecimals int
}

// VaultOracleConfig carries the addresses and decimals for a VaultOracle.
type VaultOracleConfig struct {
	RpcURL        string
	Vault         string
	BaseToken     string
	QuoteToken    string
	BaseDecimals  int
	QuoteDecimals int
}

// NewVaultOracle creates a VaultOracle. Addresses must already be validated
// by config; invalid input here yields an error rather than a bad oracle.
func NewVaultOracle(cfg VaultOracleConfig) (*VaultOracle, error) {
	for name, addr := range map[string]string{
		"vault": cfg.Vault, "base token": cfg.BaseToken, "quote token": cfg.QuoteToken,
	} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("chain: vault oracle: %w: %s %q", domain.ErrInvalidAddress, name, addr)
		}
	}

	return &VaultOracle{
		rpcURL:        cfg.RpcURL,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		vault:         common.HexToAddress(cfg.Vault),
		baseToken:     common.HexToAddress(cfg.BaseToken),
		quoteToken:    common.HexToAddress(cfg.QuoteToken),
		baseDecimals:  cfg.BaseDecimals,
		quoteDecimals: cfg.QuoteDecimals,
	}, nil
}

// Balances returns the vault's current base and quote token balances in
// human units.
func (o *VaultOracle) Balances(ctx context.Context) (domain.VaultBalances, error) {
	baseRaw, err := o.balanceOf(ctx, o.baseToken)
	if err != nil {
		return domain.VaultBalances{}, fmt.Errorf("chain: base balance: %w", err)
	}
	quoteRaw, err := o.balanceOf(ctx, o.quoteToken)
	if err != nil {
		return domain.VaultBalances{}, fmt.Errorf("chain: quote balance: %w", err)
	}

	return domain.VaultBalances{
		Base:      toHuman(baseRaw, o.baseDecimals),
		Quote:     toHuman(quoteRaw, o.quoteDecimals),
		FetchedAt: time.Now().UTC(),
	}, nil
}

// balanceOf performs one eth_call of balanceOf(vault) against token.
func (o *VaultOracle) balanceOf(ctx context.Context, token common.Address) (*big.Int, error) {
	calldata := make([]byte, 0, 36)
	calldata = append(calldata, balanceOfSelector...)
	calldata = append(calldata, common.LeftPadBytes(o.vault.Bytes(), 32)...)

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_call",
		"params": []any{
			map[string]string{
				"to":   token.Hex(),
				"data": hexutil.Encode(calldata),
			},
			"latest",
		},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal eth_call: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build eth_call request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("eth_call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eth_call: unexpected status %d", resp.StatusCode)
	}

	var rpcResp struct {
		Result string `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode eth_call response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("eth_call: rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	raw, err := hexutil.Decode(rpcResp.Result)
	if err != nil {
		return nil, fmt.Errorf("decode eth_call result: %w", err)
	}
	return new(big.Int).SetBytes(raw), nil
}

// toHuman converts a raw token amount to human units.
func toHuman(raw *big.Int, decimals int) float64 {
	if raw == nil {
		return 0
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), scale).Float64()
	return out
}
