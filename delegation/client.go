package delegation

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vechain-community/walletkit/bigint"
	"github.com/vechain-community/walletkit/clause"
)

// Client talks to a generic fee delegator: a service that co-signs
// transactions and accepts payment in a supported token instead of the
// chain's native gas currency.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: time.Minute},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type estimateRequest struct {
	Clauses []clause.Clause `json:"clauses"`
}

type tokenCost struct {
	Symbol string         `json:"symbol"`
	Amount *bigint.BigInt `json:"amount"`
}

type estimateResponse struct {
	Costs []tokenCost `json:"costs"`
	Error string      `json:"error,omitempty"`
}

// EstimateGas asks the delegator what it charges for the clause set, per
// supported token. The result maps token symbol to cost in the token's
// smallest unit.
func (c *Client) EstimateGas(ctx context.Context, clauses []clause.Clause) (map[string]*big.Int, error) {
	var resp estimateResponse
	if err := c.doPost(ctx, c.baseURL+"/estimate", estimateRequest{Clauses: clauses}, &resp); err != nil {
		return nil, errors.Wrap(err, "delegator estimate")
	}
	if resp.Error != "" {
		return nil, errors.Errorf("delegator estimate: %s", resp.Error)
	}
	if len(resp.Costs) == 0 {
		return nil, errors.New("delegator returned no cost estimates")
	}
	costs := make(map[string]*big.Int, len(resp.Costs))
	for _, tc := range resp.Costs {
		if tc.Amount == nil || tc.Amount.Int == nil {
			continue
		}
		costs[tc.Symbol] = tc.Amount.Int
	}
	return costs, nil
}

type depositAccountResponse struct {
	Address common.Address `json:"address"`
	Error   string         `json:"error,omitempty"`
}

// GetDepositAccount returns the address the fee payment clause must target.
func (c *Client) GetDepositAccount(ctx context.Context) (common.Address, error) {
	raw, err := c.doGet(ctx, c.baseURL+"/deposit-account")
	if err != nil {
		return common.Address{}, errors.Wrap(err, "delegator deposit account")
	}
	var resp depositAccountResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return common.Address{}, errors.Wrap(err, "decode deposit account")
	}
	if resp.Error != "" {
		return common.Address{}, errors.Errorf("delegator deposit account: %s", resp.Error)
	}
	if resp.Address == (common.Address{}) {
		return common.Address{}, errors.New("delegator returned an empty deposit account")
	}
	return resp.Address, nil
}

type signRequest struct {
	Token string `json:"token"`
	Raw   string `json:"raw"`
}

type signResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error,omitempty"`
}

// SignTransaction submits the encoded transaction body and the fee token
// choice, returning the delegator's co-signature.
func (c *Client) SignTransaction(ctx context.Context, tokenSymbol string, encodedTx []byte) ([]byte, error) {
	var resp signResponse
	req := signRequest{Token: tokenSymbol, Raw: hexutil.Encode(encodedTx)}
	if err := c.doPost(ctx, c.baseURL+"/sign", req, &resp); err != nil {
		return nil, errors.Wrap(err, "delegator sign")
	}
	if resp.Error != "" {
		return nil, errors.Errorf("delegator sign: %s", resp.Error)
	}
	sig, err := hexutil.Decode(resp.Signature)
	if err != nil {
		return nil, errors.Wrap(err, "decode delegator signature")
	}
	c.logger.Debug("delegator co-signature obtained", zap.String("token", tokenSymbol))
	return sig, nil
}

func (c *Client) doGet(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("delegator returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
