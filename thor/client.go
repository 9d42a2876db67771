package thor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vechain-community/walletkit/clause"
)

const (
	// RevisionNext asks the node to execute against the next (pending) state.
	RevisionNext = "next"
	// RevisionBest executes against the latest finalized best block.
	RevisionBest = "best"

	defaultRequestTimeout = time.Minute
)

// ErrReceiptNotFound is returned while a transaction has not been included in
// a block yet.
var ErrReceiptNotFound = errors.New("transaction receipt not found")

// Client talks to a ledger node's REST API.
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
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Event is one log entry emitted by a clause during execution.
type Event struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

// Transfer is one native coin movement recorded during execution.
type Transfer struct {
	Sender    common.Address `json:"sender"`
	Recipient common.Address `json:"recipient"`
	Amount    *hexutil.Big   `json:"amount"`
}

// CallResult is the outcome of one clause in an inspection run.
type CallResult struct {
	Data      hexutil.Bytes `json:"data"`
	Events    []Event       `json:"events"`
	Transfers []Transfer    `json:"transfers"`
	GasUsed   uint64        `json:"gasUsed"`
	Reverted  bool          `json:"reverted"`
	VMError   string        `json:"vmError"`
}

type inspectRequest struct {
	Clauses []clause.Clause `json:"clauses"`
	Caller  string          `json:"caller"`
}

// InspectClauses dry-runs the clauses against the given revision and returns
// one result per clause, in order.
func (c *Client) InspectClauses(ctx context.Context, clauses []clause.Clause, caller common.Address, revision string) ([]CallResult, error) {
	if revision == "" {
		revision = RevisionNext
	}
	endpoint := fmt.Sprintf("%s/accounts/*?revision=%s", c.baseURL, url.QueryEscape(revision))
	body := inspectRequest{Clauses: clauses, Caller: caller.Hex()}

	var results []CallResult
	if err := c.doPostRequest(ctx, endpoint, body, &results); err != nil {
		return nil, errors.Wrap(err, "inspect clauses")
	}
	if len(results) != len(clauses) {
		return nil, errors.Errorf("node returned %d results for %d clauses", len(results), len(clauses))
	}
	return results, nil
}

type sendTxRequest struct {
	Raw string `json:"raw"`
}

type sendTxResponse struct {
	ID string `json:"id"`
}

// SendRawTransaction submits a signed, encoded transaction and returns its id.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	endpoint := c.baseURL + "/transactions"
	var resp sendTxResponse
	if err := c.doPostRequest(ctx, endpoint, sendTxRequest{Raw: hexutil.Encode(raw)}, &resp); err != nil {
		return "", errors.Wrap(err, "send raw transaction")
	}
	if resp.ID == "" {
		return "", errors.New("node returned an empty transaction id")
	}
	c.logger.Info("transaction submitted", zap.String("id", resp.ID))
	return resp.ID, nil
}

// ReceiptOutput is the per-clause part of a receipt.
type ReceiptOutput struct {
	ContractAddress *common.Address `json:"contractAddress"`
	Events          []Event         `json:"events"`
	Transfers       []Transfer      `json:"transfers"`
}

// ReceiptMeta locates the receipt on chain.
type ReceiptMeta struct {
	BlockID        common.Hash `json:"blockID"`
	BlockNumber    uint64      `json:"blockNumber"`
	BlockTimestamp uint64      `json:"blockTimestamp"`
	TxID           common.Hash `json:"txID"`
	TxOrigin       string      `json:"txOrigin"`
}

// Receipt is the final record of an included transaction.
type Receipt struct {
	GasUsed  uint64          `json:"gasUsed"`
	GasPayer common.Address  `json:"gasPayer"`
	Paid     *hexutil.Big    `json:"paid"`
	Reward   *hexutil.Big    `json:"reward"`
	Reverted bool            `json:"reverted"`
	Outputs  []ReceiptOutput `json:"outputs"`
	Meta     ReceiptMeta     `json:"meta"`
}

// TransactionReceipt fetches the receipt for a transaction id. While the
// transaction is still pending it returns ErrReceiptNotFound.
func (c *Client) TransactionReceipt(ctx context.Context, id string) (*Receipt, error) {
	endpoint := fmt.Sprintf("%s/transactions/%s/receipt", c.baseURL, url.PathEscape(id))
	raw, err := c.doGetRequest(ctx, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "fetch receipt")
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, ErrReceiptNotFound
	}
	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, errors.Wrap(err, "decode receipt")
	}
	return &receipt, nil
}

type block struct {
	ID     common.Hash `json:"id"`
	Number uint64      `json:"number"`
}

// BestBlockRef returns the first 8 bytes of the best block id, used as the
// blockRef of new transaction bodies.
func (c *Client) BestBlockRef(ctx context.Context) ([8]byte, error) {
	var ref [8]byte
	raw, err := c.doGetRequest(ctx, c.baseURL+"/blocks/best")
	if err != nil {
		return ref, errors.Wrap(err, "fetch best block")
	}
	var b block
	if err := json.Unmarshal(raw, &b); err != nil {
		return ref, errors.Wrap(err, "decode best block")
	}
	copy(ref[:], b.ID[:8])
	return ref, nil
}

// ChainTag returns the last byte of the genesis block id, which identifies
// the chain in transaction bodies.
func (c *Client) ChainTag(ctx context.Context) (byte, error) {
	raw, err := c.doGetRequest(ctx, c.baseURL+"/blocks/0")
	if err != nil {
		return 0, errors.Wrap(err, "fetch genesis block")
	}
	var b block
	if err := json.Unmarshal(raw, &b); err != nil {
		return 0, errors.Wrap(err, "decode genesis block")
	}
	return b.ID[len(b.ID)-1], nil
}

// Account holds the native balances of an address.
type Account struct {
	Balance *hexutil.Big `json:"balance"`
	Energy  *hexutil.Big `json:"energy"`
	HasCode bool         `json:"hasCode"`
}

// GetAccount fetches the native balance, energy balance and code flag of an
// address.
func (c *Client) GetAccount(ctx context.Context, addr common.Address) (*Account, error) {
	raw, err := c.doGetRequest(ctx, c.baseURL+"/accounts/"+addr.Hex())
	if err != nil {
		return nil, errors.Wrap(err, "fetch account")
	}
	var acc Account
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil, errors.Wrap(err, "decode account")
	}
	return &acc, nil
}

func (c *Client) doGetRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.doRequest(req)
}

func (c *Client) doPostRequest(ctx context.Context, endpoint string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	raw, err := c.doRequest(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) doRequest(req *http.Request) ([]byte, error) {
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
		return nil, errors.Errorf("node returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
