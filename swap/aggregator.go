package swap

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	netUrl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vechain-community/walletkit/bigint"
	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/params"
)

// Aggregator wraps an external swap quote API and normalizes its clause
// format into the canonical clause model.
type Aggregator struct {
	name       string
	baseURL    string
	network    *params.Network
	httpClient *http.Client
	logger     *zap.Logger
}

type AggregatorOption func(*Aggregator)

func WithHTTPClient(hc *http.Client) AggregatorOption {
	return func(a *Aggregator) { a.httpClient = hc }
}

func WithLogger(l *zap.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

func NewAggregator(name, baseURL string, network *params.Network, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		network:    network,
		httpClient: &http.Client{Timeout: time.Minute},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Name() string {
	return a.name
}

type quoteResponse struct {
	AmountOut    *bigint.BigInt   `json:"amountOut"`
	AmountOutMin *bigint.BigInt   `json:"amountOutMin"`
	PriceImpact  float64          `json:"priceImpact,omitempty"`
	Clauses      []wireClause     `json:"clauses"`
	Path         []common.Address `json:"path"`
	Error        string           `json:"error,omitempty"`
}

// GetQuote fetches a priced route for the given params.
func (a *Aggregator) GetQuote(ctx context.Context, p Params) (*Quote, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	query := netUrl.Values{}
	query.Add("fromAddress", p.FromTokenAddress.Hex())
	query.Add("toAddress", p.ToTokenAddress.Hex())
	query.Add("amountIn", p.AmountIn.String())
	query.Add("recipient", p.UserAddress.Hex())
	query.Add("slippageBps", strconv.FormatUint(uint64(p.SlippageBps), 10))
	query.Add("network", a.network.Name)

	response, err := a.doGetRequest(ctx, a.baseURL, query)
	if err != nil {
		return nil, errors.Wrapf(err, "quote from %s", a.name)
	}
	return a.handleQuoteResponse(response)
}

func (a *Aggregator) handleQuoteResponse(response []byte) (*Quote, error) {
	var qr quoteResponse
	if err := json.Unmarshal(response, &qr); err != nil {
		return nil, errors.Wrapf(err, "decode quote from %s", a.name)
	}
	if qr.Error != "" {
		return nil, errors.Errorf("%s: %s", a.name, qr.Error)
	}
	if qr.AmountOut == nil || qr.AmountOut.Int == nil {
		return nil, errors.Errorf("%s returned no output amount", a.name)
	}

	quote := &Quote{
		AggregatorName: a.name,
		Aggregator:     a,
		OutputAmount:   qr.AmountOut.Int,
		PriceImpact:    qr.PriceImpact,
		Path:           qr.Path,
		clauses:        qr.Clauses,
	}
	if qr.AmountOutMin != nil && qr.AmountOutMin.Int != nil {
		quote.MinimumOutputAmount = qr.AmountOutMin.Int
	}
	return quote, nil
}

// BuildSwapTransaction turns a quote into an executable clause list:
// the wire clauses are filtered to the configured contract allow-list and
// locally encoded, then either an exact-amount approval clause is prepended
// (token input) or the first clause's value is set to AmountIn (native
// input). The result is deterministic for identical params and quote.
func (a *Aggregator) BuildSwapTransaction(p Params, quote *Quote) ([]clause.Clause, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if quote == nil || len(quote.clauses) == 0 {
		return nil, errors.Errorf("%s quote carries no clauses", a.name)
	}

	base := make([]clause.Clause, 0, len(quote.clauses))
	for _, wc := range quote.clauses {
		if !a.network.SwapContractAllowed(wc.To) {
			a.logger.Warn("dropping clause targeting non-allow-listed contract",
				zap.String("aggregator", a.name), zap.String("to", wc.To.Hex()))
			continue
		}
		built, err := a.buildClause(wc)
		if err != nil {
			return nil, err
		}
		base = append(base, built)
	}
	if len(base) == 0 {
		return nil, errors.Errorf("no %s clause targets an allow-listed contract", a.name)
	}

	if p.FromNative() {
		base[0].Value = new(big.Int).Set(p.AmountIn)
		return base, nil
	}

	router := a.routerAddress(base)
	approval, err := clause.Approve(p.FromTokenAddress, router, p.AmountIn, "Approve token for swap")
	if err != nil {
		return nil, err
	}
	return append([]clause.Clause{approval}, base...), nil
}

// routerAddress is the spender of the approval clause: the first
// allow-listed contract, or the first clause target when no allow-list is
// configured.
func (a *Aggregator) routerAddress(base []clause.Clause) common.Address {
	if len(a.network.AllowedSwapContracts) > 0 {
		return a.network.AllowedSwapContracts[0]
	}
	return *base[0].To
}

func (a *Aggregator) buildClause(wc wireClause) (clause.Clause, error) {
	value := new(big.Int)
	if wc.Value != "" {
		v, ok := new(big.Int).SetString(strings.TrimPrefix(wc.Value, "0x"), valueBase(wc.Value))
		if !ok {
			return clause.Clause{}, errors.Errorf("invalid clause value %q from %s", wc.Value, a.name)
		}
		value = v
	}

	if wc.FunctionCall == nil {
		to := wc.To
		return clause.Clause{To: &to, Value: value, Comment: wc.Comment}, nil
	}

	method, err := abiMethod(wc.FunctionCall)
	if err != nil {
		return clause.Clause{}, errors.Wrapf(err, "%s clause", a.name)
	}
	built, err := clause.ContractCall(wc.To, method, wc.FunctionCall.Args, value, wc.Comment)
	if err != nil {
		return clause.Clause{}, errors.Wrapf(err, "%s clause", a.name)
	}
	return built, nil
}

func valueBase(s string) int {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return 16
	}
	return 10
}

func (a *Aggregator) doGetRequest(ctx context.Context, endpoint string, query netUrl.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("aggregator returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
