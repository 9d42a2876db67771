package transactions

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/delegation"
	"github.com/vechain-community/walletkit/gas"
	"github.com/vechain-community/walletkit/params"
	"github.com/vechain-community/walletkit/thor"
	"github.com/vechain-community/walletkit/tokens"
	"github.com/vechain-community/walletkit/wallet"
)

// ErrCannotFundAccount is the deliberate hard stop of the fee-payment
// fallback: custodial and smart accounts cannot hold native gas currency to
// self-pay, so without any delegation configured the send must not fall back
// to raw submission.
var ErrCannotFundAccount = errors.New("cannot fund this account directly; configure fee delegation")

// Client is the node surface the sender needs.
type Client interface {
	InspectClauses(ctx context.Context, clauses []clause.Clause, caller common.Address, revision string) ([]thor.CallResult, error)
	SendRawTransaction(ctx context.Context, raw []byte) (string, error)
	TransactionReceipt(ctx context.Context, id string) (*thor.Receipt, error)
	BestBlockRef(ctx context.Context) ([8]byte, error)
	ChainTag(ctx context.Context) (byte, error)
	GetAccount(ctx context.Context, addr common.Address) (*thor.Account, error)
}

// SendOptions tune one send attempt.
type SendOptions struct {
	// SuggestedMaxGas caps the estimation fallback; estimation failures
	// degrade to it instead of blocking the send.
	SuggestedMaxGas uint64
	// PreferredFeeToken is tried first by the generic delegator tier.
	PreferredFeeToken string
	Comment           string
}

// Sender picks a fee-payment path and submits a clause set through the
// active wallet connection.
type Sender struct {
	network   *params.Network
	client    Client
	provider  wallet.Provider
	sponsor   *delegation.SponsorClient
	delegator *delegation.Client
	logger    *zap.Logger
}

func NewSender(network *params.Network, client Client, provider wallet.Provider, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sender{
		network:  network,
		client:   client,
		provider: provider,
		logger:   logger.Named("transactions.sender"),
	}
	if network.DelegatorURL != "" {
		s.sponsor = delegation.NewSponsorClient(network.DelegatorURL, nil)
	}
	if network.GenericDelegatorURL != "" {
		s.delegator = delegation.NewClient(network.GenericDelegatorURL)
	}
	return s
}

// WithSponsorClient overrides the sponsor client (tests, custom transports).
func (s *Sender) WithSponsorClient(c *delegation.SponsorClient) *Sender {
	s.sponsor = c
	return s
}

// WithDelegatorClient overrides the generic delegator client.
func (s *Sender) WithDelegatorClient(c *delegation.Client) *Sender {
	s.delegator = c
	return s
}

// Send submits the clauses and returns the transaction id. Extension
// connections submit directly through the wallet; other connections walk
// the delegation tiers strictly in order: sponsor-paid delegation, then the
// generic pay-in-token delegator, then a hard failure.
func (s *Sender) Send(ctx context.Context, clauses []clause.Clause, opts SendOptions) (string, error) {
	if len(clauses) == 0 {
		return "", errors.New("no clauses to send")
	}
	conn := s.provider.CurrentConnection()
	if conn == nil {
		return "", wallet.ErrNotConnected
	}

	switch conn.Source {
	case wallet.SourceExtension:
		return s.sendDirect(ctx, clauses, opts)
	case wallet.SourceEmbedded, wallet.SourceCrossApp:
		return s.sendDelegated(ctx, conn, clauses, opts)
	}
	return "", errors.Errorf("unsupported connection source %q", conn.Source)
}

// sendDirect hands the clauses to the extension wallet, which signs and
// broadcasts itself. Any fee delegation inside the wallet is opaque here.
func (s *Sender) sendDirect(ctx context.Context, clauses []clause.Clause, opts SendOptions) (string, error) {
	signed, err := s.provider.SignTransaction(ctx, clauses, wallet.SignOptions{
		SuggestedMaxGas: opts.SuggestedMaxGas,
		Comment:         opts.Comment,
	})
	if err != nil {
		return "", err
	}
	if signed.ID == "" {
		return "", errors.New("extension wallet returned no transaction id")
	}
	return signed.ID, nil
}

func (s *Sender) sendDelegated(ctx context.Context, conn *wallet.Connection, clauses []clause.Clause, opts SendOptions) (string, error) {
	// Tier 1: sponsor-paid fee delegation.
	if s.sponsor != nil {
		id, err := s.sendSponsored(ctx, conn, clauses, opts)
		if err == nil {
			return id, nil
		}
		s.logger.Warn("sponsor delegation failed, trying generic delegator", zap.Error(err))
	}

	// Tier 2: generic delegator paid in an alternate token.
	if s.delegator != nil {
		id, err := s.sendViaGenericDelegator(ctx, conn, clauses, opts)
		if err == nil {
			return id, nil
		}
		// Insufficient fee funds is a configuration problem, not a reason
		// to fall through to the hard stop's generic guidance.
		if errors.Is(err, delegation.ErrNoEligibleFeeToken) {
			return "", err
		}
		s.logger.Warn("generic delegation failed", zap.Error(err))
		return "", err
	}

	// Tier 3: no usable delegation path remains.
	return "", ErrCannotFundAccount
}

func (s *Sender) sendSponsored(ctx context.Context, conn *wallet.Connection, clauses []clause.Clause, opts SendOptions) (string, error) {
	body, originSig, err := s.signBody(ctx, conn, clauses, opts)
	if err != nil {
		return "", err
	}
	encoded, err := body.Encode()
	if err != nil {
		return "", err
	}
	payerSig, err := s.sponsor.Sign(ctx, encoded, conn.Address)
	if err != nil {
		return "", err
	}
	raw, err := body.EncodeSigned(originSig, payerSig)
	if err != nil {
		return "", err
	}
	return s.client.SendRawTransaction(ctx, raw)
}

func (s *Sender) sendViaGenericDelegator(ctx context.Context, conn *wallet.Connection, clauses []clause.Clause, opts SendOptions) (string, error) {
	costs, err := s.delegator.EstimateGas(ctx, clauses)
	if err != nil {
		return "", err
	}

	feeTokens := make([]tokens.Token, 0, len(s.network.FeeTokens))
	for _, ft := range s.network.FeeTokens {
		feeTokens = append(feeTokens, tokens.Token{Address: ft.Address, Symbol: ft.Symbol, Decimals: ft.Decimals})
	}
	balances, err := tokens.Balances(ctx, s.client, feeTokens, conn.Address)
	if err != nil {
		return "", errors.Wrap(err, "read fee token balances")
	}

	selection, err := delegation.SelectFeeToken(s.network.FeeTokens, balances, costs, opts.PreferredFeeToken)
	if err != nil {
		return "", err
	}
	s.logger.Info("fee token selected",
		zap.String("token", selection.SelectedToken.Symbol),
		zap.String("cost", selection.Cost.String()))

	deposit, err := s.delegator.GetDepositAccount(ctx)
	if err != nil {
		return "", err
	}
	payment, err := clause.TransferToken(selection.SelectedToken.Address, deposit,
		new(big.Int).Set(selection.Cost), "Delegator fee payment")
	if err != nil {
		return "", err
	}
	full := append(clause.CloneAll(clauses), payment)

	body, originSig, err := s.signBody(ctx, conn, full, opts)
	if err != nil {
		return "", err
	}
	encoded, err := body.Encode()
	if err != nil {
		return "", err
	}
	payerSig, err := s.delegator.SignTransaction(ctx, selection.SelectedToken.Symbol, encoded)
	if err != nil {
		return "", err
	}
	raw, err := body.EncodeSigned(originSig, payerSig)
	if err != nil {
		return "", err
	}
	return s.client.SendRawTransaction(ctx, raw)
}

// signBody estimates gas, assembles a delegated body and obtains the
// origin's authorization signature from the provider.
func (s *Sender) signBody(ctx context.Context, conn *wallet.Connection, clauses []clause.Clause, opts SendOptions) (*Body, []byte, error) {
	gasLimit, err := gas.Estimate(ctx, s.client, clauses, conn.Address, gas.Options{
		SuggestedMax: opts.SuggestedMaxGas,
		Logger:       s.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	signed, err := s.provider.SignTransaction(ctx, clauses, wallet.SignOptions{
		Gas:       gasLimit,
		Delegated: true,
		Comment:   opts.Comment,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(signed.Signature) == 0 {
		return nil, nil, errors.New("provider returned no authorization signature")
	}

	body, err := NewBody(ctx, s.client, clauses, gasLimit, true)
	if err != nil {
		return nil, nil, err
	}
	return body, signed.Signature, nil
}
