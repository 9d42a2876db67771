package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vechain-community/walletkit/abispec"
	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/params"
	"github.com/vechain-community/walletkit/thor"
	"github.com/vechain-community/walletkit/typeddata"
)

// Connect methods accepted by the embedded provider.
const (
	MethodEmail         = "email"
	MethodOAuth         = "oauth"
	MethodOAuthCallback = "oauth-callback"
	MethodPasskey       = "passkey"
)

// CustodialDriver is the remote custodial signer behind the embedded wallet.
// Drivers return the typed sentinel errors from this package when a ceremony
// needs a host UI step.
type CustodialDriver interface {
	StartEmailVerification(ctx context.Context, email string) error
	CompleteEmailVerification(ctx context.Context, email, code string) (common.Address, error)
	// OAuthURL returns the redirect URL for the given identity provider.
	OAuthURL(provider string) (string, error)
	// ResumeOAuth completes a redirect flow with the callback code.
	ResumeOAuth(ctx context.Context, code string) (common.Address, error)
	// PasskeyLogin runs the passkey ceremony; drivers without a host UI
	// return ErrVerificationRequired.
	PasskeyLogin(ctx context.Context) (common.Address, error)
	SignDigest(ctx context.Context, account common.Address, digest common.Hash) ([]byte, error)
	Accounts(ctx context.Context) ([]common.Address, error)
	Logout(ctx context.Context) error
}

// CodeReader is the slice of the node client needed to check smart-account
// deployment.
type CodeReader interface {
	GetAccount(ctx context.Context, addr common.Address) (*thor.Account, error)
}

// EmbeddedProvider authenticates through a custodial driver and signs by
// building smart-account typed-data authorizations.
type EmbeddedProvider struct {
	notifier

	network *params.Network
	driver  CustodialDriver
	reader  CodeReader
	logger  *zap.Logger

	mu       sync.Mutex
	conn     *Connection
	deployed bool
}

func NewEmbeddedProvider(network *params.Network, driver CustodialDriver, reader CodeReader, logger *zap.Logger) *EmbeddedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddedProvider{
		network: network,
		driver:  driver,
		reader:  reader,
		logger:  logger.Named("wallet.embedded"),
	}
}

func (p *EmbeddedProvider) IsAvailable() bool {
	return p.driver != nil
}

func (p *EmbeddedProvider) Connect(ctx context.Context, cp ConnectParams) (*Connection, error) {
	if p.driver == nil {
		return nil, ErrProviderUnavailable
	}

	var (
		addr common.Address
		err  error
	)
	switch cp.Method {
	case MethodEmail:
		if cp.Code == "" {
			if err := p.driver.StartEmailVerification(ctx, cp.Email); err != nil {
				return nil, errors.Wrap(err, "start email verification")
			}
			return nil, ErrVerificationRequired
		}
		addr, err = p.driver.CompleteEmailVerification(ctx, cp.Email, cp.Code)
	case MethodOAuth:
		url, urlErr := p.driver.OAuthURL(cp.OAuthProvider)
		if urlErr != nil {
			return nil, errors.Wrap(urlErr, "oauth url")
		}
		return nil, &OAuthRedirectError{URL: url}
	case MethodOAuthCallback:
		addr, err = p.driver.ResumeOAuth(ctx, cp.Code)
	case MethodPasskey:
		addr, err = p.driver.PasskeyLogin(ctx)
	default:
		return nil, errors.Errorf("unsupported embedded connect method %q", cp.Method)
	}
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		Address:   addr,
		ChainID:   p.network.ChainID,
		Source:    SourceEmbedded,
		Method:    cp.Method,
		Timestamp: time.Now(),
		Metadata:  map[string]string{"sessionId": uuid.NewString()},
	}

	p.mu.Lock()
	prev := p.conn
	p.conn = conn
	p.deployed = false
	p.mu.Unlock()

	p.logger.Info("connected", zap.String("address", addr.Hex()), zap.String("method", cp.Method))
	if prev != nil && prev.Address != addr {
		p.notify(Event{Type: EventAccountChanged, Source: SourceEmbedded, Address: addr, Connection: conn})
	}
	p.notify(Event{Type: EventConnected, Source: SourceEmbedded, Address: addr, Connection: conn})
	return conn, nil
}

func (p *EmbeddedProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := p.driver.Logout(ctx); err != nil {
		p.logger.Warn("driver logout failed", zap.Error(err))
	}
	p.notify(Event{Type: EventDisconnected, Source: SourceEmbedded, Address: conn.Address})
	return nil
}

// DeploymentClause returns the factory clause deploying the smart account,
// or nil when the account already has code on chain. The first authorization
// batch after a fresh signup prepends it.
func (p *EmbeddedProvider) DeploymentClause(ctx context.Context) (*clause.Clause, error) {
	p.mu.Lock()
	conn := p.conn
	deployed := p.deployed
	p.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}
	if deployed || p.reader == nil || p.network.AccountFactory == (common.Address{}) {
		return nil, nil
	}

	acc, err := p.reader.GetAccount(ctx, conn.Address)
	if err != nil {
		return nil, errors.Wrap(err, "check smart account code")
	}
	if acc.HasCode {
		p.mu.Lock()
		p.deployed = true
		p.mu.Unlock()
		return nil, nil
	}

	method := &abispec.Method{
		Name:   "createAccount",
		Inputs: []abispec.Parameter{{Name: "owner", Type: "address"}},
	}
	owner := json.RawMessage(fmt.Sprintf("%q", conn.Address.Hex()))
	deploy, err := clause.ContractCall(p.network.AccountFactory, method,
		[]json.RawMessage{owner}, new(big.Int), "Deploy smart account")
	if err != nil {
		return nil, errors.Wrap(err, "build deployment clause")
	}
	return &deploy, nil
}

func (p *EmbeddedProvider) SignTransaction(ctx context.Context, clauses []clause.Clause, opts SignOptions) (*SignedTransaction, error) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	deploy, err := p.DeploymentClause(ctx)
	if err != nil {
		return nil, err
	}
	if deploy != nil {
		clauses = append([]clause.Clause{*deploy}, clauses...)
	}

	typed, err := authorizationTypedData(conn.ChainID, conn.Address, clauses, time.Now())
	if err != nil {
		return nil, err
	}
	digest, err := typeddata.Hash(typed)
	if err != nil {
		return nil, errors.Wrap(err, "hash authorization")
	}
	sig, err := p.driver.SignDigest(ctx, conn.Address, digest)
	if err != nil {
		if IsUserRejection(err) {
			return nil, errors.Wrap(ErrUserRejected, "sign authorization")
		}
		return nil, errors.Wrap(err, "sign authorization")
	}
	return &SignedTransaction{Signature: sig}, nil
}

func (p *EmbeddedProvider) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}
	digest := textDigest(message)
	sig, err := p.driver.SignDigest(ctx, conn.Address, digest)
	if err != nil {
		if IsUserRejection(err) {
			return nil, errors.Wrap(ErrUserRejected, "sign message")
		}
		return nil, errors.Wrap(err, "sign message")
	}
	return sig, nil
}

// textDigest hashes a free-form message with the EIP-191 personal prefix.
func textDigest(message []byte) common.Hash {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(message))
	return crypto.Keccak256Hash([]byte(prefix), message)
}

func (p *EmbeddedProvider) GetAccounts(ctx context.Context) ([]common.Address, error) {
	if p.driver == nil {
		return nil, ErrProviderUnavailable
	}
	return p.driver.Accounts(ctx)
}

func (p *EmbeddedProvider) GetCurrentAccount() (common.Address, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return common.Address{}, false
	}
	return p.conn.Address, true
}

// CurrentConnection returns the active connection, if any.
func (p *EmbeddedProvider) CurrentConnection() *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

var _ Provider = (*EmbeddedProvider)(nil)
