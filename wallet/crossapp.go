package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/params"
	"github.com/vechain-community/walletkit/typeddata"
)

// AppConnector is the transport to another ecosystem app's wallet, injected
// at configuration time.
type AppConnector interface {
	Connect(ctx context.Context, appID string) (common.Address, error)
	SignDigest(ctx context.Context, account common.Address, digest common.Hash) ([]byte, error)
	Disconnect(ctx context.Context) error
}

// CrossAppProvider delegates connection and signing to another allow-listed
// ecosystem app. It shares the smart-account authorization schema with the
// embedded provider.
type CrossAppProvider struct {
	notifier

	network   *params.Network
	connector AppConnector
	logger    *zap.Logger

	mu   sync.Mutex
	conn *Connection
}

func NewCrossAppProvider(network *params.Network, connector AppConnector, logger *zap.Logger) *CrossAppProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CrossAppProvider{
		network:   network,
		connector: connector,
		logger:    logger.Named("wallet.crossapp"),
	}
}

func (p *CrossAppProvider) IsAvailable() bool {
	return p.connector != nil
}

func (p *CrossAppProvider) Connect(ctx context.Context, cp ConnectParams) (*Connection, error) {
	if p.connector == nil {
		return nil, ErrProviderUnavailable
	}
	// The allow-list is checked before any transport activity.
	if !p.network.AppAllowed(cp.AppID) {
		return nil, errors.Wrapf(ErrAppNotAllowed, "app %q", cp.AppID)
	}

	addr, err := p.connector.Connect(ctx, cp.AppID)
	if err != nil {
		if IsUserRejection(err) {
			return nil, errors.Wrap(ErrUserRejected, "cross-app connection")
		}
		return nil, errors.Wrap(err, "cross-app connection")
	}

	conn := &Connection{
		Address:   addr,
		ChainID:   p.network.ChainID,
		Source:    SourceCrossApp,
		Method:    cp.Method,
		Timestamp: time.Now(),
		Metadata: map[string]string{
			"sessionId": uuid.NewString(),
			"appId":     cp.AppID,
		},
	}

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	p.logger.Info("connected", zap.String("address", addr.Hex()), zap.String("appId", cp.AppID))
	p.notify(Event{Type: EventConnected, Source: SourceCrossApp, Address: addr, Connection: conn})
	return conn, nil
}

func (p *CrossAppProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := p.connector.Disconnect(ctx); err != nil {
		p.logger.Warn("connector disconnect failed", zap.Error(err))
	}
	p.notify(Event{Type: EventDisconnected, Source: SourceCrossApp, Address: conn.Address})
	return nil
}

func (p *CrossAppProvider) SignTransaction(ctx context.Context, clauses []clause.Clause, opts SignOptions) (*SignedTransaction, error) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	typed, err := authorizationTypedData(conn.ChainID, conn.Address, clauses, time.Now())
	if err != nil {
		return nil, err
	}
	digest, err := typeddata.Hash(typed)
	if err != nil {
		return nil, errors.Wrap(err, "hash authorization")
	}
	sig, err := p.connector.SignDigest(ctx, conn.Address, digest)
	if err != nil {
		if IsUserRejection(err) {
			return nil, errors.Wrap(ErrUserRejected, "sign authorization")
		}
		return nil, errors.Wrap(err, "sign authorization")
	}
	return &SignedTransaction{Signature: sig}, nil
}

func (p *CrossAppProvider) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}
	sig, err := p.connector.SignDigest(ctx, conn.Address, textDigest(message))
	if err != nil {
		if IsUserRejection(err) {
			return nil, errors.Wrap(ErrUserRejected, "sign message")
		}
		return nil, errors.Wrap(err, "sign message")
	}
	return sig, nil
}

func (p *CrossAppProvider) GetAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil, nil
	}
	return []common.Address{p.conn.Address}, nil
}

func (p *CrossAppProvider) GetCurrentAccount() (common.Address, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return common.Address{}, false
	}
	return p.conn.Address, true
}

// CurrentConnection returns the active connection, if any.
func (p *CrossAppProvider) CurrentConnection() *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

var _ Provider = (*CrossAppProvider)(nil)
