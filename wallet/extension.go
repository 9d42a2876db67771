package wallet

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/params"
)

// Certificate is the envelope extension wallets expect for message signing:
// the payload is wrapped with a purpose and signer identity before it
// reaches the wallet prompt.
type Certificate struct {
	Purpose   string             `json:"purpose"`
	Payload   CertificatePayload `json:"payload"`
	Domain    string             `json:"domain"`
	Timestamp int64              `json:"timestamp"`
	Signer    string             `json:"signer"`
}

type CertificatePayload struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ExtensionBridge is the browser-extension transport, injected at
// configuration time so initialization failures stay explicit and testable.
type ExtensionBridge interface {
	Available() bool
	// RequestConnection prompts the user, optionally pinned to a specific
	// wallet source ("" lets the user choose).
	RequestConnection(ctx context.Context, walletSource string) (common.Address, error)
	// SignAndSubmit has the wallet sign and broadcast the clauses itself,
	// returning the transaction id. Fee delegation inside the wallet is
	// opaque to this layer.
	SignAndSubmit(ctx context.Context, clauses []clause.Clause, opts SignOptions) (string, error)
	SignCertificate(ctx context.Context, cert Certificate) ([]byte, error)
	Accounts(ctx context.Context) ([]common.Address, error)
	Close(ctx context.Context) error
}

// ExtensionProvider drives a browser-extension wallet. The bridge is
// initialized lazily on first use.
type ExtensionProvider struct {
	notifier

	network   *params.Network
	newBridge func() (ExtensionBridge, error)
	logger    *zap.Logger

	mu     sync.Mutex
	bridge ExtensionBridge
	conn   *Connection
}

func NewExtensionProvider(network *params.Network, newBridge func() (ExtensionBridge, error), logger *zap.Logger) *ExtensionProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtensionProvider{
		network:   network,
		newBridge: newBridge,
		logger:    logger.Named("wallet.extension"),
	}
}

func (p *ExtensionProvider) ensureBridge() (ExtensionBridge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bridge != nil {
		return p.bridge, nil
	}
	bridge, err := p.newBridge()
	if err != nil {
		return nil, errors.Wrap(err, "initialize extension bridge")
	}
	p.bridge = bridge
	return bridge, nil
}

func (p *ExtensionProvider) IsAvailable() bool {
	bridge, err := p.ensureBridge()
	if err != nil {
		return false
	}
	return bridge.Available()
}

func (p *ExtensionProvider) Connect(ctx context.Context, cp ConnectParams) (*Connection, error) {
	bridge, err := p.ensureBridge()
	if err != nil {
		return nil, err
	}
	if !bridge.Available() {
		return nil, ErrProviderUnavailable
	}

	addr, err := bridge.RequestConnection(ctx, cp.WalletSource)
	if err != nil {
		if IsUserRejection(err) {
			return nil, errors.Wrap(ErrUserRejected, "extension connection")
		}
		return nil, errors.Wrap(err, "extension connection")
	}

	conn := &Connection{
		Address:   addr,
		ChainID:   p.network.ChainID,
		Source:    SourceExtension,
		Method:    cp.Method,
		Timestamp: time.Now(),
		Metadata:  map[string]string{"sessionId": uuid.NewString()},
	}
	if cp.WalletSource != "" {
		conn.Metadata["walletSource"] = cp.WalletSource
	}

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	p.logger.Info("connected", zap.String("address", addr.Hex()))
	p.notify(Event{Type: EventConnected, Source: SourceExtension, Address: addr, Connection: conn})
	return conn, nil
}

func (p *ExtensionProvider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	conn := p.conn
	bridge := p.bridge
	p.conn = nil
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	if bridge != nil {
		if err := bridge.Close(ctx); err != nil {
			p.logger.Warn("bridge close failed", zap.Error(err))
		}
	}
	p.notify(Event{Type: EventDisconnected, Source: SourceExtension, Address: conn.Address})
	return nil
}

func (p *ExtensionProvider) SignTransaction(ctx context.Context, clauses []clause.Clause, opts SignOptions) (*SignedTransaction, error) {
	p.mu.Lock()
	conn := p.conn
	bridge := p.bridge
	p.mu.Unlock()
	if conn == nil || bridge == nil {
		return nil, ErrNotConnected
	}

	id, err := bridge.SignAndSubmit(ctx, clauses, opts)
	if err != nil {
		if IsUserRejection(err) {
			return nil, errors.Wrap(ErrUserRejected, "sign transaction")
		}
		return nil, errors.Wrap(err, "sign transaction")
	}
	return &SignedTransaction{ID: id}, nil
}

func (p *ExtensionProvider) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	p.mu.Lock()
	conn := p.conn
	bridge := p.bridge
	p.mu.Unlock()
	if conn == nil || bridge == nil {
		return nil, ErrNotConnected
	}

	cert := Certificate{
		Purpose:   "identification",
		Payload:   CertificatePayload{Type: "text", Content: string(message)},
		Timestamp: time.Now().Unix(),
		Signer:    conn.Address.Hex(),
	}
	sig, err := bridge.SignCertificate(ctx, cert)
	if err != nil {
		if IsUserRejection(err) {
			return nil, errors.Wrap(ErrUserRejected, "sign message")
		}
		return nil, errors.Wrap(err, "sign message")
	}
	return sig, nil
}

func (p *ExtensionProvider) GetAccounts(ctx context.Context) ([]common.Address, error) {
	bridge, err := p.ensureBridge()
	if err != nil {
		return nil, err
	}
	return bridge.Accounts(ctx)
}

func (p *ExtensionProvider) GetCurrentAccount() (common.Address, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return common.Address{}, false
	}
	return p.conn.Address, true
}

// CurrentConnection returns the active connection, if any.
func (p *ExtensionProvider) CurrentConnection() *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn
}

var _ Provider = (*ExtensionProvider)(nil)

func (c Certificate) JSON() ([]byte, error) {
	return json.Marshal(c)
}
