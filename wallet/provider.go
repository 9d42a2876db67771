package wallet

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"

	"github.com/vechain-community/walletkit/clause"
)

// Source identifies which backend a connection was established through. The
// fee-payment path is selected on it, so the set is closed: call sites
// switch exhaustively.
type Source string

const (
	SourceExtension Source = "extension"
	SourceEmbedded  Source = "embedded"
	SourceCrossApp  Source = "cross-app"
)

// Connection is one active wallet session. A provider holds at most one.
type Connection struct {
	Address   common.Address    `json:"address"`
	ChainID   uint64            `json:"chainId"`
	Source    Source            `json:"source"`
	Method    string            `json:"method"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ConnectParams carry the method-specific inputs of a Connect call.
type ConnectParams struct {
	// Method selects the authentication ceremony: "wallet" for extension
	// connections (optionally pinned via WalletSource), "email", "oauth" or
	// "passkey" for embedded ones, "app" for cross-app ones.
	Method string
	// WalletSource pins a specific extension wallet, e.g. "veworld".
	WalletSource string
	Email        string
	Code         string
	// OAuthProvider names the identity provider for the oauth method.
	OAuthProvider string
	// AppID is the target ecosystem app for cross-app connections.
	AppID string
}

// SignOptions tune a transaction signing request.
type SignOptions struct {
	// Gas is the gas limit to advertise; zero lets the signer decide.
	Gas uint64
	// SuggestedMaxGas bounds the signer's own estimation fallback.
	SuggestedMaxGas uint64
	// Delegated marks the body as fee-delegated.
	Delegated bool
	Comment   string
}

// SignedTransaction is the outcome of a signing request. Extension wallets
// submit themselves and return an ID; custodial and cross-app signers return
// an authorization Signature for delegated submission.
type SignedTransaction struct {
	ID        string
	Signature []byte
}

// Provider is the capability set shared by the three wallet backends.
type Provider interface {
	IsAvailable() bool
	Connect(ctx context.Context, params ConnectParams) (*Connection, error)
	Disconnect(ctx context.Context) error
	SignTransaction(ctx context.Context, clauses []clause.Clause, opts SignOptions) (*SignedTransaction, error)
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
	GetAccounts(ctx context.Context) ([]common.Address, error)
	GetCurrentAccount() (common.Address, bool)

	// CurrentConnection returns the active connection, or nil. The sender
	// selects the fee-payment path on its Source.
	CurrentConnection() *Connection

	// Subscribe registers an observer for connection lifecycle events. Each
	// provider owns its own subscriber list.
	Subscribe(ch chan<- Event) event.Subscription
}

// EventType enumerates provider notifications.
type EventType string

const (
	EventConnected      EventType = "connected"
	EventDisconnected   EventType = "disconnected"
	EventAccountChanged EventType = "accountChanged"
)

// Event is one provider notification.
type Event struct {
	Type       EventType
	Source     Source
	Address    common.Address
	Connection *Connection
}

// notifier is the shared observer surface embedded by every provider.
type notifier struct {
	feed event.Feed
}

func (n *notifier) Subscribe(ch chan<- Event) event.Subscription {
	return n.feed.Subscribe(ch)
}

func (n *notifier) notify(ev Event) {
	n.feed.Send(ev)
}

// Typed sentinel errors, so UI layers can branch without parsing free text.
var (
	// ErrUserRejected is returned when the user declined a signing or
	// connection prompt.
	ErrUserRejected = errors.New("user rejected the request")

	// ErrVerificationRequired signals that the ceremony needs a host UI
	// step (code entry, passkey prompt) before it can complete.
	ErrVerificationRequired = errors.New("VERIFICATION_REQUIRED")

	// ErrProviderUnavailable is returned when the underlying bridge or
	// driver is not present in this environment.
	ErrProviderUnavailable = errors.New("wallet provider is not available")

	// ErrNotConnected is returned by operations that need an active
	// connection.
	ErrNotConnected = errors.New("no active wallet connection")

	// ErrAppNotAllowed rejects cross-app connections to apps outside the
	// configured allow-list.
	ErrAppNotAllowed = errors.New("target app id is not allow-listed")
)

// OAuthRedirectError asks the host application to send the user through an
// OAuth redirect before the connection can complete.
type OAuthRedirectError struct {
	URL string
}

func (e *OAuthRedirectError) Error() string {
	return "OAUTH_REDIRECT_REQUIRED:" + e.URL
}

var rejectionKeywords = []string{"rejected", "cancelled", "user denied", "closed"}

// IsUserRejection classifies an error as a user rejection. Errors from this
// package carry the ErrUserRejected sentinel; for foreign errors coming out
// of injected drivers it falls back to keyword matching.
// TODO(drivers): drop the keyword fallback once every bridge driver maps its
// rejection to ErrUserRejected.
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, kw := range rejectionKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
