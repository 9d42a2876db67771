package transactions

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/require"

	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/delegation"
	"github.com/vechain-community/walletkit/params"
	"github.com/vechain-community/walletkit/thor"
	"github.com/vechain-community/walletkit/wallet"
)

var (
	userAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	feeToken  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	depositTo = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
)

var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// fakeNodeClient answers gas estimation inspections and balanceOf reads, and
// records raw submissions.
type fakeNodeClient struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	rawSent  [][]byte
}

func (f *fakeNodeClient) InspectClauses(ctx context.Context, clauses []clause.Clause, caller common.Address, revision string) ([]thor.CallResult, error) {
	if len(clauses) == 1 && len(clauses[0].Data) >= 4 && bytes.Equal(clauses[0].Data[:4], balanceOfSelector) {
		balance := new(big.Int)
		if b, ok := f.balances[*clauses[0].To]; ok {
			balance = b
		}
		return []thor.CallResult{{Data: common.LeftPadBytes(balance.Bytes(), 32)}}, nil
	}
	results := make([]thor.CallResult, len(clauses))
	return results, nil
}

func (f *fakeNodeClient) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rawSent = append(f.rawSent, raw)
	return "0xsubmitted", nil
}

func (f *fakeNodeClient) TransactionReceipt(ctx context.Context, id string) (*thor.Receipt, error) {
	return nil, thor.ErrReceiptNotFound
}

func (f *fakeNodeClient) BestBlockRef(ctx context.Context) ([8]byte, error) {
	return [8]byte{0, 0, 0, 1}, nil
}

func (f *fakeNodeClient) ChainTag(ctx context.Context) (byte, error) {
	return 0x4a, nil
}

func (f *fakeNodeClient) GetAccount(ctx context.Context, addr common.Address) (*thor.Account, error) {
	zero := hexutil.Big(*new(big.Int))
	return &thor.Account{Balance: &zero, Energy: &zero}, nil
}

// fakeWalletProvider stands in for any of the wallet backends.
type fakeWalletProvider struct {
	conn        *wallet.Connection
	signErr     error
	lastClauses []clause.Clause
	signCalls   int
}

func (f *fakeWalletProvider) IsAvailable() bool { return true }

func (f *fakeWalletProvider) Connect(ctx context.Context, params wallet.ConnectParams) (*wallet.Connection, error) {
	return f.conn, nil
}

func (f *fakeWalletProvider) Disconnect(ctx context.Context) error { return nil }

func (f *fakeWalletProvider) SignTransaction(ctx context.Context, clauses []clause.Clause, opts wallet.SignOptions) (*wallet.SignedTransaction, error) {
	f.signCalls++
	f.lastClauses = clause.CloneAll(clauses)
	if f.signErr != nil {
		return nil, f.signErr
	}
	if f.conn != nil && f.conn.Source == wallet.SourceExtension {
		return &wallet.SignedTransaction{ID: "0xext"}, nil
	}
	return &wallet.SignedTransaction{Signature: bytes.Repeat([]byte{0x01}, 65)}, nil
}

func (f *fakeWalletProvider) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	return nil, nil
}

func (f *fakeWalletProvider) GetAccounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{userAddr}, nil
}

func (f *fakeWalletProvider) GetCurrentAccount() (common.Address, bool) {
	if f.conn == nil {
		return common.Address{}, false
	}
	return f.conn.Address, true
}

func (f *fakeWalletProvider) CurrentConnection() *wallet.Connection { return f.conn }

func (f *fakeWalletProvider) Subscribe(ch chan<- wallet.Event) event.Subscription {
	var feed event.Feed
	return feed.Subscribe(ch)
}

func embeddedConn() *wallet.Connection {
	return &wallet.Connection{Address: userAddr, Source: wallet.SourceEmbedded}
}

func senderNetwork() *params.Network {
	return &params.Network{
		Name:    "test",
		ChainID: 1,
		NodeURL: "http://localhost:8669",
		FeeTokens: []params.FeeToken{
			{Symbol: "B3TR", Address: feeToken, Decimals: 18, Rank: 1},
		},
	}
}

func sponsorServer(t *testing.T, fail bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			http.Error(w, "sponsor unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, `{"signature":"%s"}`, hexutil.Encode(bytes.Repeat([]byte{0x02}, 65)))
	}))
}

func delegatorServer(t *testing.T, cost string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/estimate", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"costs":[{"symbol":"B3TR","amount":"%s"}]}`, cost)
	})
	mux.HandleFunc("/deposit-account", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"address":"%s"}`, depositTo.Hex())
	})
	mux.HandleFunc("/sign", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"signature":"%s"}`, hexutil.Encode(bytes.Repeat([]byte{0x03}, 65)))
	})
	return httptest.NewServer(mux)
}

func sendClauses() []clause.Clause {
	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	return []clause.Clause{{To: &to, Value: big.NewInt(100)}}
}

func TestSendExtensionSubmitsDirectly(t *testing.T) {
	client := &fakeNodeClient{}
	provider := &fakeWalletProvider{conn: &wallet.Connection{Address: userAddr, Source: wallet.SourceExtension}}
	sender := NewSender(senderNetwork(), client, provider, nil)

	id, err := sender.Send(context.Background(), sendClauses(), SendOptions{})
	require.NoError(t, err)
	require.Equal(t, "0xext", id)
	require.Empty(t, client.rawSent)
}

func TestSendRequiresConnection(t *testing.T) {
	sender := NewSender(senderNetwork(), &fakeNodeClient{}, &fakeWalletProvider{}, nil)
	_, err := sender.Send(context.Background(), sendClauses(), SendOptions{})
	require.ErrorIs(t, err, wallet.ErrNotConnected)
}

func TestSendRejectsEmptyClauseList(t *testing.T) {
	sender := NewSender(senderNetwork(), &fakeNodeClient{}, &fakeWalletProvider{conn: embeddedConn()}, nil)
	_, err := sender.Send(context.Background(), nil, SendOptions{})
	require.Error(t, err)
}

func TestSendSponsoredTier(t *testing.T) {
	sponsor := sponsorServer(t, false)
	defer sponsor.Close()

	client := &fakeNodeClient{}
	provider := &fakeWalletProvider{conn: embeddedConn()}
	sender := NewSender(senderNetwork(), client, provider, nil).
		WithSponsorClient(delegation.NewSponsorClient(sponsor.URL, nil))

	id, err := sender.Send(context.Background(), sendClauses(), SendOptions{})
	require.NoError(t, err)
	require.Equal(t, "0xsubmitted", id)
	require.Len(t, client.rawSent, 1)
	// The sponsor pays; no payment clause is added.
	require.Len(t, provider.lastClauses, 1)
}

func TestSendFallsBackToGenericDelegator(t *testing.T) {
	sponsor := sponsorServer(t, true)
	defer sponsor.Close()
	delegator := delegatorServer(t, "100")
	defer delegator.Close()

	client := &fakeNodeClient{balances: map[common.Address]*big.Int{feeToken: big.NewInt(1000)}}
	provider := &fakeWalletProvider{conn: embeddedConn()}
	sender := NewSender(senderNetwork(), client, provider, nil).
		WithSponsorClient(delegation.NewSponsorClient(sponsor.URL, nil)).
		WithDelegatorClient(delegation.NewClient(delegator.URL))

	id, err := sender.Send(context.Background(), sendClauses(), SendOptions{})
	require.NoError(t, err)
	require.Equal(t, "0xsubmitted", id)

	// The signed clause set carries the appended fee payment: an ERC-20
	// transfer on the fee token targeting the delegator's deposit account.
	require.Len(t, provider.lastClauses, 2)
	payment := provider.lastClauses[1]
	require.Equal(t, feeToken, *payment.To)
	require.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, payment.Data[:4])
}

func TestSendGenericDelegatorInsufficientBalance(t *testing.T) {
	delegator := delegatorServer(t, "100")
	defer delegator.Close()

	client := &fakeNodeClient{balances: map[common.Address]*big.Int{feeToken: big.NewInt(50)}}
	provider := &fakeWalletProvider{conn: embeddedConn()}
	sender := NewSender(senderNetwork(), client, provider, nil).
		WithDelegatorClient(delegation.NewClient(delegator.URL))

	_, err := sender.Send(context.Background(), sendClauses(), SendOptions{})
	require.ErrorIs(t, err, delegation.ErrNoEligibleFeeToken)
}

func TestSendWithoutDelegationIsHardStop(t *testing.T) {
	provider := &fakeWalletProvider{conn: embeddedConn()}
	sender := NewSender(senderNetwork(), &fakeNodeClient{}, provider, nil)

	_, err := sender.Send(context.Background(), sendClauses(), SendOptions{})
	require.ErrorIs(t, err, ErrCannotFundAccount)
}

func TestSendCrossAppUsesDelegation(t *testing.T) {
	sponsor := sponsorServer(t, false)
	defer sponsor.Close()

	client := &fakeNodeClient{}
	provider := &fakeWalletProvider{conn: &wallet.Connection{Address: userAddr, Source: wallet.SourceCrossApp}}
	sender := NewSender(senderNetwork(), client, provider, nil).
		WithSponsorClient(delegation.NewSponsorClient(sponsor.URL, nil))

	id, err := sender.Send(context.Background(), sendClauses(), SendOptions{})
	require.NoError(t, err)
	require.Equal(t, "0xsubmitted", id)
}
