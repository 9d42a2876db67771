package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/params"
	"github.com/vechain-community/walletkit/thor"
)

var (
	custodialAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	factoryAddr   = common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff")
)

type fakeDriver struct {
	startedEmails []string
	signErr       error
	loggedOut     bool
}

func (d *fakeDriver) StartEmailVerification(ctx context.Context, email string) error {
	d.startedEmails = append(d.startedEmails, email)
	return nil
}

func (d *fakeDriver) CompleteEmailVerification(ctx context.Context, email, code string) (common.Address, error) {
	if code != "123456" {
		return common.Address{}, errors.New("invalid verification code")
	}
	return custodialAddr, nil
}

func (d *fakeDriver) OAuthURL(provider string) (string, error) {
	return "https://auth.example.com/" + provider, nil
}

func (d *fakeDriver) ResumeOAuth(ctx context.Context, code string) (common.Address, error) {
	return custodialAddr, nil
}

func (d *fakeDriver) PasskeyLogin(ctx context.Context) (common.Address, error) {
	return custodialAddr, nil
}

func (d *fakeDriver) SignDigest(ctx context.Context, account common.Address, digest common.Hash) ([]byte, error) {
	if d.signErr != nil {
		return nil, d.signErr
	}
	sig := make([]byte, 65)
	copy(sig, digest[:])
	return sig, nil
}

func (d *fakeDriver) Accounts(ctx context.Context) ([]common.Address, error) {
	return []common.Address{custodialAddr}, nil
}

func (d *fakeDriver) Logout(ctx context.Context) error {
	d.loggedOut = true
	return nil
}

type fakeCodeReader struct {
	hasCode bool
	calls   int
}

func (r *fakeCodeReader) GetAccount(ctx context.Context, addr common.Address) (*thor.Account, error) {
	r.calls++
	zero := hexutil.Big(*new(big.Int))
	return &thor.Account{Balance: &zero, Energy: &zero, HasCode: r.hasCode}, nil
}

func embeddedNetwork() *params.Network {
	return &params.Network{
		Name:           "test",
		ChainID:        1,
		NodeURL:        "http://localhost:8669",
		AccountFactory: factoryAddr,
	}
}

func TestEmbeddedEmailWithoutCodeStartsVerification(t *testing.T) {
	driver := &fakeDriver{}
	p := NewEmbeddedProvider(embeddedNetwork(), driver, nil, nil)

	_, err := p.Connect(context.Background(), ConnectParams{Method: MethodEmail, Email: "user@example.com"})
	require.ErrorIs(t, err, ErrVerificationRequired)
	require.Equal(t, []string{"user@example.com"}, driver.startedEmails)
	require.Nil(t, p.CurrentConnection())
}

func TestEmbeddedEmailWithCodeConnects(t *testing.T) {
	p := NewEmbeddedProvider(embeddedNetwork(), &fakeDriver{}, nil, nil)

	events := make(chan Event, 4)
	sub := p.Subscribe(events)
	defer sub.Unsubscribe()

	conn, err := p.Connect(context.Background(), ConnectParams{
		Method: MethodEmail, Email: "user@example.com", Code: "123456",
	})
	require.NoError(t, err)
	require.Equal(t, custodialAddr, conn.Address)
	require.Equal(t, SourceEmbedded, conn.Source)
	require.NotEmpty(t, conn.Metadata["sessionId"])

	ev := <-events
	require.Equal(t, EventConnected, ev.Type)
	require.Equal(t, custodialAddr, ev.Address)
}

func TestEmbeddedOAuthReturnsRedirect(t *testing.T) {
	p := NewEmbeddedProvider(embeddedNetwork(), &fakeDriver{}, nil, nil)

	_, err := p.Connect(context.Background(), ConnectParams{Method: MethodOAuth, OAuthProvider: "google"})
	var redirect *OAuthRedirectError
	require.ErrorAs(t, err, &redirect)
	require.Equal(t, "https://auth.example.com/google", redirect.URL)
}

func TestEmbeddedOAuthCallbackConnects(t *testing.T) {
	p := NewEmbeddedProvider(embeddedNetwork(), &fakeDriver{}, nil, nil)

	conn, err := p.Connect(context.Background(), ConnectParams{Method: MethodOAuthCallback, Code: "cb-code"})
	require.NoError(t, err)
	require.Equal(t, custodialAddr, conn.Address)
}

func TestEmbeddedUnsupportedMethod(t *testing.T) {
	p := NewEmbeddedProvider(embeddedNetwork(), &fakeDriver{}, nil, nil)
	_, err := p.Connect(context.Background(), ConnectParams{Method: "carrier-pigeon"})
	require.Error(t, err)
}

func TestEmbeddedSignTransactionRequiresConnection(t *testing.T) {
	p := NewEmbeddedProvider(embeddedNetwork(), &fakeDriver{}, nil, nil)
	to := common.HexToAddress("0x02")
	_, err := p.SignTransaction(context.Background(), []clause.Clause{{To: &to}}, SignOptions{})
	require.ErrorIs(t, err, ErrNotConnected)
}

func connectEmbedded(t *testing.T, p *EmbeddedProvider) {
	t.Helper()
	_, err := p.Connect(context.Background(), ConnectParams{
		Method: MethodEmail, Email: "user@example.com", Code: "123456",
	})
	require.NoError(t, err)
}

func TestEmbeddedSignTransactionReturnsAuthorization(t *testing.T) {
	p := NewEmbeddedProvider(embeddedNetwork(), &fakeDriver{}, nil, nil)
	connectEmbedded(t, p)

	to := common.HexToAddress("0x02")
	signed, err := p.SignTransaction(context.Background(), []clause.Clause{{To: &to, Value: big.NewInt(1)}}, SignOptions{})
	require.NoError(t, err)
	require.Empty(t, signed.ID)
	require.Len(t, signed.Signature, 65)
}

func TestEmbeddedSignTransactionMapsRejection(t *testing.T) {
	driver := &fakeDriver{signErr: errors.New("user denied the request")}
	p := NewEmbeddedProvider(embeddedNetwork(), driver, nil, nil)
	connectEmbedded(t, p)

	to := common.HexToAddress("0x02")
	_, err := p.SignTransaction(context.Background(), []clause.Clause{{To: &to}}, SignOptions{})
	require.ErrorIs(t, err, ErrUserRejected)
}

func TestEmbeddedDeploymentClauseForFreshAccount(t *testing.T) {
	reader := &fakeCodeReader{hasCode: false}
	p := NewEmbeddedProvider(embeddedNetwork(), &fakeDriver{}, reader, nil)
	connectEmbedded(t, p)

	deploy, err := p.DeploymentClause(context.Background())
	require.NoError(t, err)
	require.NotNil(t, deploy)
	require.Equal(t, factoryAddr, *deploy.To)
	require.NotEmpty(t, deploy.Data)
}

func TestEmbeddedDeploymentClauseSkippedWhenDeployed(t *testing.T) {
	reader := &fakeCodeReader{hasCode: true}
	p := NewEmbeddedProvider(embeddedNetwork(), &fakeDriver{}, reader, nil)
	connectEmbedded(t, p)

	deploy, err := p.DeploymentClause(context.Background())
	require.NoError(t, err)
	require.Nil(t, deploy)

	// The code check result is cached for the session.
	_, err = p.DeploymentClause(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, reader.calls)
}

func TestEmbeddedDisconnectEmitsEventAndLogsOut(t *testing.T) {
	driver := &fakeDriver{}
	p := NewEmbeddedProvider(embeddedNetwork(), driver, nil, nil)
	connectEmbedded(t, p)

	events := make(chan Event, 2)
	sub := p.Subscribe(events)
	defer sub.Unsubscribe()

	require.NoError(t, p.Disconnect(context.Background()))
	require.True(t, driver.loggedOut)
	require.Nil(t, p.CurrentConnection())

	ev := <-events
	require.Equal(t, EventDisconnected, ev.Type)

	_, ok := p.GetCurrentAccount()
	require.False(t, ok)
}

func TestEmbeddedUnavailableWithoutDriver(t *testing.T) {
	p := NewEmbeddedProvider(embeddedNetwork(), nil, nil, nil)
	require.False(t, p.IsAvailable())
	_, err := p.Connect(context.Background(), ConnectParams{Method: MethodPasskey})
	require.ErrorIs(t, err, ErrProviderUnavailable)
}
