package wallet

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestIsUserRejection(t *testing.T) {
	require.False(t, IsUserRejection(nil))
	require.True(t, IsUserRejection(ErrUserRejected))
	require.True(t, IsUserRejection(errors.Wrap(ErrUserRejected, "sign authorization")))

	// Foreign driver errors are classified by keyword.
	require.True(t, IsUserRejection(errors.New("User Rejected the prompt")))
	require.True(t, IsUserRejection(errors.New("request cancelled")))
	require.True(t, IsUserRejection(errors.New("user denied transaction signature")))
	require.True(t, IsUserRejection(errors.New("popup closed")))

	require.False(t, IsUserRejection(errors.New("network timeout")))
	require.False(t, IsUserRejection(ErrNotConnected))
}

func TestOAuthRedirectErrorFormat(t *testing.T) {
	err := &OAuthRedirectError{URL: "https://auth.example.com/start"}
	require.Equal(t, "OAUTH_REDIRECT_REQUIRED:https://auth.example.com/start", err.Error())

	var redirect *OAuthRedirectError
	require.True(t, errors.As(error(err), &redirect))
	require.Equal(t, "https://auth.example.com/start", redirect.URL)
}
