package delegation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

func TestEstimateGas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/estimate", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var req estimateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Clauses, 0)

		fmt.Fprint(w, `{"costs":[{"symbol":"VTHO","amount":"250"},{"symbol":"B3TR","amount":"100"}]}`)
	}))
	defer server.Close()

	costs, err := NewClient(server.URL).EstimateGas(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(250), costs["VTHO"])
	require.Equal(t, big.NewInt(100), costs["B3TR"])
}

func TestEstimateGasSurfacesServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"unsupported clause"}`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).EstimateGas(context.Background(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported clause")
}

func TestEstimateGasEmptyCostsIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"costs":[]}`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).EstimateGas(context.Background(), nil)
	require.Error(t, err)
}

func TestGetDepositAccount(t *testing.T) {
	deposit := common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/deposit-account", r.URL.Path)
		fmt.Fprintf(w, `{"address":"%s"}`, deposit.Hex())
	}))
	defer server.Close()

	addr, err := NewClient(server.URL).GetDepositAccount(context.Background())
	require.NoError(t, err)
	require.Equal(t, deposit, addr)
}

func TestGetDepositAccountRejectsEmptyAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetDepositAccount(context.Background())
	require.Error(t, err)
}

func TestSignTransaction(t *testing.T) {
	sig := bytes.Repeat([]byte{0x03}, 65)
	encoded := []byte{0xf8, 0x01, 0x02}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sign", r.URL.Path)

		var req signRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "B3TR", req.Token)
		require.Equal(t, hexutil.Encode(encoded), req.Raw)

		fmt.Fprintf(w, `{"signature":"%s"}`, hexutil.Encode(sig))
	}))
	defer server.Close()

	got, err := NewClient(server.URL).SignTransaction(context.Background(), "B3TR", encoded)
	require.NoError(t, err)
	require.Equal(t, sig, got)
}

func TestSignTransactionHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "delegator overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).SignTransaction(context.Background(), "B3TR", []byte{0x01})
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}

func TestSponsorSign(t *testing.T) {
	origin := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sig := bytes.Repeat([]byte{0x02}, 65)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sponsorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, origin.Hex(), req.Origin)

		fmt.Fprintf(w, `{"signature":"%s"}`, hexutil.Encode(sig))
	}))
	defer server.Close()

	got, err := NewSponsorClient(server.URL, nil).Sign(context.Background(), []byte{0x01}, origin)
	require.NoError(t, err)
	require.Equal(t, sig, got)
}

func TestSponsorSignServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"origin not sponsored"}`)
	}))
	defer server.Close()

	_, err := NewSponsorClient(server.URL, nil).Sign(context.Background(), []byte{0x01}, common.Address{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "origin not sponsored")
}
