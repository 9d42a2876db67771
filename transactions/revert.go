package transactions

import (
	"bytes"
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/thor"
)

// GenericRevertMessage is used when no revert reason can be decoded.
const GenericRevertMessage = "Transaction reverted"

// Error(string) selector.
var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

var stringType, _ = abi.NewType("string", "", nil)

// decodeRevertData extracts the reason string from Error(string) revert
// data. Returns "" when the data carries no decodable reason.
func decodeRevertData(data []byte) string {
	if len(data) < 4 || !bytes.Equal(data[:4], revertSelector) {
		return ""
	}
	out, err := abi.Arguments{{Type: stringType}}.Unpack(data[4:])
	if err != nil || len(out) != 1 {
		return ""
	}
	reason, ok := out[0].(string)
	if !ok {
		return ""
	}
	return reason
}

// ExplainRevert re-runs the clauses against the node and joins the decoded
// revert reasons of every clause that reverted. Falls back to
// GenericRevertMessage when nothing decodable comes back.
func ExplainRevert(ctx context.Context, client InspectClient, clauses []clause.Clause, caller common.Address) string {
	results, err := client.InspectClauses(ctx, clauses, caller, thor.RevisionBest)
	if err != nil {
		return GenericRevertMessage
	}

	var reasons []string
	for _, r := range results {
		if !r.Reverted {
			continue
		}
		if reason := decodeRevertData(r.Data); reason != "" {
			reasons = append(reasons, reason)
		} else if r.VMError != "" {
			reasons = append(reasons, r.VMError)
		}
	}
	if len(reasons) == 0 {
		return GenericRevertMessage
	}
	return strings.Join(reasons, ", ")
}

// InspectClient is the slice of the node client revert explanation needs.
type InspectClient interface {
	InspectClauses(ctx context.Context, clauses []clause.Clause, caller common.Address, revision string) ([]thor.CallResult, error)
}
