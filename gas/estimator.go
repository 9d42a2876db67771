package gas

import (
	"context"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/thor"
)

const (
	clauseBaseGas   = 21000
	dataByteGas     = 68
	vmInvocationGas = 15000

	// DefaultBuffer pads the raw estimate to absorb state drift between
	// estimation and inclusion.
	DefaultBuffer = 1.25
)

// InspectClient is the slice of the node client the estimator needs.
type InspectClient interface {
	InspectClauses(ctx context.Context, clauses []clause.Clause, caller common.Address, revision string) ([]thor.CallResult, error)
}

// Options tune a single estimation.
type Options struct {
	// Buffer multiplies the raw estimate. Zero means DefaultBuffer.
	Buffer float64
	// SuggestedMax, when nonzero, is returned instead of an error if the
	// node cannot be reached. Estimation failures must never block a send
	// on their own.
	SuggestedMax uint64
	// Logger for degradation warnings. Nil means no logging.
	Logger *zap.Logger
}

// Estimate computes a padded gas limit for the clause set: intrinsic byte
// costs plus the execution gas reported by a dry run against the next state.
func Estimate(ctx context.Context, client InspectClient, clauses []clause.Clause, caller common.Address, opts Options) (uint64, error) {
	buffer := opts.Buffer
	if buffer == 0 {
		buffer = DefaultBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	results, err := client.InspectClauses(ctx, clauses, caller, thor.RevisionNext)
	if err != nil {
		if opts.SuggestedMax > 0 {
			logger.Warn("gas estimation failed, using suggested maximum",
				zap.Uint64("suggestedMax", opts.SuggestedMax), zap.Error(err))
			return opts.SuggestedMax, nil
		}
		return 0, errors.Wrap(err, "estimate gas")
	}

	var execution uint64
	for _, r := range results {
		execution += r.GasUsed
	}

	total := intrinsicGas(clauses)
	if execution > 0 {
		total += execution + vmInvocationGas
	}

	return uint64(math.Round(float64(total) * buffer)), nil
}

func intrinsicGas(clauses []clause.Clause) uint64 {
	var total uint64
	for _, c := range clauses {
		total += clauseBaseGas
		total += uint64(len(c.Data)) * dataByteGas
	}
	return total
}
