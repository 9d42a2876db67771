package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/thor"
)

// Base overhead charged on top of the per-clause execution gas when pricing
// a simulated swap.
const simulationBaseGas = 200_000

// One VTHO pays for 1e5 gas units.
const gasPerVTHO = 1e5

var transferEventSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// nativeToken is the sentinel flow key for the native coin.
var nativeToken = common.Address{}

// tokenFlow accumulates per-token movement in and out of the user address
// across every clause of a simulated transaction.
type tokenFlow struct {
	inflow  *big.Int
	outflow *big.Int
}

type flowSet map[common.Address]*tokenFlow

func (f flowSet) get(token common.Address) *tokenFlow {
	tf, ok := f[token]
	if !ok {
		tf = &tokenFlow{inflow: new(big.Int), outflow: new(big.Int)}
		f[token] = tf
	}
	return tf
}

// InspectClient is the slice of the node client the verifier needs.
type InspectClient interface {
	InspectClauses(ctx context.Context, clauses []clause.Clause, caller common.Address, revision string) ([]thor.CallResult, error)
}

// SimulateSwapWithClauses dry-runs the clause set and reconciles the token
// movements it produces against the declared swap. It is the defense against
// a malicious or buggy quote draining unintended tokens: any outflow of a
// token other than the declared input, an input outflow above AmountIn, or
// an output inflow below the quote's minimum fails the simulation.
//
// The returned error covers transport problems only; verification failures
// come back as Simulation{Success: false, Error: ...} and callers must not
// submit on that result.
func SimulateSwapWithClauses(ctx context.Context, client InspectClient, p Params, quote *Quote, clauses []clause.Clause) (Simulation, error) {
	if err := p.Validate(); err != nil {
		return Simulation{}, err
	}
	if len(clauses) == 0 {
		return Simulation{}, errors.New("no clauses to simulate")
	}

	results, err := client.InspectClauses(ctx, clauses, p.UserAddress, thor.RevisionNext)
	if err != nil {
		return Simulation{}, errors.Wrap(err, "simulate swap")
	}

	// No partial accounting past a revert.
	var gasUsed uint64 = simulationBaseGas
	for i, r := range results {
		if r.Reverted {
			msg := r.VMError
			if msg == "" {
				msg = fmt.Sprintf("clause %d reverted", i)
			}
			return Simulation{Success: false, Error: msg}, nil
		}
		gasUsed += r.GasUsed
	}
	costVTHO := float64(gasUsed) / gasPerVTHO

	flows := accumulateFlows(p.UserAddress, clauses, results)

	if msg := verifyFlows(p, quote, flows); msg != "" {
		return Simulation{GasCostVTHO: costVTHO, Success: false, Error: msg}, nil
	}
	return Simulation{GasCostVTHO: costVTHO, Success: true}, nil
}

func accumulateFlows(user common.Address, clauses []clause.Clause, results []thor.CallResult) flowSet {
	flows := flowSet{}

	for i, r := range results {
		// Native outflow is what the clause itself declares; a transfer list
		// entry with the user as sender is that same declared value echoed
		// back by the executor.
		if clauses[i].Value != nil && clauses[i].Value.Sign() > 0 {
			flows.get(nativeToken).outflow.Add(flows.get(nativeToken).outflow, clauses[i].Value)
		}
		for _, tr := range r.Transfers {
			if tr.Recipient == user && tr.Amount != nil {
				flows.get(nativeToken).inflow.Add(flows.get(nativeToken).inflow, tr.Amount.ToInt())
			}
		}
		for _, ev := range r.Events {
			token, from, to, amount, ok := decodeTransferEvent(ev)
			if !ok {
				continue
			}
			// Only the user's own movements count; third-party transfers
			// inside the route are internal plumbing.
			if from == user {
				flows.get(token).outflow.Add(flows.get(token).outflow, amount)
			}
			if to == user {
				flows.get(token).inflow.Add(flows.get(token).inflow, amount)
			}
		}
	}
	return flows
}

func decodeTransferEvent(ev thor.Event) (token, from, to common.Address, amount *big.Int, ok bool) {
	if len(ev.Topics) != 3 || ev.Topics[0] != transferEventSig {
		return token, from, to, nil, false
	}
	token = ev.Address
	from = common.BytesToAddress(ev.Topics[1][12:])
	to = common.BytesToAddress(ev.Topics[2][12:])
	amount = new(big.Int).SetBytes(ev.Data)
	return token, from, to, amount, true
}

// verifyFlows applies the outflow/inflow invariants in order: input token
// outflow bounded by AmountIn, no other token leaves the user, and the
// declared output meets the quote's minimum. Returns a mismatch description
// or "" when every check passes.
func verifyFlows(p Params, quote *Quote, flows flowSet) string {
	inputToken := p.FromTokenAddress
	if p.FromNative() {
		inputToken = nativeToken
	}

	for token, flow := range flows {
		if flow.outflow.Sign() == 0 {
			continue
		}
		if token != inputToken {
			return fmt.Sprintf("Unexpected token outflow: %s moved %s out of the user address",
				tokenLabel(token), flow.outflow.String())
		}
		if flow.outflow.Cmp(p.AmountIn) > 0 {
			return fmt.Sprintf("outflow mismatch: %s outflow %s exceeds declared input %s",
				tokenLabel(token), flow.outflow.String(), p.AmountIn.String())
		}
	}

	if quote != nil && quote.MinimumOutputAmount != nil {
		outputToken := p.ToTokenAddress
		if p.ToNative() {
			outputToken = nativeToken
		}
		inflow := new(big.Int)
		if flow, ok := flows[outputToken]; ok {
			inflow = flow.inflow
		}
		if inflow.Cmp(quote.MinimumOutputAmount) < 0 {
			return fmt.Sprintf("inflow mismatch: expected at least %s of %s, got %s",
				quote.MinimumOutputAmount.String(), tokenLabel(outputToken), inflow.String())
		}
	}
	return ""
}

func tokenLabel(token common.Address) string {
	if token == nativeToken {
		return "VET"
	}
	return token.Hex()
}

// SimulateSwap quotes-then-simulates in one step: it builds the clause list
// for the quote, runs the verifier over it and records the outcome on the
// quote itself.
func (a *Aggregator) SimulateSwap(ctx context.Context, client InspectClient, p Params, quote *Quote) (Simulation, error) {
	clauses, err := a.BuildSwapTransaction(p, quote)
	if err != nil {
		return Simulation{}, err
	}
	sim, err := SimulateSwapWithClauses(ctx, client, p, quote, clauses)
	if err != nil {
		return sim, err
	}
	quote.GasCostVTHO = sim.GasCostVTHO
	quote.Reverted = !sim.Success
	quote.RevertReason = sim.Error
	return sim, nil
}
