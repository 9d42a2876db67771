package transactions

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vechain-community/walletkit/clause"
	"github.com/vechain-community/walletkit/thor"
)

// Status is the lifecycle state of one tracked send.
type Status string

const (
	StatusReady               Status = "ready"
	StatusPending             Status = "pending"
	StatusWaitingConfirmation Status = "waitingConfirmation"
	StatusSuccess             Status = "success"
	StatusError               Status = "error"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultPollTimeout  = 5 * time.Minute
)

// Submitter turns a clause set into a transaction id. *Sender satisfies it.
type Submitter interface {
	Send(ctx context.Context, clauses []clause.Clause, opts SendOptions) (string, error)
}

// ReceiptClient is the node surface receipt polling needs.
type ReceiptClient interface {
	TransactionReceipt(ctx context.Context, id string) (*thor.Receipt, error)
	InspectClauses(ctx context.Context, clauses []clause.Clause, caller common.Address, revision string) ([]thor.CallResult, error)
}

// Tracker drives one transaction at a time through the state machine
// ready -> pending -> waitingConfirmation -> success | error. Independent
// in-flight transactions each get their own Tracker; trackers share no
// state. ResetStatus bumps an internal generation counter, so a poll that
// was in flight when the reset happened discards its result on arrival
// instead of resurrecting a superseded status.
type Tracker struct {
	submitter Submitter
	client    ReceiptClient
	logger    *zap.Logger

	pollInterval time.Duration
	pollTimeout  time.Duration

	// onStatus, when set, observes every status transition.
	onStatus func(Status)

	mu         sync.Mutex
	generation uint64
	status     Status
	txID       string
	lastErr    error
}

type TrackerOption func(*Tracker)

func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.pollInterval = d }
}

func WithPollTimeout(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.pollTimeout = d }
}

func WithStatusListener(fn func(Status)) TrackerOption {
	return func(t *Tracker) { t.onStatus = fn }
}

func NewTracker(submitter Submitter, client ReceiptClient, logger *zap.Logger, opts ...TrackerOption) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		submitter:    submitter,
		client:       client,
		logger:       logger.Named("transactions.tracker"),
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
		status:       StatusReady,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Status returns the current lifecycle state.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// TxID returns the tracked transaction id, once known.
func (t *Tracker) TxID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.txID
}

// Err returns the terminal error, if the tracker is in StatusError.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// ResetStatus returns unconditionally to ready and clears id and error
// state. Callable at any time, including mid-poll; the superseded poll's
// result is discarded when it resolves.
func (t *Tracker) ResetStatus() {
	t.mu.Lock()
	t.generation++
	t.status = StatusReady
	t.txID = ""
	t.lastErr = nil
	onStatus := t.onStatus
	t.mu.Unlock()

	if onStatus != nil {
		onStatus(StatusReady)
	}
}

// setStatus applies a transition only if the generation still matches.
func (t *Tracker) setStatus(gen uint64, status Status, txID string, err error) bool {
	t.mu.Lock()
	if t.generation != gen {
		t.mu.Unlock()
		return false
	}
	t.status = status
	if txID != "" {
		t.txID = txID
	}
	t.lastErr = err
	onStatus := t.onStatus
	t.mu.Unlock()

	if onStatus != nil {
		onStatus(status)
	}
	return true
}

// Send submits the clauses and blocks until the transaction reaches a
// terminal state or ctx is cancelled. The intermediate states are
// observable through the status listener and Status().
func (t *Tracker) Send(ctx context.Context, clauses []clause.Clause, caller common.Address, opts SendOptions) (string, error) {
	t.mu.Lock()
	t.generation++
	gen := t.generation
	t.status = StatusPending
	t.txID = ""
	t.lastErr = nil
	onStatus := t.onStatus
	t.mu.Unlock()
	if onStatus != nil {
		onStatus(StatusPending)
	}

	txID, err := t.submitter.Send(ctx, clauses, opts)
	if err != nil {
		t.setStatus(gen, StatusError, "", err)
		return "", err
	}
	if !t.setStatus(gen, StatusWaitingConfirmation, txID, nil) {
		// Reset raced the submission; the result is discarded.
		return txID, nil
	}

	receipt, err := t.pollReceipt(ctx, gen, txID)
	if err != nil {
		t.setStatus(gen, StatusError, txID, err)
		return txID, err
	}
	if receipt == nil {
		// Superseded by a reset while polling.
		return txID, nil
	}

	if receipt.Reverted {
		reason := ExplainRevert(ctx, t.client, clauses, caller)
		revertErr := errors.New(reason)
		t.setStatus(gen, StatusError, txID, revertErr)
		return txID, revertErr
	}

	t.setStatus(gen, StatusSuccess, txID, nil)
	return txID, nil
}

// pollReceipt polls until the receipt appears or the timeout lapses. A nil
// receipt with nil error means the tracker generation moved on and the
// result must be discarded.
func (t *Tracker) pollReceipt(ctx context.Context, gen uint64, txID string) (*thor.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.pollTimeout)
	defer cancel()

	var receipt *thor.Receipt
	policy := backoff.WithContext(backoff.NewConstantBackOff(t.pollInterval), ctx)
	err := backoff.Retry(func() error {
		t.mu.Lock()
		superseded := t.generation != gen
		t.mu.Unlock()
		if superseded {
			receipt = nil
			return nil
		}

		r, err := t.client.TransactionReceipt(ctx, txID)
		if err != nil {
			if errors.Is(err, thor.ErrReceiptNotFound) {
				return err
			}
			return backoff.Permanent(err)
		}
		receipt = r
		return nil
	}, policy)
	if err != nil {
		if errors.Is(err, thor.ErrReceiptNotFound) {
			return nil, errors.Errorf("transaction %s not confirmed within %s", txID, t.pollTimeout)
		}
		return nil, err
	}
	return receipt, nil
}
