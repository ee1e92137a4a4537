// Package group orchestrates privacy group membership changes on the
// on-chain management contract:
//
//	Start -> LockSent -> LockConfirmed -> MutationSent -> Done
//
// The lock receipt gates the mutation; the mutation receipt is left to the
// caller.
package group

import (
	"context"
	"encoding/base64"
	"math/big"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/node"
	"github.com/dream-factory-code/go-tolar/internal/ledger/receipt"
	"github.com/dream-factory-code/go-tolar/internal/ledger/txmanager"
	"github.com/dream-factory-code/go-tolar/internal/metrics"
	"github.com/dream-factory-code/go-tolar/internal/util"
	"github.com/pkg/errors"
)

const (
	// DefaultContractAddress is Besu's on-chain privacy management proxy.
	DefaultContractAddress = "0x000000000000000000000000000000000000007c"
	DefaultGasLimit        = 3_000_000
)

// Mutation is the membership change a Request performs.
type Mutation string

const (
	MutationAdd    Mutation = "add"
	MutationRemove Mutation = "remove"
	MutationLock   Mutation = "lock"
	MutationUnlock Mutation = "unlock"
	// MutationCreate adds participants without locking, for a new group.
	MutationCreate Mutation = "create"
)

// Request is one group mutation. Key material is base64 encoded 32 bytes.
type Request struct {
	GroupID      string
	Signer       txmanager.TransactionSigner
	EnclaveKey   string
	Mutation     Mutation
	Participants []string
}

// Config configures an Orchestrator.
type Config struct {
	// Methods are the chain's methods; the private variants are used.
	Methods         node.Methods
	ContractAddress ledger.Address
	GasLimit        *big.Int
	GasPrice        *big.Int
	MaxPayload      int
	// Poller waits for the lock receipt. Method defaults to
	// Methods.PrivateReceipt.
	Poller  receipt.Config
	Metrics *metrics.Service
	// SenderLocks is shared with other managers of the same senders.
	SenderLocks *util.KeyedMutex
}

// Orchestrator runs group mutations. Mutations of the same group within a
// process are serialised; the on-chain lock guards against other processes.
type Orchestrator struct {
	caller      node.Caller
	config      Config
	poller      *receipt.Poller
	groupLocks  *util.KeyedMutex
	senderLocks *util.KeyedMutex
}

func NewOrchestrator(caller node.Caller, config Config) *Orchestrator {
	if config.ContractAddress.IsEmpty() {
		config.ContractAddress = ledger.MustParseAddress(DefaultContractAddress)
	}

	if config.GasLimit == nil {
		config.GasLimit = big.NewInt(DefaultGasLimit)
	}

	if config.GasPrice == nil {
		config.GasPrice = new(big.Int)
	}

	if config.Poller.Method == "" {
		config.Poller.Method = config.Methods.PrivateReceipt
	}

	if config.Poller.Metrics == nil {
		config.Poller.Metrics = config.Metrics
	}

	if config.SenderLocks == nil {
		config.SenderLocks = util.NewKeyedMutex()
	}

	return &Orchestrator{
		caller:      caller,
		config:      config,
		poller:      receipt.NewPoller(caller, config.Poller),
		groupLocks:  util.NewKeyedMutex(),
		senderLocks: config.SenderLocks,
	}
}

// AddParticipants locks the group, waits for the lock to confirm and then
// submits addParticipants.
func (o *Orchestrator) AddParticipants(ctx context.Context, req Request) (*txmanager.PendingTransaction, error) {
	req.Mutation = MutationAdd
	return o.Execute(ctx, req)
}

// RemoveParticipant locks the group, waits for the lock to confirm and then
// submits removeParticipant.
func (o *Orchestrator) RemoveParticipant(ctx context.Context, req Request, participant string) (*txmanager.PendingTransaction, error) {
	req.Mutation = MutationRemove
	req.Participants = []string{participant}

	return o.Execute(ctx, req)
}

// SetLockState submits a single lock or unlock call.
func (o *Orchestrator) SetLockState(ctx context.Context, req Request, lock bool) (*txmanager.PendingTransaction, error) {
	req.Mutation = MutationUnlock
	if lock {
		req.Mutation = MutationLock
	}

	return o.Execute(ctx, req)
}

// CreateGroup submits addParticipants without a preceding lock.
func (o *Orchestrator) CreateGroup(ctx context.Context, req Request) (*txmanager.PendingTransaction, error) {
	req.Mutation = MutationCreate
	return o.Execute(ctx, req)
}

// WaitForReceipt polls the private receipt of a group transaction.
func (o *Orchestrator) WaitForReceipt(ctx context.Context, hash ledger.Hash) (*ledger.Receipt, error) {
	return o.poller.Wait(ctx, hash)
}

type plan struct {
	groupID    [keyLength]byte
	enclaveKey [keyLength]byte
	lock       []byte
	mutation   []byte
}

// prepare decodes all key material and builds every payload before any
// network call.
func (o *Orchestrator) prepare(req Request) (*plan, error) {
	if req.Signer == nil {
		return nil, &ledger.InvalidTransactionError{Field: "signer", Reason: "missing signer"}
	}

	groupID, err := decodeKey("privacyGroupId", req.GroupID)
	if err != nil {
		return nil, err
	}

	enclaveKey, err := decodeKey("enclaveKey", req.EnclaveKey)
	if err != nil {
		return nil, err
	}

	p := &plan{groupID: groupID, enclaveKey: enclaveKey}

	switch req.Mutation {
	case MutationLock:
		p.mutation = encodeLock(true)
	case MutationUnlock:
		p.mutation = encodeLock(false)
	case MutationAdd, MutationCreate:
		if len(req.Participants) == 0 {
			return nil, &ledger.InvalidTransactionError{Field: "participants", Reason: "no participants given"}
		}

		participants := make([][keyLength]byte, 0, len(req.Participants))
		for _, encoded := range req.Participants {
			key, err := decodeKey("participant", encoded)
			if err != nil {
				return nil, err
			}
			participants = append(participants, key)
		}

		if p.mutation, err = encodeAddParticipants(enclaveKey, participants); err != nil {
			return nil, err
		}

		if req.Mutation == MutationAdd {
			p.lock = encodeLock(true)
		}
	case MutationRemove:
		if len(req.Participants) != 1 {
			return nil, &ledger.InvalidTransactionError{Field: "participants", Reason: "remove takes exactly one participant"}
		}

		participant, err := decodeKey("participant", req.Participants[0])
		if err != nil {
			return nil, err
		}

		if p.mutation, err = encodeRemoveParticipant(enclaveKey, participant); err != nil {
			return nil, err
		}

		p.lock = encodeLock(true)
	default:
		return nil, errors.Errorf("unknown group mutation %q", req.Mutation)
	}

	return p, nil
}

// Execute runs req and returns the handle of its final transaction without
// waiting for that transaction's receipt.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*txmanager.PendingTransaction, error) {
	p, err := o.prepare(req)
	if err != nil {
		o.config.Metrics.GroupOutcome(string(req.Mutation), "invalid")
		return nil, err
	}

	// Ids differing only in surrounding whitespace name the same group.
	gid := EncodeKey(p.groupID[:])
	req.GroupID = gid

	ctx, _ = util.WithOperation(ctx, map[string]string{
		"group_id": gid,
		"mutation": string(req.Mutation),
	})
	logger := util.LogFromContext(ctx)

	unlock, err := o.groupLocks.Lock(ctx, gid)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire group lock")
	}
	defer unlock()

	manager := txmanager.NewSignedManager(o.caller, req.Signer, txmanager.Options{
		Methods:     o.config.Methods.Private(),
		MaxPayload:  o.config.MaxPayload,
		NonceParams: []any{gid},
		SenderLocks: o.senderLocks,
		Metrics:     o.config.Metrics,
	})

	if p.lock != nil {
		if err := o.lockGroup(ctx, manager, req, p); err != nil {
			return nil, err
		}
	}

	// The nonce is fetched again: the lock transaction consumed one.
	pending, err := manager.Send(ctx, o.transaction(p, p.mutation))
	if err != nil {
		o.config.Metrics.GroupOutcome(string(req.Mutation), "mutation_failed")
		logger.Error().Err(err).Msg("Failed to send group mutation")

		return nil, errors.Wrap(err, "failed to send group mutation")
	}

	o.config.Metrics.GroupOutcome(string(req.Mutation), "sent")
	logger.Info().Str("tx_hash", pending.Hash.String()).Msg("Group mutation sent")

	return pending, nil
}

func (o *Orchestrator) lockGroup(ctx context.Context, manager txmanager.Manager, req Request, p *plan) error {
	logger := util.LogFromContext(ctx)

	lockPending, err := manager.Send(ctx, o.transaction(p, p.lock))
	if err != nil {
		o.config.Metrics.GroupOutcome(string(req.Mutation), "lock_failed")
		logger.Error().Err(err).Msg("Failed to send group lock")

		return errors.Wrap(err, "failed to send group lock")
	}

	logger.Debug().Str("tx_hash", lockPending.Hash.String()).Msg("Group lock sent")

	lockReceipt, err := o.poller.Wait(ctx, lockPending.Hash)
	if err != nil {
		o.config.Metrics.GroupOutcome(string(req.Mutation), "lock_failed")
		logger.Error().Err(err).Msg("Failed to confirm group lock")

		return errors.Wrap(err, "failed to confirm group lock")
	}

	if !lockReceipt.IsStatusOK() {
		o.config.Metrics.GroupOutcome(string(req.Mutation), "lock_failed")
		logger.Warn().Str("status", string(lockReceipt.Status)).Msg("Group lock did not succeed")

		return &ledger.GroupLockFailedError{
			GroupID:         req.GroupID,
			TransactionHash: lockPending.Hash,
			Status:          lockReceipt.Status,
			RevertReason:    lockReceipt.RevertReason,
		}
	}

	logger.Debug().Msg("Group lock confirmed")

	return nil
}

func (o *Orchestrator) transaction(p *plan, payload []byte) *ledger.Transaction {
	return &ledger.Transaction{
		Receiver: o.config.ContractAddress,
		Amount:   new(big.Int),
		GasLimit: new(big.Int).Set(o.config.GasLimit),
		GasPrice: new(big.Int).Set(o.config.GasPrice),
		Payload:  payload,
		Privacy: &ledger.Privacy{
			PrivateFrom:    p.enclaveKey[:],
			PrivacyGroupID: p.groupID[:],
			Restriction:    ledger.RestrictionRestricted,
		},
	}
}

// EncodeKey is the base64 form used for group ids and enclave keys.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}
