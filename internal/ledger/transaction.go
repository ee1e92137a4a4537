package ledger

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Kind classifies a transaction by its receiver and payload.
type Kind int

const (
	KindTransfer Kind = iota
	KindDeploy
	KindCall
)

func (k Kind) String() string {
	switch k {
	case KindDeploy:
		return "deploy"
	case KindCall:
		return "call"
	default:
		return "transfer"
	}
}

// RestrictionRestricted is the only restriction Besu privacy groups accept.
const RestrictionRestricted = "restricted"

// Privacy carries the private transaction parameters of a privacy group
// transaction. Keys and group ids are raw bytes (base64 on the wire).
type Privacy struct {
	PrivateFrom    []byte
	PrivacyGroupID []byte
	Restriction    string
}

// Transaction describes a transfer, contract deployment or contract call.
//
// Nil Nonce, GasPrice or GasLimit mean "unspecified": a transaction manager
// resolves them per send. The encoder treats nil numerics as zero. Treat a
// Transaction as a value; use Copy before changing a shared one.
type Transaction struct {
	Sender   Address
	Receiver Address
	Amount   *big.Int
	GasLimit *big.Int
	GasPrice *big.Int
	Payload  []byte
	Nonce    *big.Int
	Privacy  *Privacy
}

// Kind reports deploy for an absent receiver, call for a payload sent to a
// receiver and transfer otherwise.
func (tx *Transaction) Kind() Kind {
	if tx.Receiver.IsEmpty() {
		return KindDeploy
	}

	if len(tx.Payload) > 0 {
		return KindCall
	}

	return KindTransfer
}

// IsPrivate reports whether the transaction targets a privacy group.
func (tx *Transaction) IsPrivate() bool {
	return tx.Privacy != nil
}

// Validate rejects negative numerics, bad addresses and payloads larger than
// maxPayload bytes. maxPayload <= 0 disables the size check.
func (tx *Transaction) Validate(maxPayload int) error {
	numerics := []struct {
		name  string
		value *big.Int
	}{
		{"nonce", tx.Nonce},
		{"gasPrice", tx.GasPrice},
		{"gasLimit", tx.GasLimit},
		{"amount", tx.Amount},
	}

	for _, n := range numerics {
		if n.value != nil && n.value.Sign() < 0 {
			return &InvalidTransactionError{Field: n.name, Reason: "must not be negative"}
		}
	}

	if maxPayload > 0 && len(tx.Payload) > maxPayload {
		return &InvalidTransactionError{
			Field:  "payload",
			Reason: fmt.Sprintf("payload of %d bytes exceeds limit of %d", len(tx.Payload), maxPayload),
		}
	}

	if err := tx.Sender.Validate(); err != nil {
		return err
	}

	if err := tx.Receiver.Validate(); err != nil {
		return err
	}

	if tx.Privacy != nil {
		if len(tx.Privacy.PrivateFrom) == 0 {
			return &InvalidTransactionError{Field: "privateFrom", Reason: "missing enclave key"}
		}

		if len(tx.Privacy.PrivacyGroupID) == 0 {
			return &InvalidTransactionError{Field: "privacyGroupId", Reason: "missing privacy group id"}
		}
	}

	return nil
}

// Copy returns a deep copy.
func (tx *Transaction) Copy() *Transaction {
	cpy := &Transaction{
		Sender:   bytes.Clone(tx.Sender),
		Receiver: bytes.Clone(tx.Receiver),
		Amount:   copyBig(tx.Amount),
		GasLimit: copyBig(tx.GasLimit),
		GasPrice: copyBig(tx.GasPrice),
		Payload:  bytes.Clone(tx.Payload),
		Nonce:    copyBig(tx.Nonce),
	}

	if tx.Privacy != nil {
		cpy.Privacy = &Privacy{
			PrivateFrom:    bytes.Clone(tx.Privacy.PrivateFrom),
			PrivacyGroupID: bytes.Clone(tx.Privacy.PrivacyGroupID),
			Restriction:    tx.Privacy.Restriction,
		}
	}

	return cpy
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}

	return new(big.Int).Set(v)
}

// Signature is a recoverable secp256k1 signature. R and S are fixed 32 byte
// big-endian integers; V is 27+RecoveryID, or chainID*2+35+RecoveryID when
// the signature is bound to a chain.
type Signature struct {
	R          uint256.Int
	S          uint256.Int
	V          *big.Int
	RecoveryID byte
}

// Bytes returns the 65 byte [R || S || RecoveryID] form.
func (s Signature) Bytes() []byte {
	r := s.R.Bytes32()
	ss := s.S.Bytes32()

	out := make([]byte, 0, 65)
	out = append(out, r[:]...)
	out = append(out, ss[:]...)

	return append(out, s.RecoveryID)
}

// Equal compares all signature components.
func (s Signature) Equal(other Signature) bool {
	if s.RecoveryID != other.RecoveryID || !s.R.Eq(&other.R) || !s.S.Eq(&other.S) {
		return false
	}

	if s.V == nil || other.V == nil {
		return s.V == other.V
	}

	return s.V.Cmp(other.V) == 0
}

// SignedTransaction is a transaction together with its signature and wire
// encoding. It is created once by a signer and never mutated.
type SignedTransaction struct {
	Transaction *Transaction
	Signature   Signature
	ChainID     *big.Int
	Raw         []byte
	Hash        Hash
}
