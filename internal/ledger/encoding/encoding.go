// Package encoding implements the canonical transaction encoding used both
// as the signing payload and as the raw wire payload.
//
// A transaction encodes as the RLP list
//
//	[nonce, gasPrice, gasLimit, receiver, amount, payload]
//
// followed by [v, r, s] when signed (or [chainID, "", ""] when computing a
// chain bound signing payload) and by [privateFrom, privacyGroupId,
// restriction] for privacy group transactions. Numerics are minimal
// big-endian byte strings; zero and an absent receiver encode as the empty
// string.
package encoding

import (
	"bytes"
	"math/big"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

const (
	baseFieldCount      = 6
	signatureFieldCount = 3
	privacyFieldCount   = 3

	legacyV       = 27
	chainIDOffset = 35
)

// Encoder validates and encodes transactions. MaxPayload <= 0 disables the
// payload size check.
type Encoder struct {
	MaxPayload int
}

// Encode returns the unsigned canonical encoding of tx.
func Encode(tx *ledger.Transaction) ([]byte, error) {
	return Encoder{}.Encode(tx)
}

// EncodeForSigning returns the payload whose keccak256 digest is signed.
func EncodeForSigning(tx *ledger.Transaction, chainID *big.Int) ([]byte, error) {
	return Encoder{}.EncodeForSigning(tx, chainID)
}

// EncodeSigned returns the wire encoding of tx with sig appended.
func EncodeSigned(tx *ledger.Transaction, sig ledger.Signature) ([]byte, error) {
	return Encoder{}.EncodeSigned(tx, sig)
}

func (e Encoder) Encode(tx *ledger.Transaction) ([]byte, error) {
	return e.encode(tx, nil)
}

// EncodeForSigning binds the payload to chainID when it is non-nil and
// positive; otherwise it equals Encode.
func (e Encoder) EncodeForSigning(tx *ledger.Transaction, chainID *big.Int) ([]byte, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return e.encode(tx, nil)
	}

	return e.encode(tx, []interface{}{new(big.Int).Set(chainID), uint(0), uint(0)})
}

func (e Encoder) EncodeSigned(tx *ledger.Transaction, sig ledger.Signature) ([]byte, error) {
	if sig.V == nil || sig.V.Sign() <= 0 {
		return nil, &ledger.InvalidTransactionError{Field: "signature", Reason: "missing v value"}
	}

	return e.encode(tx, []interface{}{new(big.Int).Set(sig.V), sig.R.ToBig(), sig.S.ToBig()})
}

func (e Encoder) encode(tx *ledger.Transaction, trailer []interface{}) ([]byte, error) {
	if tx == nil {
		return nil, &ledger.InvalidTransactionError{Reason: "transaction is nil"}
	}

	if err := tx.Validate(e.MaxPayload); err != nil {
		return nil, err
	}

	fields := make([]interface{}, 0, baseFieldCount+signatureFieldCount+privacyFieldCount)
	fields = append(fields,
		orZero(tx.Nonce),
		orZero(tx.GasPrice),
		orZero(tx.GasLimit),
		tx.Receiver.Bytes(),
		orZero(tx.Amount),
		orEmpty(tx.Payload),
	)
	fields = append(fields, trailer...)

	if tx.Privacy != nil {
		restriction := tx.Privacy.Restriction
		if restriction == "" {
			restriction = ledger.RestrictionRestricted
		}

		fields = append(fields,
			tx.Privacy.PrivateFrom,
			tx.Privacy.PrivacyGroupID,
			[]byte(restriction),
		)
	}

	encoded, err := rlp.EncodeToBytes(fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode transaction")
	}

	return encoded, nil
}

// Decode parses the output of Encode. The sender is not part of the
// encoding and stays empty.
func Decode(b []byte) (*ledger.Transaction, error) {
	items, err := splitList(b)
	if err != nil {
		return nil, err
	}

	switch len(items) {
	case baseFieldCount:
		return decodeBase(items)
	case baseFieldCount + privacyFieldCount:
		tx, err := decodeBase(items[:baseFieldCount])
		if err != nil {
			return nil, err
		}

		if tx.Privacy, err = decodePrivacy(items[baseFieldCount:]); err != nil {
			return nil, err
		}

		return tx, nil
	default:
		return nil, errors.Errorf("unsigned transaction must have %d or %d fields, got %d",
			baseFieldCount, baseFieldCount+privacyFieldCount, len(items))
	}
}

// DecodeSigned parses the output of EncodeSigned. The chain id is derived
// from v; use the signer package to recover the sender.
func DecodeSigned(b []byte) (*ledger.SignedTransaction, error) {
	items, err := splitList(b)
	if err != nil {
		return nil, err
	}

	if len(items) != baseFieldCount+signatureFieldCount &&
		len(items) != baseFieldCount+signatureFieldCount+privacyFieldCount {
		return nil, errors.Errorf("signed transaction must have %d or %d fields, got %d",
			baseFieldCount+signatureFieldCount, baseFieldCount+signatureFieldCount+privacyFieldCount, len(items))
	}

	tx, err := decodeBase(items[:baseFieldCount])
	if err != nil {
		return nil, err
	}

	if len(items) > baseFieldCount+signatureFieldCount {
		if tx.Privacy, err = decodePrivacy(items[baseFieldCount+signatureFieldCount:]); err != nil {
			return nil, err
		}
	}

	sig, chainID, err := decodeSignature(items[baseFieldCount : baseFieldCount+signatureFieldCount])
	if err != nil {
		return nil, err
	}

	return &ledger.SignedTransaction{
		Transaction: tx,
		Signature:   sig,
		ChainID:     chainID,
		Raw:         bytes.Clone(b),
		Hash:        ledger.Keccak256Hash(b),
	}, nil
}

// TransactionHash is the identifier of a signed wire encoding.
func TransactionHash(raw []byte) ledger.Hash {
	return ledger.Keccak256Hash(raw)
}

func splitList(b []byte) ([]rlp.RawValue, error) {
	var items []rlp.RawValue
	if err := rlp.DecodeBytes(b, &items); err != nil {
		return nil, errors.Wrap(err, "failed to decode transaction list")
	}

	return items, nil
}

func decodeBase(items []rlp.RawValue) (*ledger.Transaction, error) {
	var (
		tx  ledger.Transaction
		err error
	)

	if tx.Nonce, err = decodeBig(items[0], "nonce"); err != nil {
		return nil, err
	}

	if tx.GasPrice, err = decodeBig(items[1], "gasPrice"); err != nil {
		return nil, err
	}

	if tx.GasLimit, err = decodeBig(items[2], "gasLimit"); err != nil {
		return nil, err
	}

	receiver, err := decodeBytes(items[3], "receiver")
	if err != nil {
		return nil, err
	}

	if len(receiver) > 0 {
		tx.Receiver = ledger.Address(receiver)
	}

	if tx.Amount, err = decodeBig(items[4], "amount"); err != nil {
		return nil, err
	}

	if tx.Payload, err = decodeBytes(items[5], "payload"); err != nil {
		return nil, err
	}

	return &tx, nil
}

func decodePrivacy(items []rlp.RawValue) (*ledger.Privacy, error) {
	privateFrom, err := decodeBytes(items[0], "privateFrom")
	if err != nil {
		return nil, err
	}

	groupID, err := decodeBytes(items[1], "privacyGroupId")
	if err != nil {
		return nil, err
	}

	restriction, err := decodeBytes(items[2], "restriction")
	if err != nil {
		return nil, err
	}

	return &ledger.Privacy{
		PrivateFrom:    privateFrom,
		PrivacyGroupID: groupID,
		Restriction:    string(restriction),
	}, nil
}

func decodeSignature(items []rlp.RawValue) (ledger.Signature, *big.Int, error) {
	var sig ledger.Signature

	v, err := decodeBig(items[0], "v")
	if err != nil {
		return sig, nil, err
	}

	r, err := decodeBig(items[1], "r")
	if err != nil {
		return sig, nil, err
	}

	s, err := decodeBig(items[2], "s")
	if err != nil {
		return sig, nil, err
	}

	if overflow := sig.R.SetFromBig(r); overflow {
		return sig, nil, errors.New("signature r exceeds 256 bits")
	}

	if overflow := sig.S.SetFromBig(s); overflow {
		return sig, nil, errors.New("signature s exceeds 256 bits")
	}

	sig.V = v

	chainID, recoveryID, err := SplitV(v)
	if err != nil {
		return sig, nil, err
	}
	sig.RecoveryID = recoveryID

	return sig, chainID, nil
}

// SplitV derives the chain id (nil for unbound signatures) and the recovery
// id from a signature v value.
func SplitV(v *big.Int) (*big.Int, byte, error) {
	switch {
	case v == nil:
		return nil, 0, errors.New("signature v is missing")
	case v.IsUint64() && (v.Uint64() == legacyV || v.Uint64() == legacyV+1):
		return nil, byte(v.Uint64() - legacyV), nil
	case v.Cmp(big.NewInt(chainIDOffset)) >= 0:
		rest := new(big.Int).Sub(v, big.NewInt(chainIDOffset))
		recoveryID := byte(rest.Bit(0))
		chainID := rest.Rsh(rest, 1)

		// Chain id 0 signs as unbound, so v 35/36 never comes out of ComputeV.
		if chainID.Sign() == 0 {
			return nil, 0, errors.Errorf("invalid signature v value %s", v)
		}

		return chainID, recoveryID, nil
	default:
		return nil, 0, errors.Errorf("invalid signature v value %s", v)
	}
}

// ComputeV is the inverse of SplitV.
func ComputeV(chainID *big.Int, recoveryID byte) *big.Int {
	if chainID == nil || chainID.Sign() <= 0 {
		return big.NewInt(legacyV + int64(recoveryID))
	}

	v := new(big.Int).Lsh(chainID, 1)

	return v.Add(v, big.NewInt(chainIDOffset+int64(recoveryID)))
}

func decodeBig(raw rlp.RawValue, field string) (*big.Int, error) {
	v := new(big.Int)
	if err := rlp.DecodeBytes(raw, v); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", field)
	}

	return v, nil
}

func decodeBytes(raw rlp.RawValue, field string) ([]byte, error) {
	var b []byte
	if err := rlp.DecodeBytes(raw, &b); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", field)
	}

	if len(b) == 0 {
		return nil, nil
	}

	return b, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}

	return v
}

func orEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}

	return b
}
