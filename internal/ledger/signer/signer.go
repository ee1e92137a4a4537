package signer

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/encoding"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	privateKeyLength = 32
	signatureLength  = 65
	recoveryIDIndex  = 64
)

// Config controls how a Signer derives its address and encodes payloads.
type Config struct {
	Profile ledger.AddressProfile
	// ChainID binds signatures to one chain when set.
	ChainID *big.Int
	// MaxPayload rejects larger payloads before signing; <= 0 disables it.
	MaxPayload int
}

// Signer signs transactions with a local secp256k1 key.
type Signer struct {
	key     *ecdsa.PrivateKey
	pub     []byte
	address ledger.Address
	config  Config
}

// New creates a Signer for key.
func New(key *ecdsa.PrivateKey, config Config) (*Signer, error) {
	if key == nil {
		return nil, &ledger.KeyFormatError{Reason: "private key is nil"}
	}

	pub := crypto.FromECDSAPub(&key.PublicKey)

	address, err := ledger.AddressFromPublicKey(pub, config.Profile)
	if err != nil {
		return nil, err
	}

	return &Signer{
		key:     key,
		pub:     pub,
		address: address,
		config:  config,
	}, nil
}

// NewFromHex creates a Signer from a hex encoded private key.
func NewFromHex(hexKey string, config Config) (*Signer, error) {
	key, err := ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}

	return New(key, config)
}

// Address is the sender address of every transaction this Signer signs.
func (s *Signer) Address() ledger.Address {
	return s.address
}

// ChainID returns the chain id signatures are bound to, or nil.
func (s *Signer) ChainID() *big.Int {
	if s.config.ChainID == nil {
		return nil
	}

	return new(big.Int).Set(s.config.ChainID)
}

// PublicKey returns the uncompressed public key.
func (s *Signer) PublicKey() []byte {
	return bytes.Clone(s.pub)
}

// SignTransaction signs tx. An empty sender is filled in with the signer's
// address; a different sender is rejected.
func (s *Signer) SignTransaction(_ context.Context, tx *ledger.Transaction) (*ledger.SignedTransaction, error) {
	if tx == nil {
		return nil, &ledger.InvalidTransactionError{Reason: "transaction is nil"}
	}

	tx = tx.Copy()

	if tx.Sender.IsEmpty() {
		tx.Sender = s.address
	} else if !tx.Sender.Equal(s.address) {
		return nil, &ledger.InvalidTransactionError{Field: "sender", Reason: "sender does not match signing key"}
	}

	return sign(tx, s.key, s.pub, s.config.ChainID, encoding.Encoder{MaxPayload: s.config.MaxPayload})
}

// Sign signs tx with key, optionally bound to chainID.
func Sign(tx *ledger.Transaction, key *ecdsa.PrivateKey, chainID *big.Int) (*ledger.SignedTransaction, error) {
	if tx == nil {
		return nil, &ledger.InvalidTransactionError{Reason: "transaction is nil"}
	}

	if key == nil {
		return nil, &ledger.KeyFormatError{Reason: "private key is nil"}
	}

	return sign(tx.Copy(), key, crypto.FromECDSAPub(&key.PublicKey), chainID, encoding.Encoder{})
}

func sign(tx *ledger.Transaction, key *ecdsa.PrivateKey, pub []byte, chainID *big.Int, enc encoding.Encoder) (*ledger.SignedTransaction, error) {
	payload, err := enc.EncodeForSigning(tx, chainID)
	if err != nil {
		return nil, err
	}

	digest := crypto.Keccak256(payload)

	// crypto.Sign derives k per RFC 6979, so equal inputs give equal signatures.
	sigBytes, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction digest")
	}

	recoveryID, err := findRecoveryID(digest, sigBytes, pub)
	if err != nil {
		return nil, err
	}

	var sig ledger.Signature
	sig.R.SetBytes(sigBytes[:32])
	sig.S.SetBytes(sigBytes[32:64])
	sig.RecoveryID = recoveryID
	sig.V = encoding.ComputeV(chainID, recoveryID)

	raw, err := enc.EncodeSigned(tx, sig)
	if err != nil {
		return nil, err
	}

	var boundChain *big.Int
	if chainID != nil && chainID.Sign() > 0 {
		boundChain = new(big.Int).Set(chainID)
	}

	return &ledger.SignedTransaction{
		Transaction: tx,
		Signature:   sig,
		ChainID:     boundChain,
		Raw:         raw,
		Hash:        encoding.TransactionHash(raw),
	}, nil
}

// findRecoveryID tries both candidate recovery ids and returns the one that
// recovers pub.
func findRecoveryID(digest, sig, pub []byte) (byte, error) {
	candidate := make([]byte, signatureLength)
	copy(candidate, sig[:recoveryIDIndex])

	for id := byte(0); id <= 1; id++ {
		candidate[recoveryIDIndex] = id

		recovered, err := crypto.Ecrecover(digest, candidate)
		if err != nil {
			continue
		}

		if bytes.Equal(recovered, pub) {
			return id, nil
		}
	}

	return 0, &ledger.SignatureRecoveryError{Digest: ledger.BytesToHash(digest)}
}

// Recover returns the sender address of a signed transaction.
func Recover(signed *ledger.SignedTransaction, profile ledger.AddressProfile) (ledger.Address, error) {
	if signed == nil || signed.Transaction == nil {
		return nil, &ledger.InvalidTransactionError{Reason: "signed transaction is nil"}
	}

	payload, err := encoding.EncodeForSigning(signed.Transaction, signed.ChainID)
	if err != nil {
		return nil, err
	}

	pub, err := crypto.Ecrecover(crypto.Keccak256(payload), signed.Signature.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, "failed to recover public key")
	}

	return ledger.AddressFromPublicKey(pub, profile)
}

// ParsePrivateKey decodes a 32 byte hex private key, with or without 0x.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")

	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, &ledger.KeyFormatError{Reason: "private key is not valid hex", Err: err}
	}

	return PrivateKeyFromBytes(raw)
}

// PrivateKeyFromBytes validates and converts raw key bytes.
func PrivateKeyFromBytes(raw []byte) (*ecdsa.PrivateKey, error) {
	if len(raw) != privateKeyLength {
		return nil, &ledger.KeyFormatError{Reason: "private key must be 32 bytes"}
	}

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, &ledger.KeyFormatError{Reason: "private key is out of range", Err: err}
	}

	return key, nil
}
