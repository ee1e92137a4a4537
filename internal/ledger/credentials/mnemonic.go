package credentials

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"strconv"
	"strings"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/signer"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultDerivationPath is the first account of the Ethereum BIP-44 tree.
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

const (
	mnemonicEntropyBits = 128
	seedIterations      = 2048
	seedLength          = 64
)

// NewMnemonic returns a fresh 12 word BIP-39 mnemonic.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(mnemonicEntropyBits)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate entropy")
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate mnemonic")
	}

	return mnemonic, nil
}

// FromMnemonic derives the private key at path from a BIP-39 mnemonic and
// optional passphrase.
func FromMnemonic(mnemonic, passphrase, path string) (*ecdsa.PrivateKey, error) {
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, &ledger.KeyFormatError{Reason: "invalid mnemonic"}
	}

	// BIP-39: seed = PBKDF2(mnemonic, "mnemonic" + passphrase, 2048, 64, SHA512)
	seed := pbkdf2.Key([]byte(mnemonic), []byte("mnemonic"+passphrase), seedIterations, seedLength, sha512.New)

	defer func() {
		for i := range seed {
			seed[i] = 0
		}
	}()

	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	indices, err := ParseDerivationPath(path)
	if err != nil {
		return nil, err
	}

	key := masterKey
	for _, index := range indices {
		if key, err = key.NewChildKey(index); err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	return signer.PrivateKeyFromBytes(key.Key)
}

// ParseDerivationPath parses "m/44'/60'/0'/0/0" into child indices.
// Hardened segments end in ' or h.
func ParseDerivationPath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultDerivationPath
	}

	parts := strings.Split(path, "/")
	if parts[0] != "m" {
		return nil, &ledger.KeyFormatError{Reason: "derivation path must start with m"}
	}

	indices := make([]uint32, 0, len(parts)-1)
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}

		hardened := strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h")
		part = strings.TrimRight(part, "'h")

		index, err := strconv.ParseUint(part, 10, 31)
		if err != nil {
			return nil, &ledger.KeyFormatError{Reason: "invalid derivation path segment " + strconv.Quote(part), Err: err}
		}

		value := uint32(index)
		if hardened {
			value += bip32.FirstHardenedChild
		}

		indices = append(indices, value)
	}

	return indices, nil
}
