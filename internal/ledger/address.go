package ledger

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	// EVMAddressLength is the length of a plain 20-byte key hash address.
	EVMAddressLength = 20
	// TolarAddressLength is prefix + key hash + checksum.
	TolarAddressLength = 25

	tolarAddressPrefix   byte = 0x54
	tolarChecksumLength       = 4
	keyHashLength             = 20
	uncompressedKeyLength     = 65
)

// AddressProfile selects the address layout of a chain.
type AddressProfile int

const (
	ProfileEVM AddressProfile = iota
	ProfileTolar
)

// Length returns the address byte length of the profile.
func (p AddressProfile) Length() int {
	if p == ProfileTolar {
		return TolarAddressLength
	}

	return EVMAddressLength
}

func (p AddressProfile) String() string {
	if p == ProfileTolar {
		return "tolar"
	}

	return "evm"
}

// ParseAddressProfile maps a profile name ("evm", "tolar") to its value.
func ParseAddressProfile(name string) (AddressProfile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "evm", "eth", "besu", "":
		return ProfileEVM, nil
	case "tolar":
		return ProfileTolar, nil
	default:
		return ProfileEVM, errors.Errorf("unknown address profile %q", name)
	}
}

// Address is a 20 byte (EVM) or 25 byte (Tolar) account identifier.
// A nil or empty Address means "no address", e.g. the receiver of a
// contract creation.
type Address []byte

// AddressFromPublicKey derives the address of an uncompressed secp256k1
// public key (65 bytes, 0x04 prefixed, or 64 bytes without prefix).
func AddressFromPublicKey(pub []byte, profile AddressProfile) (Address, error) {
	switch len(pub) {
	case uncompressedKeyLength:
		pub = pub[1:]
	case uncompressedKeyLength - 1:
	default:
		return nil, &KeyFormatError{Reason: "public key must be 64 or 65 bytes"}
	}

	hash := crypto.Keccak256(pub)[32-keyHashLength:]

	if profile != ProfileTolar {
		return Address(hash), nil
	}

	return tolarAddressFromKeyHash(hash), nil
}

func tolarAddressFromKeyHash(hash []byte) Address {
	addr := make([]byte, 0, TolarAddressLength)
	addr = append(addr, tolarAddressPrefix)
	addr = append(addr, hash...)
	addr = append(addr, tolarChecksum(hash)...)

	return addr
}

// tolarChecksum is the last 4 bytes of keccak256(keccak256(keyHash)).
func tolarChecksum(keyHash []byte) []byte {
	sum := crypto.Keccak256(crypto.Keccak256(keyHash))

	return sum[len(sum)-tolarChecksumLength:]
}

// ParseAddress parses a hex address with or without 0x prefix. 25 byte
// values are checked against the Tolar prefix and checksum.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, &InvalidTransactionError{Field: "address", Reason: "address is not valid hex"}
	}

	addr := Address(raw)
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	return addr, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}

	return addr
}

// Validate checks the length and, for Tolar addresses, prefix and checksum.
func (a Address) Validate() error {
	switch len(a) {
	case 0, EVMAddressLength:
		return nil
	case TolarAddressLength:
		if a[0] != tolarAddressPrefix {
			return &InvalidTransactionError{Field: "address", Reason: "invalid address prefix"}
		}

		hash := a[1 : 1+keyHashLength]
		if !bytes.Equal(a[1+keyHashLength:], tolarChecksum(hash)) {
			return &InvalidTransactionError{Field: "address", Reason: "invalid address checksum"}
		}

		return nil
	default:
		return &InvalidTransactionError{Field: "address", Reason: "address must be 20 or 25 bytes"}
	}
}

// Profile reports which layout the address uses.
func (a Address) Profile() AddressProfile {
	if len(a) == TolarAddressLength {
		return ProfileTolar
	}

	return ProfileEVM
}

// IsEmpty is true for the absent address.
func (a Address) IsEmpty() bool {
	return len(a) == 0
}

// IsZero reports an address whose key hash is all zeroes. Tolar nodes
// report this address as the "new address" of plain transfers.
func (a Address) IsZero() bool {
	if len(a) == 0 {
		return false
	}

	hash := []byte(a)
	if len(a) == TolarAddressLength {
		hash = a[1 : 1+keyHashLength]
	}

	for _, b := range hash {
		if b != 0 {
			return false
		}
	}

	return true
}

func (a Address) Equal(other Address) bool {
	return bytes.Equal(a, other)
}

func (a Address) Bytes() []byte {
	return []byte(a)
}

// String renders Tolar addresses as bare hex and EVM addresses 0x prefixed,
// matching what each node family expects in JSON-RPC params.
func (a Address) String() string {
	if len(a) == 0 {
		return ""
	}

	if len(a) == TolarAddressLength {
		return hex.EncodeToString(a)
	}

	return "0x" + hex.EncodeToString(a)
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	if len(bytes.TrimSpace(text)) == 0 {
		*a = nil
		return nil
	}

	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}
