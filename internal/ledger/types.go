package ledger

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// HashLength is the byte length of a transaction hash.
const HashLength = 32

// Hash identifies a submitted transaction. Tolar nodes print hashes without
// the 0x prefix, Ethereum style nodes with it; both are accepted.
type Hash [HashLength]byte

// Keccak256Hash hashes data into a Hash.
func Keccak256Hash(data ...[]byte) Hash {
	var h Hash
	copy(h[:], crypto.Keccak256(data...))

	return h
}

// BytesToHash left-pads or truncates b to a Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)

	return h
}

// ParseHash parses a hex hash with or without 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash

	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return h, errors.Wrap(err, "failed to decode transaction hash")
	}

	if len(raw) != HashLength {
		return h, errors.Errorf("transaction hash must be %d bytes, got %d", HashLength, len(raw))
	}

	copy(h[:], raw)

	return h, nil
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func (h Hash) Bytes() []byte {
	return h[:]
}

// Hex returns the 0x prefixed form.
func (h Hash) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// String returns the bare hex form used by Tolar nodes.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}

	*h = parsed

	return nil
}

// Quantity is a non-negative integer as returned by a node: a JSON number,
// a decimal string or a 0x prefixed hex string.
type Quantity struct {
	big.Int
}

// NewQuantity copies v into a Quantity.
func NewQuantity(v *big.Int) *Quantity {
	q := new(Quantity)
	if v != nil {
		q.Set(v)
	}

	return q
}

// Big returns a copy of the value.
func (q *Quantity) Big() *big.Int {
	if q == nil {
		return nil
	}

	return new(big.Int).Set(&q.Int)
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(err, "failed to decode quantity string")
		}

		return q.setString(s)
	}

	return q.setString(string(data))
}

func (q *Quantity) setString(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		q.SetUint64(0)
		return nil
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if digits == "" {
			return errors.Errorf("empty hex quantity %q", s)
		}

		if _, ok := q.SetString(digits, 16); !ok {
			return errors.Errorf("invalid hex quantity %q", s)
		}

		return nil
	}

	if _, ok := q.SetString(s, 10); !ok {
		return errors.Errorf("invalid quantity %q", s)
	}

	if q.Sign() < 0 {
		return errors.Errorf("negative quantity %q", s)
	}

	return nil
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.EncodeBig(&q.Int))
}
