package group

import (
	"encoding/base64"
	"strings"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"
)

const keyLength = 32

// managementABI is the subset of the on-chain privacy group management
// contract the orchestrator calls.
const managementABI = `[
	{"type":"function","name":"lock","inputs":[],"outputs":[]},
	{"type":"function","name":"unlock","inputs":[],"outputs":[]},
	{"type":"function","name":"addParticipants","inputs":[
		{"name":"_enclaveKey","type":"bytes32"},
		{"name":"_participants","type":"bytes32[]"}
	],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"removeParticipant","inputs":[
		{"name":"_enclaveKey","type":"bytes32"},
		{"name":"_participant","type":"bytes32"}
	],"outputs":[{"name":"","type":"bool"}]}
]`

var management = mustParseABI(managementABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}

	return parsed
}

func encodeLock(lock bool) []byte {
	name := "unlock"
	if lock {
		name = "lock"
	}

	// Methods without arguments cannot fail to pack.
	data, _ := management.Pack(name)

	return data
}

func encodeAddParticipants(enclaveKey [keyLength]byte, participants [][keyLength]byte) ([]byte, error) {
	data, err := management.Pack("addParticipants", enclaveKey, participants)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode addParticipants call")
	}

	return data, nil
}

func encodeRemoveParticipant(enclaveKey, participant [keyLength]byte) ([]byte, error) {
	data, err := management.Pack("removeParticipant", enclaveKey, participant)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode removeParticipant call")
	}

	return data, nil
}

// decodeKey decodes base64 32 byte key material (enclave keys, group ids).
func decodeKey(field, value string) ([keyLength]byte, error) {
	var key [keyLength]byte

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return key, &ledger.InvalidTransactionError{Field: field, Reason: "not valid base64"}
	}

	if len(raw) != keyLength {
		return key, &ledger.InvalidTransactionError{Field: field, Reason: "must decode to 32 bytes"}
	}

	copy(key[:], raw)

	return key, nil
}
