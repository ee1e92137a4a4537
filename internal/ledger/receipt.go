package ledger

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ReceiptStatus is the inclusion outcome reported by the node.
type ReceiptStatus string

const (
	StatusOK       ReceiptStatus = "ok"
	StatusExcepted ReceiptStatus = "excepted"
	StatusReverted ReceiptStatus = "reverted"
)

// Log is an event emitted by a confirmed transaction.
type Log struct {
	Address Address  `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

// Receipt is the node attested outcome of a transaction.
type Receipt struct {
	TransactionHash  Hash          `json:"transactionHash"`
	BlockHash        string        `json:"blockHash,omitempty"`
	TransactionIndex uint64        `json:"transactionIndex"`
	Status           ReceiptStatus `json:"status"`
	GasUsed          uint64        `json:"gasUsed"`
	GasRefunded      uint64        `json:"gasRefunded"`
	Logs             []Log         `json:"logs,omitempty"`
	// NewAddress is nil unless the transaction created a contract.
	NewAddress   Address `json:"newAddress,omitempty"`
	Output       string  `json:"output,omitempty"`
	RevertReason string  `json:"revertReason,omitempty"`
}

// IsStatusOK reports a successfully executed transaction.
func (r *Receipt) IsStatusOK() bool {
	return r.Status == StatusOK
}

// receiptJSON accepts both the Tolar receipt shape and the Ethereum/Besu
// shape; unknown fields are ignored.
type receiptJSON struct {
	TransactionHash  *Hash     `json:"transactionHash"`
	TransactionHashS *Hash     `json:"transaction_hash"`
	Hash             *Hash     `json:"hash"`
	BlockHash        string    `json:"blockHash"`
	BlockHashS       string    `json:"block_hash"`
	TransactionIndex *Quantity `json:"transactionIndex"`
	TransactionIdxS  *Quantity `json:"transaction_index"`

	Status       json.RawMessage `json:"status"`
	Excepted     *bool           `json:"excepted"`
	RevertReason string          `json:"revertReason"`

	GasUsed      *Quantity `json:"gasUsed"`
	GasUsedS     *Quantity `json:"gas_used"`
	GasRefunded  *Quantity `json:"gasRefunded"`
	GasRefundedS *Quantity `json:"gas_refunded"`

	NewAddress      string `json:"newAddress"`
	NewAddressS     string `json:"new_address"`
	ContractAddress string `json:"contractAddress"`

	Output string `json:"output"`
	Logs   []Log  `json:"logs"`
}

func (r *Receipt) UnmarshalJSON(data []byte) error {
	var raw receiptJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "failed to decode receipt")
	}

	switch {
	case raw.TransactionHash != nil:
		r.TransactionHash = *raw.TransactionHash
	case raw.TransactionHashS != nil:
		r.TransactionHash = *raw.TransactionHashS
	case raw.Hash != nil:
		r.TransactionHash = *raw.Hash
	}

	r.BlockHash = firstNonEmpty(raw.BlockHash, raw.BlockHashS)
	r.TransactionIndex = firstQuantity(raw.TransactionIndex, raw.TransactionIdxS)
	r.GasUsed = firstQuantity(raw.GasUsed, raw.GasUsedS)
	r.GasRefunded = firstQuantity(raw.GasRefunded, raw.GasRefundedS)
	r.Output = raw.Output
	r.Logs = raw.Logs
	r.RevertReason = raw.RevertReason

	status, err := decodeStatus(raw.Status, raw.Excepted, raw.RevertReason)
	if err != nil {
		return err
	}
	r.Status = status

	newAddress := firstNonEmpty(raw.NewAddress, raw.NewAddressS, raw.ContractAddress)
	if newAddress != "" {
		addr, err := ParseAddress(newAddress)
		if err != nil {
			return errors.Wrap(err, "failed to decode receipt new address")
		}

		// Tolar reports the zero address for anything that is not a creation.
		if !addr.IsZero() {
			r.NewAddress = addr
		}
	}

	return nil
}

func decodeStatus(status json.RawMessage, excepted *bool, revertReason string) (ReceiptStatus, error) {
	if len(status) > 0 && string(status) != "null" {
		var s string
		if err := json.Unmarshal(status, &s); err != nil {
			var b bool
			if errBool := json.Unmarshal(status, &b); errBool != nil {
				return "", errors.Wrap(err, "failed to decode receipt status")
			}

			s = "0x0"
			if b {
				s = "0x1"
			}
		}

		switch strings.ToLower(s) {
		case "0x1", "1", string(StatusOK):
			return StatusOK, nil
		case string(StatusReverted):
			return StatusReverted, nil
		case string(StatusExcepted):
			return StatusExcepted, nil
		case "0x0", "0":
			if revertReason != "" {
				return StatusReverted, nil
			}

			return StatusExcepted, nil
		default:
			return "", errors.Errorf("unknown receipt status %q", s)
		}
	}

	if excepted != nil && *excepted {
		return StatusExcepted, nil
	}

	return StatusOK, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func firstQuantity(values ...*Quantity) uint64 {
	for _, v := range values {
		if v != nil {
			return v.Uint64()
		}
	}

	return 0
}
