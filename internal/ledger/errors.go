package ledger

import (
	"fmt"
	"time"
)

// InvalidTransactionError reports malformed input detected before any
// network interaction: negative values, oversized payloads, bad addresses
// or participant key material.
type InvalidTransactionError struct {
	Field  string
	Reason string
}

func (e *InvalidTransactionError) Error() string {
	if e.Field == "" {
		return "invalid transaction: " + e.Reason
	}

	return fmt.Sprintf("invalid transaction: %s: %s", e.Field, e.Reason)
}

// KeyFormatError reports private or public key material that cannot be used.
type KeyFormatError struct {
	Reason string
	Err    error
}

func (e *KeyFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid key: %s: %v", e.Reason, e.Err)
	}

	return "invalid key: " + e.Reason
}

func (e *KeyFormatError) Unwrap() error {
	return e.Err
}

// SignatureRecoveryError means neither candidate recovery id reproduced the
// signing key. It indicates a bug and is never retried.
type SignatureRecoveryError struct {
	Digest Hash
}

func (e *SignatureRecoveryError) Error() string {
	return fmt.Sprintf("signature over %s does not recover the signing key", e.Digest)
}

// ProtocolError is a structured JSON-RPC error returned by the node.
type ProtocolError struct {
	Method  string
	Code    int
	Message string
	Data    any
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: node returned error %d: %s", e.Method, e.Code, e.Message)
}

// NodeCommunicationError reports a transport failure: unreachable node,
// non-2xx response or a malformed reply. It never means "not yet included".
type NodeCommunicationError struct {
	Method string
	Err    error
}

func (e *NodeCommunicationError) Error() string {
	return fmt.Sprintf("%s: node communication failed: %v", e.Method, e.Err)
}

func (e *NodeCommunicationError) Unwrap() error {
	return e.Err
}

// SubmissionRejectedError is a synchronous rejection of a submission by the
// node (bad nonce, insufficient funds or gas, malformed payload).
type SubmissionRejectedError struct {
	Method string
	Nonce  string
	Err    *ProtocolError
}

func (e *SubmissionRejectedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: submission rejected", e.Method)
	}

	return fmt.Sprintf("%s: submission rejected (code %d): %s", e.Method, e.Err.Code, e.Err.Message)
}

func (e *SubmissionRejectedError) Unwrap() error {
	if e.Err == nil {
		return nil
	}

	return e.Err
}

// ConfirmationTimeoutError means the node answered every poll but never
// produced a receipt. The transaction may still confirm; re-poll with the
// same hash to find out.
type ConfirmationTimeoutError struct {
	TransactionHash Hash
	Attempts        int
	Interval        time.Duration
	Elapsed         time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction receipt for %s not available after %d attempts (%s)",
		e.TransactionHash, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

// GroupLockFailedError halts a group mutation whose lock step did not
// confirm successfully. Nothing further is submitted.
type GroupLockFailedError struct {
	GroupID         string
	TransactionHash Hash
	Status          ReceiptStatus
	RevertReason    string
}

func (e *GroupLockFailedError) Error() string {
	msg := fmt.Sprintf("Lock transaction failed - the group may already be locked (group %s, tx %s, status %s)",
		e.GroupID, e.TransactionHash, e.Status)
	if e.RevertReason != "" {
		msg += ": " + e.RevertReason
	}

	return msg
}
