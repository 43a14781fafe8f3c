package consensus

import "fmt"

type ErrorCode string

const (
	CERT_ERR_PARSE   ErrorCode = "CERT_ERR_PARSE"
	TX_ERR_PARSE     ErrorCode = "TX_ERR_PARSE"
	ERR_AMOUNT_RANGE ErrorCode = "ERR_AMOUNT_RANGE"
	ERR_COINS_VIEW   ErrorCode = "ERR_COINS_VIEW"
	ERR_UNDO         ErrorCode = "ERR_UNDO"
	ERR_MISSING_COIN ErrorCode = "ERR_MISSING_COIN"
)

// CertError is a fault that is not an adversary-reachable validation outcome:
// malformed wire bytes, amount arithmetic leaving the money range, or a coin
// view that could not serve a request.
type CertError struct {
	Code ErrorCode
	Msg  string
}

func (e *CertError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func certerr(code ErrorCode, msg string) error {
	return &CertError{Code: code, Msg: msg}
}

// ErrValueOutOfRange signals an amount or running sum outside [0, MAX_MONEY]
// during internal summation.
var ErrValueOutOfRange error = &CertError{Code: ERR_AMOUNT_RANGE, Msg: "value out of range"}

// RejectCode is the one-byte rejection class relayed to peers.
type RejectCode byte

const (
	REJECT_MALFORMED                    RejectCode = 0x01
	REJECT_INVALID                      RejectCode = 0x10
	REJECT_OBSOLETE                     RejectCode = 0x11
	REJECT_DUPLICATE                    RejectCode = 0x12
	REJECT_NONSTANDARD                  RejectCode = 0x40
	REJECT_DUST                         RejectCode = 0x41
	REJECT_INSUFFICIENTFEE              RejectCode = 0x42
	REJECT_CHECKPOINT                   RejectCode = 0x43
	REJECT_CHECKBLOCKATHEIGHT_NOT_FOUND RejectCode = 0x44
)

func (c RejectCode) String() string {
	switch c {
	case 0:
		return "none"
	case REJECT_MALFORMED:
		return "malformed"
	case REJECT_INVALID:
		return "invalid"
	case REJECT_OBSOLETE:
		return "obsolete"
	case REJECT_DUPLICATE:
		return "duplicate"
	case REJECT_NONSTANDARD:
		return "nonstandard"
	case REJECT_DUST:
		return "dust"
	case REJECT_INSUFFICIENTFEE:
		return "insufficientfee"
	case REJECT_CHECKPOINT:
		return "checkpoint"
	case REJECT_CHECKBLOCKATHEIGHT_NOT_FOUND:
		return "checkblockatheight-not-found"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(c))
	}
}

// Reject reasons reported through ValidationState.
const (
	REASON_CERT_VOUT_EMPTY        = "bad-cert-vout-empty"
	REASON_CERT_OVERSIZE          = "bad-cert-oversize"
	REASON_VOUT_NEGATIVE          = "bad-txns-vout-negative"
	REASON_VOUT_TOOLARGE          = "bad-txns-vout-toolarge"
	REASON_TXOUTTOTAL_TOOLARGE    = "bad-txns-txouttotal-toolarge"
	REASON_CHECKBLOCKATHEIGHT     = "op-checkblockatheight-needed"
	REASON_INPUTS_MISSINGORSPENT  = "bad-txns-inputs-missingorspent"
	REASON_CERT_NOT_APPLICABLE    = "bad-cert-not-applicable"
	REASON_CERT_DUPLICATE         = "cert-already-in-mempool"
	REASON_CERT_NON_FINAL         = "bad-cert-non-final"
	REASON_CERT_FEE_NEGATIVE      = "bad-cert-fee-negative"
	REASON_CERT_CONTEXTUAL        = "bad-cert-contextual"
	REASON_CERT_MEMPOOL_CONFLICT  = "cert-mempool-conflict"
	REASON_CERT_VALUE_OUT_INVALID = "bad-cert-valueout"
)

// RejectError carries a ValidationState rejection across an error return.
type RejectError struct {
	Code   RejectCode
	Reason string
	DoS    int
	Debug  string
}

func (e *RejectError) Error() string {
	if e.Debug == "" {
		return fmt.Sprintf("%s (code %s, dos %d)", e.Reason, e.Code, e.DoS)
	}
	return fmt.Sprintf("%s (code %s, dos %d): %s", e.Reason, e.Code, e.DoS, e.Debug)
}
