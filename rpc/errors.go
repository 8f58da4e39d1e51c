package rpc

import "fmt"

// Code is a stable numeric error code surfaced to RPC callers, per §7's
// taxonomy. Unlike an ad-hoc error string, the code is safe for a scripted
// client (lncli, or the original ucoind shell tooling) to switch on.
type Code int

const (
	// CodeParse indicates an ill-formed request: wrong arity, unparsable
	// hex, or a method name that isn't in the dispatch table.
	CodeParse Code = iota + 1

	// CodeNoConn indicates the target peer isn't connected.
	CodeNoConn
	// CodeAlreadyConn indicates the target peer is already connected.
	CodeAlreadyConn

	// CodeNoChannel indicates no channel exists with the given peer.
	CodeNoChannel
	// CodeAlreadyOpen indicates a channel with the given peer is already open.
	CodeAlreadyOpen

	// CodeOpening indicates the channel is mid-funding.
	CodeOpening
	// CodeNoInit indicates the BOLT init handshake hasn't completed.
	CodeNoInit

	// CodeFunding indicates the funding flow could not be started.
	CodeFunding

	// CodePayStop indicates a payment was refused locally before submission.
	CodePayStop

	// CodeCloseStart indicates the close path failed to even start.
	CodeCloseStart
	// CodeCloseFail indicates the close path started but failed.
	CodeCloseFail

	// CodeInvoiceErase indicates a preimage deletion failed.
	CodeInvoiceErase

	// CodeRouteNotFound indicates the routing oracle found no path.
	CodeRouteNotFound
	// CodeRouteTooManyHops indicates the routing oracle's path exceeded the
	// maximum hop count.
	CodeRouteTooManyHops
	// CodeRouteError indicates a generic routing oracle failure.
	CodeRouteError

	// CodeInternal is a generic internal failure, the taxonomy's ERROR kind.
	CodeInternal
)

// String names the code the way the original command-line tool's textual
// error kinds did, useful for log lines and lncli's human-readable output.
func (c Code) String() string {
	switch c {
	case CodeParse:
		return "PARSE"
	case CodeNoConn:
		return "NOCONN"
	case CodeAlreadyConn:
		return "ALCONN"
	case CodeNoChannel:
		return "NOCHANN"
	case CodeAlreadyOpen:
		return "ALOPEN"
	case CodeOpening:
		return "OPENING"
	case CodeNoInit:
		return "NOINIT"
	case CodeFunding:
		return "FUNDING"
	case CodePayStop:
		return "PAY_STOP"
	case CodeCloseStart:
		return "CLOSE_START"
	case CodeCloseFail:
		return "CLOSE_FAIL"
	case CodeInvoiceErase:
		return "INVOICE_ERASE"
	case CodeRouteNotFound:
		return "ROUTE_NOTFOUND"
	case CodeRouteTooManyHops:
		return "ROUTE_TOOMANYHOP"
	case CodeRouteError:
		return "ROUTE_ERROR"
	default:
		return "ERROR"
	}
}

// Error is the structured error object surfaced over JSON-RPC, carrying a
// stable Code plus a human-readable Message.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an *Error with a formatted message.
func NewError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsFatal reports whether an error of this code is a protocol-level
// invariant breach that must force-close the owning channel, per §7's
// propagation policy. Routing and RPC-parameter errors are not fatal: they
// are recovered (routing) or reported verbatim (parameter faults).
func (c Code) IsFatal() bool {
	switch c {
	case CodeInternal:
		return true
	default:
		return false
	}
}
