package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrMalformedLog marks a log that cannot be decoded (wrong topic count,
	// truncated data). Such logs are skipped with a warning, never fatal.
	ErrMalformedLog = errors.New("malformed log")

	// ErrEchoFill marks an exchange-internal bookkeeping echo of a fill
	// (taker == exchange contract). Echoes are dropped before persistence.
	ErrEchoFill = errors.New("exchange echo fill")

	// ErrRPCTransient marks a retryable chain RPC failure. The affected
	// range is deferred and retried on a later invocation.
	ErrRPCTransient = errors.New("transient rpc failure")

	// ErrStoreFatal marks an unrecoverable persistence failure. It is the
	// only error class that halts the pipeline.
	ErrStoreFatal = errors.New("fatal store failure")

	ErrUnverifiedDerivation = errors.New("unverified token derivation")
)
