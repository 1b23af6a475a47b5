// Package errors provides structured error types for the binding generator.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the item path (interface, function, parameter), the WIT
// type involved, a detail message and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseGenerate, errors.KindUnsupported).
//		Path("wasi:io/streams", "read").
//		WitType("stream<u8>").
//		Detail("async types are not implemented").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AlreadyDefined(errors.PhaseGenerate, "type", "foo_bar_t")
//	err := errors.PolicyConflict(errors.PhaseGenerate, "list<borrow<r>>", "disable autodrop")
//
// Generation failures are never recovered from: the driver aborts the pass on the
// first error. All errors implement the standard error interface and support
// errors.Is/As.
package errors
