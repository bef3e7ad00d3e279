package ragModel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidProjectID       = errors.New("invalid project id")
	ErrInvalidChunkParameters = errors.New("invalid chunk parameters")
	ErrInvalidAsset           = errors.New("invalid asset")
	ErrInvalidQuery           = errors.New("invalid query")
	ErrSourceNotFound         = errors.New("source not found")
	ErrNoChunksProduced       = errors.New("no chunks produced")
	ErrAssetAlreadyProcessed  = errors.New("asset already processed")

	ErrEmbeddingUnavailable  = errors.New("embedding unavailable")
	ErrEmbeddingBackend      = errors.New("embedding backend error")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrGenerationBackend     = errors.New("generation backend error")

	ErrDimensionMismatch  = errors.New("dimension mismatch")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrVectorStore        = errors.New("vector store error")
	ErrVectorSearch       = errors.New("vector search error")
	ErrGenerationFailed   = errors.New("generation failed")
	ErrPartiallyPersisted = errors.New("partially persisted")
	ErrPersistence        = errors.New("persistence error")
)

// PipelineError tags a failure with its kind and the operation that produced it.
// errors.Is matches both Kind and the underlying cause.
type PipelineError struct {
	Kind error
	Op   string
	Err  error
}

func (e *PipelineError) Error() string {
	switch {
	case e.Err == nil && e.Op == "":
		return e.Kind.Error()
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Op == "":
		return e.Kind.Error() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewError(kind error, op string, format string, args ...any) error {
	return &PipelineError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap keeps err in the chain. Use it for errors produced inside this module.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Kind: kind, Op: op, Err: err}
}

// Opaque flattens a vendor error to its message so vendor types never reach callers.
// Context cancellation survives the flattening.
func Opaque(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &PipelineError{Kind: kind, Op: op, Err: context.Canceled}
	case errors.Is(err, context.DeadlineExceeded):
		return &PipelineError{Kind: kind, Op: op, Err: context.DeadlineExceeded}
	}
	return &PipelineError{Kind: kind, Op: op, Err: fmt.Errorf("%v", err)}
}

// KindOf returns the first kind recorded in err's chain, or nil.
func KindOf(err error) error {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return nil
}

func IsValidation(err error) bool {
	return isAny(err, ErrInvalidProjectID, ErrInvalidChunkParameters, ErrInvalidAsset, ErrInvalidQuery,
		ErrSourceNotFound, ErrNoChunksProduced, ErrAssetAlreadyProcessed)
}

func IsUnavailable(err error) bool {
	return isAny(err, ErrEmbeddingUnavailable, ErrGenerationUnavailable)
}

func IsTransient(err error) bool {
	if IsValidation(err) || IsUnavailable(err) {
		return false
	}
	return isAny(err, ErrEmbeddingBackend, ErrGenerationBackend, ErrVectorStore, ErrVectorSearch,
		ErrGenerationFailed, ErrPartiallyPersisted, ErrPersistence, context.DeadlineExceeded)
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// HTTPStatus maps an error kind to the status code reported on jobs and by the API.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrPartiallyPersisted):
		// chunks are durable, so the cause's own code would mislead
		return http.StatusInternalServerError
	case errors.Is(err, ErrSourceNotFound), errors.Is(err, ErrCollectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAssetAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, ErrNoChunksProduced):
		return http.StatusUnprocessableEntity
	case IsValidation(err), errors.Is(err, ErrDimensionMismatch):
		return http.StatusBadRequest
	case IsUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrEmbeddingBackend), errors.Is(err, ErrGenerationBackend),
		errors.Is(err, ErrGenerationFailed), errors.Is(err, ErrVectorStore):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
