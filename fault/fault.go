package fault

import "errors"

// error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type ProcessError GenericError

// common errors - keep in alphabetic order within each class
var (
	ErrAlreadyFullyVerified = InvalidError("seller is already fully verified")
	ErrEmptyContentID       = InvalidError("content identifier is required")
	ErrInvalidConfig        = InvalidError("pool configuration is invalid")
	ErrInvalidState         = InvalidError("invalid state")
	ErrNotCreator           = InvalidError("caller is not the pool creator")
	ErrNotFullyVerified     = InvalidError("seller is not fully verified")
	ErrNotJoined            = InvalidError("seller has not joined the pool")
	ErrPoolExpired          = InvalidError("pool deadline has passed")
	ErrPoolInactive         = InvalidError("pool is not active")
	ErrUnknownProof         = InvalidError("proof is not a requirement of the pool")

	ErrAlreadyJoined        = ExistsError("seller has already joined the pool")
	ErrAlreadyStored        = ExistsError("data already stored for seller")
	ErrDuplicateSubmission  = ExistsError("proof already submitted by seller")
	ErrProofAlreadyConsumed = ExistsError("proof already consumed")

	ErrDataNotFound   = NotFoundError("data not found for seller")
	ErrPoolNotFound   = NotFoundError("pool not found")
	ErrSellerNotFound = NotFoundError("seller not found")

	ErrTransferFailure = ProcessError("payment transfer failed")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string   { return string(e) }
func (e InvalidError) Error() string  { return string(e) }
func (e NotFoundError) Error() string { return string(e) }
func (e ProcessError) Error() string  { return string(e) }

// every invalid error is also an invalid state
func (e InvalidError) Is(target error) bool {
	t, ok := target.(InvalidError)
	return ok && t == ErrInvalidState
}

// determine the class of an error, unwrapping as needed
func IsErrExists(e error) bool   { var x ExistsError; return errors.As(e, &x) }
func IsErrInvalid(e error) bool  { var x InvalidError; return errors.As(e, &x) }
func IsErrNotFound(e error) bool { var x NotFoundError; return errors.As(e, &x) }
func IsErrProcess(e error) bool  { var x ProcessError; return errors.As(e, &x) }
