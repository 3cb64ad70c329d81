// Package pkderr provides the closed taxonomy of error kinds used across
// the trust-material pipeline, grounded on the same pattern boulder's
// errors package uses: a single concrete error type carrying a coarse
// category, rather than one Go type per failure mode.
package pkderr

import "fmt"

// Kind provides a coarse category for PKDErrors.
type Kind int

const (
	// Input errors: the bytes handed to a parser were not well-formed.
	ParseError Kind = iota
	UnsupportedFormat
	InvalidBase64

	// Validation outcomes that are surfaced as verdicts, not failures,
	// but still flow through this type when returned from a function
	// that can't itself record a ValidationResult.
	NotYetValid
	Expired
	CSCANotFound
	TrustChainSignatureFailed
	KeyUsageMismatch
	Revoked
	CRLExpired
	CRLUnavailable
	SelfSignatureFailed

	// PA verdicts.
	DGHashMismatch
	SODSignatureFailed
	DGMissingInSOD

	// Resource errors.
	PoolExhausted
	DatabaseError
	DirectoryError
	Timeout

	// Conflict errors.
	DuplicateFile
	AlreadyRunning

	// Auth/policy, surfaced unchanged from collaborators.
	Unauthorised
	Forbidden
)

var kindNames = map[Kind]string{
	ParseError:                "ParseError",
	UnsupportedFormat:         "UnsupportedFormat",
	InvalidBase64:             "InvalidBase64",
	NotYetValid:               "NOT_YET_VALID",
	Expired:                   "EXPIRED",
	CSCANotFound:              "CSCA_NOT_FOUND",
	TrustChainSignatureFailed: "TRUST_CHAIN_SIGNATURE_FAILED",
	KeyUsageMismatch:          "KEY_USAGE_MISMATCH",
	Revoked:                   "REVOKED",
	CRLExpired:                "CRL_EXPIRED",
	CRLUnavailable:            "CRL_UNAVAILABLE",
	SelfSignatureFailed:       "SELF_SIGNATURE_FAILED",
	DGHashMismatch:            "DG_HASH_MISMATCH",
	SODSignatureFailed:        "SOD_SIGNATURE_FAILED",
	DGMissingInSOD:            "DG_MISSING_IN_SOD",
	PoolExhausted:             "PoolExhausted",
	DatabaseError:             "DatabaseError",
	DirectoryError:            "DirectoryError",
	Timeout:                   "Timeout",
	DuplicateFile:             "DuplicateFile",
	AlreadyRunning:            "AlreadyRunning",
	Unauthorised:              "Unauthorised",
	Forbidden:                 "Forbidden",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error represents a single tagged failure or verdict reason flowing
// out of the pipeline.
type Error struct {
	Kind   Kind
	Detail string
	// DG is set for DG_HASH_MISMATCH / DG_MISSING_IN_SOD reasons, which
	// parameterise over a data group number.
	DG int
}

func (e *Error) Error() string {
	if e.DG != 0 {
		return fmt.Sprintf("%s{%d}: %s", e.Kind, e.DG, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// New builds an Error of the given kind.
func New(kind Kind, msg string, args ...interface{}) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(msg, args...)}
}

// NewDG builds a data-group-scoped Error (DG_HASH_MISMATCH / DG_MISSING_IN_SOD).
func NewDG(kind Kind, dg int, msg string, args ...interface{}) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(msg, args...), DG: dg}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	pe, ok := err.(*Error)
	if !ok {
		return false
	}
	return pe.Kind == kind
}

// Convenience constructors, mirroring the teacher's one-function-per-kind style.

func Parse(msg string, args ...interface{}) error             { return New(ParseError, msg, args...) }
func Unsupported(msg string, args ...interface{}) error        { return New(UnsupportedFormat, msg, args...) }
func InvalidB64(msg string, args ...interface{}) error         { return New(InvalidBase64, msg, args...) }
func PoolExhaustedErr(msg string, args ...interface{}) error   { return New(PoolExhausted, msg, args...) }
func DatabaseErr(msg string, args ...interface{}) error        { return New(DatabaseError, msg, args...) }
func DirectoryErr(msg string, args ...interface{}) error       { return New(DirectoryError, msg, args...) }
func TimeoutErr(msg string, args ...interface{}) error         { return New(Timeout, msg, args...) }
func DuplicateFileErr(msg string, args ...interface{}) error   { return New(DuplicateFile, msg, args...) }
func AlreadyRunningErr(msg string, args ...interface{}) error  { return New(AlreadyRunning, msg, args...) }
func UnauthorisedErr(msg string, args ...interface{}) error    { return New(Unauthorised, msg, args...) }
func ForbiddenErr(msg string, args ...interface{}) error       { return New(Forbidden, msg, args...) }
