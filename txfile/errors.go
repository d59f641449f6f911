package txfile

import "fmt"

// FormatError is a decode failure. Each kind is a distinct sentinel so
// recovery tooling can choose between repairing and aborting. All of them are
// permanent: corruption does not heal on retry.
type FormatError struct {
	kind   string
	detail string
}

var (
	ErrTruncated         = &FormatError{kind: "truncated"}
	ErrChecksumMismatch  = &FormatError{kind: "checksum mismatch"}
	ErrSizeMismatch      = &FormatError{kind: "size mismatch"}
	ErrOrderingViolation = &FormatError{kind: "partition ordering violation"}
	ErrUnknownFormat     = &FormatError{kind: "unknown format"}
)

func (e *FormatError) Error() string {
	if e.detail == "" {
		return "tx file: " + e.kind
	}
	return "tx file: " + e.kind + ": " + e.detail
}

// Is matches any FormatError of the same kind, so errors.Is(err, ErrTruncated)
// holds for every detailed truncation error.
func (e *FormatError) Is(target error) bool {
	t, ok := target.(*FormatError)
	return ok && t.kind == e.kind
}

func (e *FormatError) IsPermanent() bool {
	return true
}

func (e *FormatError) withDetail(format string, args ...any) *FormatError {
	return &FormatError{kind: e.kind, detail: fmt.Sprintf(format, args...)}
}
