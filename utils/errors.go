package utils

import "errors"

// PermError marks a failure that will not go away on retry, such as a corrupt
// ledger file. ReliableExec stops retrying as soon as it sees one.
type PermError string

func (e PermError) Error() string {
	return string(e)
}

func (e PermError) IsPermanent() bool {
	return true
}

type permanent interface {
	IsPermanent() bool
}

// IsPermanent reports whether any error in err's chain is permanent.
func IsPermanent(err error) bool {
	var p permanent
	if errors.As(err, &p) {
		return p.IsPermanent()
	}
	return false
}
