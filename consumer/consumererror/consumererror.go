// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

// Package consumererror provides error wrappers that carry retry semantics
// across the exporter's sender chain.
package consumererror // import "github.com/arrowbridge/bridge/consumer/consumererror"

import "errors"

// permanent is an error that will always be returned if its source receives
// the same inputs.
type permanent struct {
	err error
}

// Permanent wraps an error to indicate that it is a permanent error, i.e. an
// error that will be always returned if its source receives the same inputs.
// Permanent errors are not retried by the exporter.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

func (p permanent) Error() string {
	return "Permanent error: " + p.err.Error()
}

// Unwrap returns the wrapped error for functions Is and As in standard package errors.
func (p permanent) Unwrap() error {
	return p.err
}

// IsPermanent checks if an error was wrapped with the Permanent function, which
// is used to indicate that a given error will always be returned in the case
// that its sources receives the same input.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return errors.As(err, &permanent{})
}
