// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package consumererror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermanent(t *testing.T) {
	err := errors.New("testError")
	assert.False(t, IsPermanent(err))
	err = Permanent(err)
	assert.True(t, IsPermanent(err))
	err = fmt.Errorf("wrapping: %w", err)
	assert.True(t, IsPermanent(err))
}

func TestIsPermanentNil(t *testing.T) {
	assert.False(t, IsPermanent(nil))
}

func TestPermanentUnwrap(t *testing.T) {
	inner := errors.New("testError")
	assert.ErrorIs(t, Permanent(inner), inner)
}
