// Copyright The Arrow Bridge Authors
// SPDX-License-Identifier: Apache-2.0

package arrowexporter

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
