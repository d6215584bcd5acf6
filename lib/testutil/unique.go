// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueName returns "prefix-N" with N increasing across the test
// binary, for widget names that must not collide between tests.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}

// LocalPV returns a unique local process variable name of the form
// "loc://prefix-N".
func LocalPV(prefix string) string {
	return "loc://" + UniqueName(prefix)
}
