// SPDX-License-Identifier: Apache-2.0
// Command onestore is an advisory CLI wrapper over the object store,
// channel, keychain, and routing packages (§6 "Exit codes (CLI wrappers,
// advisory)"): 0 success, 1 general error, 2 invalid arguments.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "onestore:", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if _, ok := err.(*usageError); ok {
		return 2
	}
	return 1
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }
