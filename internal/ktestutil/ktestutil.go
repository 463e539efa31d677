// Package ktestutil holds small test helpers shared across the kernel's
// subpackages, in the spirit of the teacher pack's own internal/testutil:
// a DEBUG=1 verbosity switch and a structural-diff helper built on
// godebug/pretty for dumping trees and run-queue snapshots in test
// failures.
package ktestutil

import (
	"os"

	"github.com/kylelemons/godebug/pretty"
)

// Verbose reports true if the testing framework is run DEBUG=1, matching
// the teacher's own VerboseTest convention.
func Verbose() bool {
	return os.Getenv("DEBUG") == "1"
}

// Diff renders a structural diff between want and got using godebug/pretty,
// the same library the teacher pack pulls in for comparing deep structs in
// its own test failures.
func Diff(want, got interface{}) string {
	return pretty.Compare(want, got)
}
