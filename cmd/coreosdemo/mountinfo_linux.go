//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/moby/sys/mountinfo"
)

// printMountBanner prints the host's visible mount count as a one-line
// diagnostic before booting the in-memory kernel. This is informational
// only: the in-memory file store never reads or writes through these
// mounts, matching the spec's Non-goal on persistence.
func printMountBanner() {
	mounts, err := mountinfo.GetMounts(nil)
	if err != nil {
		fmt.Printf("host mounts: unavailable (%v)\n", err)
		return
	}
	fmt.Printf("host mounts: %d visible\n", len(mounts))
}
