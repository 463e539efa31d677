//go:build !linux
// +build !linux

package main

import "fmt"

// printMountBanner is a no-op off Linux; mountinfo only parses
// /proc/self/mountinfo.
func printMountBanner() {
	fmt.Println("host mounts: unavailable (non-Linux)")
}
