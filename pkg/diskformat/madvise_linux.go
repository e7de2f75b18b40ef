//go:build linux

package diskformat

import "golang.org/x/sys/unix"

// madviseRandom hints the kernel that index accesses are random (beam
// search jumps between unrelated nodes), disabling readahead. Best-effort:
// failures are not fatal since the mapping still serves correct reads, just
// possibly with wasted readahead.
func madviseRandom(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_RANDOM)
}
