//go:build !linux

package diskformat

// madviseRandom is a no-op on platforms without MADV_RANDOM.
func madviseRandom(data []byte) {}
