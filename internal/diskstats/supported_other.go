//go:build !linux

package diskstats

// Supported reports whether the platform exposes per-device counters.
func Supported() bool {
	return false
}
