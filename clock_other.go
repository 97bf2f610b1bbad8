//go:build !linux

package locktimer

func monotonicNanos() int64 {
	return nanotime()
}
