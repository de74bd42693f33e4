package utils

import "runtime"

// -----------------------------------------------------------------------------

// HeapAllocMB reports the live heap of the process in MB
func HeapAllocMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / 1024 / 1024
}

// -----------------------------------------------------------------------------

// Goroutines reports the current goroutine count
func Goroutines() int {
	return runtime.NumGoroutine()
}
