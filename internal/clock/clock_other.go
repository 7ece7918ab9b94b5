//go:build !linux

package clock

// nowNs — на не-Linux используется монотонная составляющая time.Time.
func nowNs() int64 {
	return fallbackNs()
}

// Resolution — заглушка на не-Linux.
func Resolution() int64 {
	return 0
}

// GranularityNs — заглушка на не-Linux.
func GranularityNs() int64 {
	return 0
}
