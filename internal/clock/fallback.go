package clock

import "time"

var processStart = time.Now()

// fallbackNs — наносекунды с запуска процесса по монотонным показаниям time.
func fallbackNs() int64 {
	return time.Since(processStart).Nanoseconds()
}
