package locktimer

import (
	"fmt"
	"sync"
)

var (
	// Global map to track messages already reported at full level
	printedMessages sync.Map
)

// PrintOnce reports whether msg is seen for the first time during the
// process lifetime. The flush loop uses it to log a recurring I/O failure
// once at error level and afterwards at debug level.
func PrintOnce(msg string) bool {
	_, loaded := printedMessages.LoadOrStore(msg, true)
	return !loaded
}

// PrintOncef formats a message and calls PrintOnce with it.
func PrintOncef(format string, args ...interface{}) bool {
	msg := fmt.Sprintf(format, args...)
	return PrintOnce(msg)
}

// ResetPrintOnce clears all tracked messages (mainly for testing)
func ResetPrintOnce() {
	printedMessages.Range(func(key, _ any) bool {
		printedMessages.Delete(key)
		return true
	})
}
