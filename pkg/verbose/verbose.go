// Package verbose traces bus transactions when the daemon runs with -v.
package verbose

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

var (
	enabled int32
	logger  = log.New(os.Stderr, "[VERBOSE] ", log.LstdFlags|log.Lmicroseconds)
)

// SetEnabled sets the global verbose logging flag
func SetEnabled(enable bool) {
	var v int32
	if enable {
		v = 1
	}
	atomic.StoreInt32(&enabled, v)
}

// IsEnabled returns whether verbose logging is enabled
func IsEnabled() bool {
	return atomic.LoadInt32(&enabled) == 1
}

// SetOutput redirects trace output
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Printf prints a verbose log message if verbose logging is enabled
func Printf(format string, args ...interface{}) {
	if IsEnabled() {
		logger.Printf(format, args...)
	}
}

// Transaction traces one framed transfer: the control byte that opened
// it and the bytes that followed
func Transaction(control byte, data []byte) {
	if !IsEnabled() {
		return
	}
	dir := "RX"
	if control&0x80 == 0 {
		dir = "TX"
	}
	logger.Printf("si4735: %s [%02X] % X", dir, control, data)
}
