package heapdb

import (
	"log"
	"os"
)

// Debug logging follows the teacher's DPrintf idiom (Xbzzy-mit-6.5830): a
// single package-level switch, read once from the environment, turns every
// DPrintf call on or off together, without recompiling. There are no levels
// and no per-component switches.
var debugLogger = log.New(os.Stderr, "heapdb: ", log.LstdFlags|log.Lmicroseconds)

var debugEnabled = os.Getenv("HEAPDB_DEBUG") != ""

// DPrintf logs a debug line when HEAPDB_DEBUG is set in the environment.
// Kept as a package-level function, matching the teacher's call-site style
// (buffer_pool.go, lock_manager.go, heap_page.go).
func DPrintf(format string, args ...any) {
	if !debugEnabled {
		return
	}
	debugLogger.Printf(format, args...)
}
