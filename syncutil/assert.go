package syncutil

import "fmt"

// Assert the condition is true. If it is not, panic with the given message.
// The directory subsystem uses this for invariants that a caller violating
// them means a programmer error, not a recoverable runtime condition (see
// drive.Error for the latter).
func Assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf(format, args...))
	}
}

