/*package error contains simple functions for reporting remora errors, split
by who can fix them.*/
package error

import (
	"fmt"
	"log"
	"os"
	"runtime/debug"
)

// External reports an error to stderr and kills the process. It should be
// used when an error is something a user could reasonably be expected to fix
// through changes in configuration/data/environment: a degenerate box, a
// ghost layer wider than the domain, and so on. It has the same signature as
// the standard fmt.*printf() functions.
func External(format string, a ...interface{}) {
	log.Printf("Remora exited early with the following error:\n"+format, a...)
	os.Exit(1)
}

// Internal reports an error to stderr along with a stack trace and kills the
// process. It should be used when the error requires a code dive to fix:
// a broken invariant between the particle arrays and the reverse tag table,
// a particle that cannot be routed to its owning rank, etc. It has the same
// signature as the standard fmt.*printf() functions.
func Internal(format string, a ...interface{}) {
	log.Println("Remora exited early with the following error:")
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n\n")
	debug.PrintStack()
	os.Exit(1)
}

// Overflow is returned when a counted demand exceeded a buffer's capacity.
// It is the one recoverable error class in the exchange engines: the caller
// regrows the buffer to Needed and re-runs the pass that overflowed instead
// of truncating.
type Overflow struct {
	What   string
	Needed int
	Cap    int
}

func (o *Overflow) Error() string {
	return fmt.Sprintf("%s needs capacity %d, but only %d is allocated.",
		o.What, o.Needed, o.Cap)
}

// IsOverflow returns the *Overflow contained in err, or nil.
func IsOverflow(err error) *Overflow {
	o, ok := err.(*Overflow)
	if !ok {
		return nil
	}
	return o
}
