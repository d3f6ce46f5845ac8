// Package diag configures the process-wide diagnostic logger and renders
// fatal errors the way spec section 7 requires: a single "[ERROR]"-prefixed
// line on the diagnostic stream, no recovery. Logging itself is structured
// via logrus, replacing the bare log.Printf this module's checker ancestry
// used for its one warning path.
package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide diagnostic logger. Debug level is enabled by
// the CLI's -d/--debug flag; it otherwise logs at Info and above.
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: false, FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetDebug raises or lowers the logger's verbosity.
func SetDebug(on bool) {
	if on {
		Logger.SetLevel(logrus.DebugLevel)
	} else {
		Logger.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects where diagnostics are written; tests redirect this
// to io.Discard or a buffer.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// Fatal prints a single "[ERROR] <msg>" line to the diagnostic stream and
// exits the process with a non-zero status. It never returns.
func Fatal(err error) {
	fmt.Fprintf(Logger.Out, "[ERROR] %v\n", err)
	os.Exit(1)
}
