package rt

import "github.com/sirupsen/logrus"

// discardLogger returns a logrus logger with output suppressed, for
// tests that need a non-nil FieldLogger but don't care about its
// output.
func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}
