package core

import "github.com/sirupsen/logrus"

// Logger is the logging capability every merrinasp component accepts,
// rather than depending on a concrete *logrus.Logger directly. It is
// satisfied by *logrus.Logger and *logrus.Entry alike, following the
// pack's convention (operator-lifecycle-manager's controllers accept a
// *logrus.Logger at construction and call .WithFields for context).
type Logger = logrus.FieldLogger

// NewNopLogger returns a Logger that discards all output, for tests and
// for callers that do not want merrinasp's internal log lines.
func NewNopLogger() Logger {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	return l
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
