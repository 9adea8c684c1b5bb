// Package logging defines the structured-logging interface shared by every
// subsystem (cache init, ranking build, room lifecycle, session router).
package logging

// Logger is the interface every component logs through. It matches the
// teacher library's Logger interface verbatim so the production adapter
// can wrap github.com/kydenul/log without translation.
type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)

	Debugf(template string, args ...any)
	Infof(template string, args ...any)
	Warnf(template string, args ...any)
	Errorf(template string, args ...any)
}

var _ Logger = (*DiscardLogger)(nil)

// DiscardLogger is a Logger that does nothing. Used as the default in
// tests and anywhere a caller doesn't supply one.
type DiscardLogger struct{}

func (DiscardLogger) Debug(...any) {}
func (DiscardLogger) Info(...any)  {}
func (DiscardLogger) Warn(...any)  {}
func (DiscardLogger) Error(...any) {}

func (DiscardLogger) Debugf(string, ...any) {}
func (DiscardLogger) Infof(string, ...any)  {}
func (DiscardLogger) Warnf(string, ...any)  {}
func (DiscardLogger) Errorf(string, ...any) {}
