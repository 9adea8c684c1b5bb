package logging

import kylog "github.com/kydenul/log"

var _ Logger = (*kydenulLogger)(nil)

// kydenulLogger adapts the process-wide github.com/kydenul/log logger to
// the Logger interface. Method shapes already match, so this is a direct
// pass-through rather than a translation layer.
type kydenulLogger struct{}

// NewProductionLogger returns a Logger backed by github.com/kydenul/log's
// default process logger.
func NewProductionLogger() Logger {
	return kydenulLogger{}
}

func (kydenulLogger) Debug(args ...any) { kylog.Debug(args...) }
func (kydenulLogger) Info(args ...any)  { kylog.Info(args...) }
func (kydenulLogger) Warn(args ...any)  { kylog.Warn(args...) }
func (kydenulLogger) Error(args ...any) { kylog.Error(args...) }

func (kydenulLogger) Debugf(template string, args ...any) { kylog.Debugf(template, args...) }
func (kydenulLogger) Infof(template string, args ...any)  { kylog.Infof(template, args...) }
func (kydenulLogger) Warnf(template string, args ...any)  { kylog.Warnf(template, args...) }
func (kydenulLogger) Errorf(template string, args ...any) { kylog.Errorf(template, args...) }
