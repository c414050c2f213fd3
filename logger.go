package agentkit

import (
	"github.com/go-logr/logr"
	"github.com/hashicorp/go-hclog"
)

// NewHclogLogger returns a logr.Logger writing through the given hclog logger,
// so library code taking a logr.Logger can share the CLI's console output.
// Verbosity levels above zero map to hclog's debug level.
func NewHclogLogger(logger hclog.Logger) logr.Logger {
	return logr.New(&hclogSink{logger: logger})
}

type hclogSink struct {
	logger hclog.Logger
	fields []interface{}
}

func (s *hclogSink) Init(logr.RuntimeInfo) {}

func (s *hclogSink) Enabled(level int) bool {
	if level > 0 {
		return s.logger.IsDebug()
	}
	return s.logger.IsInfo()
}

func (s *hclogSink) Info(level int, msg string, keysAndValues ...interface{}) {
	args := s.args(keysAndValues)
	if level > 0 {
		s.logger.Debug(msg, args...)
		return
	}
	s.logger.Info(msg, args...)
}

func (s *hclogSink) Error(err error, msg string, keysAndValues ...interface{}) {
	args := s.args(keysAndValues)
	if err != nil {
		args = append(args, "error", err.Error())
	}
	s.logger.Error(msg, args...)
}

func (s *hclogSink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	return &hclogSink{
		logger: s.logger,
		fields: append(append([]interface{}{}, s.fields...), keysAndValues...),
	}
}

func (s *hclogSink) WithName(name string) logr.LogSink {
	return &hclogSink{
		logger: s.logger.Named(name),
		fields: s.fields,
	}
}

func (s *hclogSink) args(keysAndValues []interface{}) []interface{} {
	if len(s.fields) == 0 {
		return keysAndValues
	}
	return append(append([]interface{}{}, s.fields...), keysAndValues...)
}
