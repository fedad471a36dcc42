package logger

// nullLogger drops everything. Library code falls back to it when the caller
// passes no logger.
type nullLogger struct{}

func NewNullLogger() Logger {
	return nullLogger{}
}

func (n nullLogger) WithFields(map[string]interface{}) Logger { return n }
func (n nullLogger) WithField(string, interface{}) Logger     { return n }
func (n nullLogger) WithError(error) Logger                   { return n }

func (nullLogger) Debug(...interface{})          {}
func (nullLogger) Info(...interface{})           {}
func (nullLogger) Warn(...interface{})           {}
func (nullLogger) Error(...interface{})          {}
func (nullLogger) Debugf(string, ...interface{}) {}
func (nullLogger) Infof(string, ...interface{})  {}
func (nullLogger) Warnf(string, ...interface{})  {}
