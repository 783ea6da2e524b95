package logging

// WithJobID returns a logger that prefixes every line with a job id so
// interleaved worker output stays attributable.
func WithJobID(logger Logger, jobID string) Logger {
	if IsNil(logger) {
		return Nop()
	}
	if jobID == "" {
		return logger
	}
	return &jobIDLogger{logger: logger, jobID: jobID}
}

type jobIDLogger struct {
	logger Logger
	jobID  string
}

func (l *jobIDLogger) Debug(format string, args ...any) {
	l.logger.Debug(prefixJobID(l.jobID, format), args...)
}

func (l *jobIDLogger) Info(format string, args ...any) {
	l.logger.Info(prefixJobID(l.jobID, format), args...)
}

func (l *jobIDLogger) Warn(format string, args ...any) {
	l.logger.Warn(prefixJobID(l.jobID, format), args...)
}

func (l *jobIDLogger) Error(format string, args ...any) {
	l.logger.Error(prefixJobID(l.jobID, format), args...)
}

func prefixJobID(jobID, format string) string {
	if jobID == "" {
		return format
	}
	return "job=" + jobID + " " + format
}
