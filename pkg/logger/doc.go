// Package logger wraps zerolog behind a small structured logging interface.
//
// Console output goes to stderr so that stdout stays reserved for the
// conversion summary. When a log file is configured every record is also
// appended to it as a JSON line.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	logger.WithField("image", path).Info("Decoding image")
//
// Tests swap the global logger with SetLogger and a TestLogger to assert on
// what was logged.
package logger
