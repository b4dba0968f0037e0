// Package audit provides audit logging for authorization decisions and
// administrative changes to roles, permissions, groups, and assignments.
//
// Events flow through the Logger interface. Three implementations are
// provided:
//
//   - DBLogger writes to an audit_logs table and supports filtered search
//   - FileLogger writes JSON lines with size-based rotation
//   - MultiLogger fans out to several destinations at once
//
// A typical deployment combines the database logger for queryability with
// the file logger for cheap long-term retention:
//
//	dbLog, _ := audit.NewDBLogger(db)
//	fileLog, _ := audit.NewFileLogger(audit.DefaultFileLoggerConfig())
//	logger := audit.NewMultiLogger(dbLog, fileLog)
//	defer logger.Close()
//
// Denied permission checks are recorded with EventTypeAccessDenied so that
// repeated probing of protected routes is visible even though the HTTP
// responses themselves stay deliberately vague.
package audit
