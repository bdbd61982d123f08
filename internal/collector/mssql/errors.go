package mssql

import (
	"fmt"
	"strings"
)

// ConnectionError is returned when the target server cannot be reached or
// its metadata cannot be bootstrapped. The check is aborted.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("MSSQL bağlantısı kurulamadı (%s): %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError wraps a failed catalog or diagnostic query.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("sorgu başarısız (%s): %v", trimQuery(e.Query, 60), e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// trimQuery collapses whitespace and shortens a query for error messages.
func trimQuery(q string, maxLen int) string {
	s := []rune(strings.Join(strings.Fields(q), " "))
	if len(s) > maxLen {
		return string(s[:maxLen]) + "..."
	}
	return string(s)
}
