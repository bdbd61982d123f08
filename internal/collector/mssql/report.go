package mssql

import (
	"context"

	"github.com/senbaris/tempdbcheck/internal/model"
)

// Target is a ServerContext that can also describe and close itself.
// *Server implements it.
type Target interface {
	ServerContext
	Name() string
	Version() string
	Close() error
}

// CheckTempDB evaluates the tempdb rules against t and wraps the results in
// a Report. It does not close t.
func CheckTempDB(ctx context.Context, t Target) (*model.Report, error) {
	results, hasViolations, err := Evaluate(ctx, t)
	if err != nil {
		return nil, err
	}
	return model.NewReport(t.Name(), t.Version(), t.MajorVersion(), t.LogicalProcessors(), results, hasViolations), nil
}
