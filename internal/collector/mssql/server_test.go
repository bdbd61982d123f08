package mssql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/senbaris/tempdbcheck/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectBootstrap(mock sqlmock.Sqlmock, version string, processors int) {
	mock.ExpectQuery(QueryProductVersion).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(version))
	mock.ExpectQuery(QueryLogicalProcessors).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(processors))
}

func TestNewServer_LoadsMetadata(t *testing.T) {
	db, mock := newMock(t)
	expectBootstrap(mock, "12.0.6024.0", 16)

	srv, err := NewServer(context.Background(), "sql01", db)
	require.NoError(t, err)

	assert.Equal(t, "sql01", srv.Name())
	assert.Equal(t, "12.0.6024.0", srv.Version())
	assert.Equal(t, 12, srv.MajorVersion())
	assert.Equal(t, 16, srv.LogicalProcessors())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewServer_VersionQueryFails(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(QueryProductVersion).WillReturnError(errors.New("login failed"))

	_, err := NewServer(context.Background(), "sql01", db)
	require.Error(t, err)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, QueryProductVersion, qe.Query)
}

func TestNewServer_UnparseableVersion(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(QueryProductVersion).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("unknown"))

	_, err := NewServer(context.Background(), "sql01", db)
	require.Error(t, err)
}

func TestServer_TempDBFiles(t *testing.T) {
	db, mock := newMock(t)
	expectBootstrap(mock, "15.0.4153.1", 4)
	mock.ExpectQuery(QueryTempDBFiles).WillReturnRows(
		sqlmock.NewRows([]string{"type_desc", "physical_name", "max_size", "is_percent_growth"}).
			AddRow("ROWS", `C:\tempdb.mdf`, -1, false).
			AddRow("ROWS", `D:\tempdb2.ndf`, 100, true).
			AddRow("LOG", `C:\templog.ldf`, 0, true),
	)

	srv, err := NewServer(context.Background(), "sql01", db)
	require.NoError(t, err)

	files, err := srv.TempDBFiles(context.Background())
	require.NoError(t, err)

	require.Len(t, files.Data, 2)
	require.Len(t, files.Log, 1)
	assert.Equal(t, FileCatalogEntry{FileName: `C:\tempdb.mdf`, MaxSize: -1, GrowthType: FixedSize}, files.Data[0])
	assert.Equal(t, Percentage, files.Data[1].GrowthType)
	assert.Equal(t, int64(100), files.Data[1].MaxSize)
	assert.Equal(t, `C:\templog.ldf`, files.Log[0].FileName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServer_TempDBFiles_QueryError(t *testing.T) {
	db, mock := newMock(t)
	expectBootstrap(mock, "15.0.4153.1", 4)
	mock.ExpectQuery(QueryTempDBFiles).WillReturnError(errors.New("VIEW SERVER STATE permission denied"))

	srv, err := NewServer(context.Background(), "sql01", db)
	require.NoError(t, err)

	_, err = srv.TempDBFiles(context.Background())
	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Contains(t, err.Error(), "permission denied")
}

func TestServer_TraceStatus(t *testing.T) {
	db, mock := newMock(t)
	expectBootstrap(mock, "11.0.7001.0", 4)
	mock.ExpectQuery(QueryTraceStatus).WillReturnRows(
		sqlmock.NewRows([]string{"TraceFlag", "Status", "Global", "Session"}).
			AddRow(1117, 1, 1, 0).
			AddRow(1118, 1, 1, 0),
	)

	srv, err := NewServer(context.Background(), "sql01", db)
	require.NoError(t, err)

	flags, err := srv.TraceStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1117", "1118"}, flags)
}

func TestServer_EvaluateEndToEnd(t *testing.T) {
	db, mock := newMock(t)
	expectBootstrap(mock, "11.0.7001.0", 2)
	mock.ExpectQuery(QueryTraceStatus).WillReturnRows(
		sqlmock.NewRows([]string{"TraceFlag", "Status", "Global", "Session"}),
	)
	mock.ExpectQuery(QueryTempDBFiles).WillReturnRows(
		sqlmock.NewRows([]string{"type_desc", "physical_name", "max_size", "is_percent_growth"}).
			AddRow("ROWS", `T:\tempdb.mdf`, -1, false).
			AddRow("ROWS", `T:\tempdb2.ndf`, -1, false).
			AddRow("LOG", `L:\templog.ldf`, -1, false),
	)

	srv, err := NewServer(context.Background(), "sql01", db)
	require.NoError(t, err)

	results, hasViolations, err := Evaluate(context.Background(), srv)
	require.NoError(t, err)
	assert.True(t, hasViolations)

	tf := resultByRule(t, results, RuleTraceFlag1118)
	assert.Equal(t, model.BoolValue(false), tf.CurrentSetting)
	assert.False(t, resultByRule(t, results, RuleFileCount).IsViolation())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServer_CloseClosesDB(t *testing.T) {
	db, mock := newMock(t)
	expectBootstrap(mock, "16.0.1000.6", 8)
	mock.ExpectClose()

	srv, err := NewServer(context.Background(), "sql01", db)
	require.NoError(t, err)
	require.NoError(t, srv.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}
