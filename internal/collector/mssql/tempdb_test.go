package mssql

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/senbaris/tempdbcheck/internal/logger"
	"github.com/senbaris/tempdbcheck/internal/model"
)

type fakeServer struct {
	major      int
	processors int
	files      TempDBFiles
	flags      []string
	filesErr   error
	traceErr   error

	traceCalls int
	fileCalls  int
}

func (f *fakeServer) MajorVersion() int      { return f.major }
func (f *fakeServer) LogicalProcessors() int { return f.processors }

func (f *fakeServer) TempDBFiles(ctx context.Context) (TempDBFiles, error) {
	f.fileCalls++
	return f.files, f.filesErr
}

func (f *fakeServer) TraceStatus(ctx context.Context) ([]string, error) {
	f.traceCalls++
	return f.flags, f.traceErr
}

func resultByRule(t *testing.T, results []model.RuleResult, rule string) model.RuleResult {
	t.Helper()
	for _, r := range results {
		if r.Rule == rule {
			return r
		}
	}
	t.Fatalf("rule %q not in results", rule)
	return model.RuleResult{}
}

func healthyFiles(n int) TempDBFiles {
	var f TempDBFiles
	for i := 0; i < n; i++ {
		f.Data = append(f.Data, FileCatalogEntry{FileName: `T:\tempdb\tempdev.mdf`, MaxSize: -1, GrowthType: FixedSize})
	}
	f.Log = []FileCatalogEntry{{FileName: `L:\tempdb\templog.ldf`, MaxSize: -1, GrowthType: FixedSize}}
	return f
}

func TestEvaluate_RuleOrder(t *testing.T) {
	srv := &fakeServer{major: 15, processors: 4, files: healthyFiles(4)}

	results, _, err := Evaluate(context.Background(), srv)
	require.NoError(t, err)

	var names []string
	for _, r := range results {
		names = append(names, r.Rule)
	}
	assert.Equal(t, []string{RuleTraceFlag1118, RuleFileCount, RuleFileGrowth, RuleFileLocation, RuleFileMaxSize}, names)

	again, _, err := Evaluate(context.Background(), srv)
	require.NoError(t, err)
	assert.Equal(t, results, again)
}

func TestEvaluate_HealthyServerHasNoViolations(t *testing.T) {
	srv := &fakeServer{major: 15, processors: 4, files: healthyFiles(4)}

	results, hasViolations, err := Evaluate(context.Background(), srv)
	require.NoError(t, err)
	assert.False(t, hasViolations)
	assert.Len(t, results, 5)
}

func TestTraceFlag_ModernVersionSkipsQuery(t *testing.T) {
	for _, major := range []int{13, 14, 15, 16} {
		srv := &fakeServer{major: major, processors: 2, files: healthyFiles(2), traceErr: errors.New("must not be called")}

		results, _, err := Evaluate(context.Background(), srv)
		require.NoError(t, err)
		assert.Equal(t, 0, srv.traceCalls)

		tf := resultByRule(t, results, RuleTraceFlag1118)
		assert.Equal(t, model.BoolValue(true), *tf.Recommended)
		assert.Equal(t, model.BoolValue(true), tf.CurrentSetting)
		assert.Contains(t, tf.Notes, "default")
	}
}

func TestTraceFlag_OlderVersionQueriesStatus(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		want  bool
	}{
		{"enabled", []string{"1117", "1118"}, true},
		{"only flag", []string{"1118"}, true},
		{"other flags", []string{"1117", "3226"}, false},
		{"none", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &fakeServer{major: 12, processors: 2, files: healthyFiles(2), flags: tt.flags}

			results, hasViolations, err := Evaluate(context.Background(), srv)
			require.NoError(t, err)
			assert.Equal(t, 1, srv.traceCalls)

			tf := resultByRule(t, results, RuleTraceFlag1118)
			assert.Equal(t, model.BoolValue(tt.want), tf.CurrentSetting)
			assert.Contains(t, tf.Notes, "KB328551")
			assert.Equal(t, !tt.want, hasViolations)
		})
	}
}

func TestRecommendedFileCount(t *testing.T) {
	assert.Equal(t, 8, RecommendedFileCount(16))
	assert.Equal(t, 8, RecommendedFileCount(8))
	assert.Equal(t, 4, RecommendedFileCount(4))
	assert.Equal(t, 1, RecommendedFileCount(1))
	assert.Equal(t, 0, RecommendedFileCount(0))
	assert.Equal(t, 0, RecommendedFileCount(-2))
}

func TestFileCount_CountsDataFilesOnly(t *testing.T) {
	srv := &fakeServer{major: 15, processors: 16, files: healthyFiles(4)}

	results, hasViolations, err := Evaluate(context.Background(), srv)
	require.NoError(t, err)

	fc := resultByRule(t, results, RuleFileCount)
	assert.Equal(t, model.IntValue(8), *fc.Recommended)
	assert.Equal(t, model.IntValue(4), fc.CurrentSetting)
	assert.True(t, hasViolations)
}

func TestFileGrowth_CountsDataAndLog(t *testing.T) {
	files := TempDBFiles{
		Data: []FileCatalogEntry{
			{FileName: `T:\a.mdf`, GrowthType: FixedSize},
			{FileName: `T:\b.ndf`, GrowthType: FixedSize},
			{FileName: `T:\c.ndf`, GrowthType: Percentage},
		},
		Log: []FileCatalogEntry{{FileName: `L:\log.ldf`, GrowthType: Percentage}},
	}
	srv := &fakeServer{major: 15, processors: 3, files: files}

	results, hasViolations, err := Evaluate(context.Background(), srv)
	require.NoError(t, err)

	fg := resultByRule(t, results, RuleFileGrowth)
	assert.Equal(t, model.IntValue(0), *fg.Recommended)
	assert.Equal(t, model.IntValue(2), fg.CurrentSetting)
	assert.True(t, hasViolations)
}

func TestFileLocation_SystemDrive(t *testing.T) {
	files := TempDBFiles{
		Data: []FileCatalogEntry{{FileName: `C:\tempdb.mdf`}, {FileName: `D:\tempdb2.mdf`}},
		Log:  []FileCatalogEntry{{FileName: `C:\templog.ldf`}},
	}
	srv := &fakeServer{major: 15, processors: 2, files: files}

	results, _, err := Evaluate(context.Background(), srv)
	require.NoError(t, err)

	fl := resultByRule(t, results, RuleFileLocation)
	assert.Equal(t, model.IntValue(2), fl.CurrentSetting)
}

func TestIsOnSystemDrive(t *testing.T) {
	assert.True(t, isOnSystemDrive(`C:\tempdb.mdf`))
	assert.True(t, isOnSystemDrive(`c:\data\tempdb.mdf`))
	assert.False(t, isOnSystemDrive(`D:\tempdb.mdf`))
	assert.False(t, isOnSystemDrive(`/var/opt/mssql/data/tempdb.mdf`))
	assert.False(t, isOnSystemDrive("C"))
	assert.False(t, isOnSystemDrive(""))
}

func TestFileMaxSize_InformationalOnly(t *testing.T) {
	files := TempDBFiles{
		Data: []FileCatalogEntry{{FileName: `T:\a.mdf`, MaxSize: 0}, {FileName: `T:\b.ndf`, MaxSize: 100}},
		Log:  []FileCatalogEntry{{FileName: `L:\log.ldf`, MaxSize: -1}},
	}
	srv := &fakeServer{major: 15, processors: 2, files: files}

	results, hasViolations, err := Evaluate(context.Background(), srv)
	require.NoError(t, err)

	ms := resultByRule(t, results, RuleFileMaxSize)
	assert.Nil(t, ms.Recommended)
	assert.Equal(t, model.IntValue(1), ms.CurrentSetting)
	assert.False(t, ms.IsViolation())
	// every other rule passes, so the capped file alone must not raise the flag
	assert.False(t, hasViolations)
}

func TestEvaluate_EmptyCatalogYieldsZeroCounts(t *testing.T) {
	srv := &fakeServer{major: 15, processors: 0}

	results, hasViolations, err := Evaluate(context.Background(), srv)
	require.NoError(t, err)

	for _, rule := range []string{RuleFileCount, RuleFileGrowth, RuleFileLocation, RuleFileMaxSize} {
		assert.Equal(t, model.IntValue(0), resultByRule(t, results, rule).CurrentSetting, rule)
	}
	assert.False(t, hasViolations)
}

func TestEvaluate_QueryErrorsAbort(t *testing.T) {
	queryErr := &QueryError{Query: QueryTempDBFiles, Err: errors.New("permission denied")}
	srv := &fakeServer{major: 15, processors: 4, filesErr: queryErr}

	results, hasViolations, err := Evaluate(context.Background(), srv)
	require.Error(t, err)
	assert.Nil(t, results)
	assert.False(t, hasViolations)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Contains(t, err.Error(), "permission denied")
}

func TestEvaluate_TraceStatusErrorAborts(t *testing.T) {
	srv := &fakeServer{major: 11, processors: 4, files: healthyFiles(4), traceErr: &QueryError{Query: QueryTraceStatus, Err: errors.New("boom")}}

	results, _, err := Evaluate(context.Background(), srv)
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Equal(t, 0, srv.fileCalls)
}

type fakeTarget struct {
	fakeServer
	closed bool
}

func (f *fakeTarget) Name() string    { return "sql01" }
func (f *fakeTarget) Version() string { return "15.0.4153.1" }
func (f *fakeTarget) Close() error    { f.closed = true; return nil }

func TestCheckTempDB_BuildsReportWithoutClosing(t *testing.T) {
	tgt := &fakeTarget{fakeServer: fakeServer{major: 15, processors: 16, files: healthyFiles(8)}}

	report, err := CheckTempDB(context.Background(), tgt)
	require.NoError(t, err)

	assert.Equal(t, "sql01", report.Server)
	assert.Equal(t, 15, report.MajorVersion)
	assert.Equal(t, 16, report.LogicalProcessors)
	assert.Len(t, report.Results, 5)
	assert.False(t, report.HasViolations)
	assert.False(t, tgt.closed)
}

func TestEvaluate_ViolationsLoggedBelowWarning(t *testing.T) {
	var buf bytes.Buffer
	origLevel := logger.GetLevel()
	logger.SetOutput(&buf)
	defer func() {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(origLevel)
	}()

	srv := &fakeServer{major: 15, processors: 8, files: healthyFiles(2)}

	logger.SetLevel(logger.LevelWarning)
	_, hasViolations, err := Evaluate(context.Background(), srv)
	require.NoError(t, err)
	require.True(t, hasViolations)
	assert.Empty(t, buf.String(), "the user-facing warning belongs to the report summary")

	logger.SetLevel(logger.LevelInfo)
	_, _, err = Evaluate(context.Background(), srv)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[INFO] tempdb configuration deviates from best practices on 1 rule(s)")
}
