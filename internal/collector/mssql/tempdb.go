package mssql

import (
	"context"
	"strings"

	"github.com/senbaris/tempdbcheck/internal/logger"
	"github.com/senbaris/tempdbcheck/internal/model"
)

// Rule names, in evaluation order.
const (
	RuleTraceFlag1118 = "TF 1118 Enabled"
	RuleFileCount     = "File Count"
	RuleFileGrowth    = "File Growth in Percent"
	RuleFileLocation  = "File Location"
	RuleFileMaxSize   = "File MaxSize Set"
)

const (
	// SQL Server 2016 (13.x) ve sonrasında TF 1118 davranışı varsayılan
	traceFlagDefaultVersion = 13
	traceFlag1118           = "1118"
	maxRecommendedDataFiles = 8
	systemDrivePrefix       = "C:"
)

// GrowthType dosyanın autogrowth modu
type GrowthType int

const (
	FixedSize GrowthType = iota
	Percentage
)

func (g GrowthType) String() string {
	if g == Percentage {
		return "Percent"
	}
	return "Fixed"
}

// FileCatalogEntry tempdb dosya kataloğundaki tek bir dosya
type FileCatalogEntry struct {
	FileName string
	// MaxSize is in 8 KB pages; -1 means unlimited and 0 means no growth.
	MaxSize    int64
	GrowthType GrowthType
}

// TempDBFiles tempdb dosyalarını kategoriye göre ayırır
type TempDBFiles struct {
	Data []FileCatalogEntry
	Log  []FileCatalogEntry
}

// All returns data files followed by log files.
func (f TempDBFiles) All() []FileCatalogEntry {
	all := make([]FileCatalogEntry, 0, len(f.Data)+len(f.Log))
	all = append(all, f.Data...)
	return append(all, f.Log...)
}

// ServerContext is the read-only view of a target instance that the tempdb
// checks run against. Connection lifetime belongs to whoever supplies it.
type ServerContext interface {
	MajorVersion() int
	LogicalProcessors() int
	TempDBFiles(ctx context.Context) (TempDBFiles, error)
	// TraceStatus lists the globally enabled trace flags.
	TraceStatus(ctx context.Context) ([]string, error)
}

// TempDBEvaluator tempdb best practice kurallarını çalıştırır
type TempDBEvaluator struct {
	srv ServerContext
}

// NewTempDBEvaluator yeni bir TempDBEvaluator oluşturur
func NewTempDBEvaluator(srv ServerContext) *TempDBEvaluator {
	return &TempDBEvaluator{srv: srv}
}

// Evaluate runs the five tempdb rules in fixed order. Any query failure
// aborts the run and no partial results are returned.
func (e *TempDBEvaluator) Evaluate(ctx context.Context) ([]model.RuleResult, bool, error) {
	traceFlag, err := e.checkTraceFlag1118(ctx)
	if err != nil {
		return nil, false, err
	}

	files, err := e.srv.TempDBFiles(ctx)
	if err != nil {
		return nil, false, err
	}

	results := []model.RuleResult{
		traceFlag,
		checkFileCount(e.srv.LogicalProcessors(), files),
		checkFileGrowth(files),
		checkFileLocation(files),
		checkFileMaxSize(files),
	}

	hasViolations := model.HasViolations(results)
	if hasViolations {
		logger.Info("tempdb configuration deviates from best practices on %d rule(s)", countViolations(results))
	}
	return results, hasViolations, nil
}

// Evaluate is shorthand for NewTempDBEvaluator(srv).Evaluate(ctx).
func Evaluate(ctx context.Context, srv ServerContext) ([]model.RuleResult, bool, error) {
	return NewTempDBEvaluator(srv).Evaluate(ctx)
}

func (e *TempDBEvaluator) checkTraceFlag1118(ctx context.Context) (model.RuleResult, error) {
	result := model.RuleResult{
		Rule:        RuleTraceFlag1118,
		Recommended: model.BoolValue(true).Ptr(),
	}

	if e.srv.MajorVersion() >= traceFlagDefaultVersion {
		result.CurrentSetting = model.BoolValue(true)
		result.Notes = "SQL Server 2016 and later allocate uniform extents in tempdb by default; TF 1118 is not needed."
		return result, nil
	}

	flags, err := e.srv.TraceStatus(ctx)
	if err != nil {
		return model.RuleResult{}, err
	}
	enabled := strings.Contains(strings.Join(flags, ","), traceFlag1118)
	logger.Debug("TF 1118 kontrolü: aktif trace flag'ler [%s], enabled=%t", strings.Join(flags, ","), enabled)

	result.CurrentSetting = model.BoolValue(enabled)
	result.Notes = "KB328551 describes how TF 1118 reduces allocation contention in tempdb."
	return result, nil
}

func checkFileCount(processors int, files TempDBFiles) model.RuleResult {
	return model.RuleResult{
		Rule:           RuleFileCount,
		Recommended:    model.IntValue(RecommendedFileCount(processors)).Ptr(),
		CurrentSetting: model.IntValue(len(files.Data)),
		Notes:          "The number of tempdb data files should match the number of logical cores, up to 8.",
	}
}

// RecommendedFileCount returns min(processors, 8), floored at zero.
func RecommendedFileCount(processors int) int {
	if processors < 0 {
		return 0
	}
	return min(processors, maxRecommendedDataFiles)
}

func checkFileGrowth(files TempDBFiles) model.RuleResult {
	count := 0
	for _, f := range files.All() {
		if f.GrowthType == Percentage {
			count++
		}
	}
	return model.RuleResult{
		Rule:           RuleFileGrowth,
		Recommended:    model.IntValue(0).Ptr(),
		CurrentSetting: model.IntValue(count),
		Notes:          "Percentage growth gives unpredictable increments; use a fixed growth size for all tempdb files.",
	}
}

func checkFileLocation(files TempDBFiles) model.RuleResult {
	count := 0
	for _, f := range files.All() {
		if isOnSystemDrive(f.FileName) {
			count++
		}
	}
	return model.RuleResult{
		Rule:           RuleFileLocation,
		Recommended:    model.IntValue(0).Ptr(),
		CurrentSetting: model.IntValue(count),
		Notes:          "Do not place tempdb files on the system drive (C:).",
	}
}

func checkFileMaxSize(files TempDBFiles) model.RuleResult {
	count := 0
	for _, f := range files.All() {
		if f.MaxSize > 0 {
			count++
		}
	}
	// Recommended yok: sınırsız büyüme yalnızca bir öneri, ihlal sayılmaz
	return model.RuleResult{
		Rule:           RuleFileMaxSize,
		Recommended:    nil,
		CurrentSetting: model.IntValue(count),
		Notes:          "Consider leaving tempdb files with unlimited max size.",
	}
}

func isOnSystemDrive(path string) bool {
	return len(path) >= len(systemDrivePrefix) &&
		strings.EqualFold(path[:len(systemDrivePrefix)], systemDrivePrefix)
}

func countViolations(results []model.RuleResult) int {
	n := 0
	for _, r := range results {
		if r.IsViolation() {
			n++
		}
	}
	return n
}
