package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/senbaris/tempdbcheck/internal/logger"
)

const queryTimeout = 30 * time.Second

// Queries issued against the target server. All are read-only.
const (
	QueryProductVersion = `SELECT CAST(SERVERPROPERTY('ProductVersion') AS nvarchar(128))`

	QueryLogicalProcessors = `SELECT COUNT(*) FROM sys.dm_os_schedulers WHERE status = 'VISIBLE ONLINE'`

	QueryTempDBFiles = `
		SELECT
			type_desc,
			physical_name,
			max_size,
			is_percent_growth
		FROM tempdb.sys.database_files
		WHERE type_desc IN ('ROWS', 'LOG')
		ORDER BY file_id`

	QueryTraceStatus = `DBCC TRACESTATUS(-1) WITH NO_INFOMSGS`
)

// Server is a live ServerContext backed by a database/sql connection.
type Server struct {
	name       string
	version    string
	major      int
	processors int
	db         *sql.DB
}

// NewServer reads the product version and logical processor count over db.
// The Server does not take ownership of db beyond Close.
func NewServer(ctx context.Context, name string, db *sql.DB) (*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var version sql.NullString
	if err := db.QueryRowContext(ctx, QueryProductVersion).Scan(&version); err != nil {
		return nil, &QueryError{Query: QueryProductVersion, Err: err}
	}
	major, err := ParseMajorVersion(version.String)
	if err != nil {
		return nil, &QueryError{Query: QueryProductVersion, Err: err}
	}

	var processors int
	if err := db.QueryRowContext(ctx, QueryLogicalProcessors).Scan(&processors); err != nil {
		return nil, &QueryError{Query: QueryLogicalProcessors, Err: err}
	}

	logger.Debug("SQL Server versiyon bilgisi: %s (major %d), logical processors: %d", version.String, major, processors)

	return &Server{
		name:       name,
		version:    version.String,
		major:      major,
		processors: processors,
		db:         db,
	}, nil
}

// Name returns the server identifier used for reports.
func (s *Server) Name() string { return s.name }

// Version returns the raw product version string, e.g. "15.0.4153.1".
func (s *Server) Version() string { return s.version }

func (s *Server) MajorVersion() int { return s.major }

func (s *Server) LogicalProcessors() int { return s.processors }

// TempDBFiles reads the tempdb file catalog, split into data and log files.
func (s *Server) TempDBFiles(ctx context.Context) (TempDBFiles, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var files TempDBFiles
	rows, err := s.db.QueryContext(ctx, QueryTempDBFiles)
	if err != nil {
		return files, &QueryError{Query: QueryTempDBFiles, Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var typeDesc, physicalName string
		var maxSize int64
		var isPercentGrowth bool

		if err := rows.Scan(&typeDesc, &physicalName, &maxSize, &isPercentGrowth); err != nil {
			return TempDBFiles{}, &QueryError{Query: QueryTempDBFiles, Err: err}
		}

		entry := FileCatalogEntry{
			FileName:   physicalName,
			MaxSize:    maxSize,
			GrowthType: FixedSize,
		}
		if isPercentGrowth {
			entry.GrowthType = Percentage
		}

		switch strings.ToUpper(typeDesc) {
		case "ROWS":
			files.Data = append(files.Data, entry)
		case "LOG":
			files.Log = append(files.Log, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return TempDBFiles{}, &QueryError{Query: QueryTempDBFiles, Err: err}
	}

	logger.Debug("tempdb dosyaları okundu: %d data, %d log", len(files.Data), len(files.Log))
	return files, nil
}

// TraceStatus returns the globally enabled trace flags as reported by DBCC TRACESTATUS.
func (s *Server) TraceStatus(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, QueryTraceStatus)
	if err != nil {
		return nil, &QueryError{Query: QueryTraceStatus, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Query: QueryTraceStatus, Err: err}
	}
	if len(columns) == 0 {
		return nil, nil
	}

	var flags []string
	for rows.Next() {
		// Only the first column (TraceFlag) matters; the others are scanned and dropped.
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &QueryError{Query: QueryTraceStatus, Err: err}
		}
		flags = append(flags, traceFlagString(values[0]))
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Query: QueryTraceStatus, Err: err}
	}
	return flags, nil
}

// Close closes the underlying connection.
func (s *Server) Close() error {
	return s.db.Close()
}

func traceFlagString(v interface{}) string {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case []byte:
		return string(t)
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
