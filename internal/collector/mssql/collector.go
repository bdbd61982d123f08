package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // MSSQL driver

	"github.com/senbaris/tempdbcheck/internal/config"
	"github.com/senbaris/tempdbcheck/internal/logger"
)

const pingTimeout = 5 * time.Second

// MSSQLCollector hedef SQL Server'a bağlantı kurmaktan sorumlu yapı
type MSSQLCollector struct {
	cfg *config.Config
}

// NewMSSQLCollector yeni bir MSSQLCollector oluşturur
func NewMSSQLCollector(cfg *config.Config) *MSSQLCollector {
	return &MSSQLCollector{
		cfg: cfg,
	}
}

// ServerName returns the target in SQL Server notation: host, host\instance or host,port.
func (c *MSSQLCollector) ServerName() string {
	host := c.cfg.MSSQL.Host
	if host == "" {
		host = "localhost"
	}
	if c.cfg.MSSQL.Instance != "" {
		name := host + `\` + c.cfg.MSSQL.Instance
		if hasExplicitPort(c.cfg.MSSQL.Port) {
			name += "," + c.cfg.MSSQL.Port
		}
		return name
	}
	if hasExplicitPort(c.cfg.MSSQL.Port) {
		return host + "," + c.cfg.MSSQL.Port
	}
	return host
}

// DSN builds a sqlserver:// connection URL from the config. Credentials are
// only included for SQL authentication; otherwise integrated auth is used.
func (c *MSSQLCollector) DSN() string {
	m := c.cfg.MSSQL

	host := m.Host
	if host == "" {
		host = "localhost"
	}

	u := &url.URL{Scheme: "sqlserver"}
	if m.Instance != "" {
		// Named instance; without an explicit port it is resolved through SQL Browser
		u.Host = host
		if hasExplicitPort(m.Port) {
			u.Host = host + ":" + m.Port
		}
		u.Path = m.Instance
	} else {
		port := m.Port
		if port == "" {
			port = "1433"
		}
		u.Host = host + ":" + port
	}

	if m.User != "" && !m.WindowsAuth {
		u.User = url.UserPassword(m.User, m.Pass)
	}

	q := url.Values{}
	database := m.Database
	if database == "" {
		database = "master"
	}
	q.Set("database", database)
	q.Set("app name", "tempdbcheck")
	if m.TrustCert {
		q.Set("TrustServerCertificate", "true")
	}
	if m.Encrypt != "" {
		q.Set("encrypt", m.Encrypt)
	}
	timeout := m.ConnectTimeoutSec
	if timeout <= 0 {
		timeout = 10
	}
	q.Set("connection timeout", strconv.Itoa(timeout))
	u.RawQuery = q.Encode()

	return u.String()
}

// Connect opens a connection, pings it and loads the server metadata the
// tempdb checks need. The caller owns the returned Server and must Close it.
func (c *MSSQLCollector) Connect(ctx context.Context) (*Server, error) {
	name := c.ServerName()
	logger.Debug("Connecting to %s", name)

	db, err := sql.Open("sqlserver", c.DSN())
	if err != nil {
		return nil, &ConnectionError{Server: name, Err: err}
	}
	// Tek bir salt okunur kontrol için tek bağlantı yeterli
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &ConnectionError{Server: name, Err: fmt.Errorf("MSSQL bağlantı testi başarısız: %w", err)}
	}

	srv, err := NewServer(ctx, name, db)
	if err != nil {
		db.Close()
		return nil, &ConnectionError{Server: name, Err: err}
	}

	logger.Info("Connected to %s (version %s, %d logical processors)", name, srv.Version(), srv.LogicalProcessors())
	return srv, nil
}

// hasExplicitPort reports whether port differs from the default 1433.
func hasExplicitPort(port string) bool {
	return port != "" && port != "1433"
}

// ParseServerName splits "host\instance,port", "host\instance", "host,port" or "host" into its parts.
func ParseServerName(name string) (host, instance, port string) {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "tcp:")

	if i := strings.Index(name, `\`); i >= 0 {
		host, instance = name[:i], name[i+1:]
		// host\instance,port
		if j := strings.LastIndex(instance, ","); j >= 0 {
			return host, strings.TrimSpace(instance[:j]), strings.TrimSpace(instance[j+1:])
		}
		return host, instance, ""
	}
	if i := strings.LastIndex(name, ","); i >= 0 {
		return strings.TrimSpace(name[:i]), "", strings.TrimSpace(name[i+1:])
	}
	return name, "", ""
}

// ParseMajorVersion extracts the major number from a product version like "13.0.5026.0".
func ParseMajorVersion(productVersion string) (int, error) {
	v := strings.TrimSpace(productVersion)
	head, _, _ := strings.Cut(v, ".")
	major, err := strconv.Atoi(head)
	if err != nil || major <= 0 {
		return 0, fmt.Errorf("geçersiz SQL Server versiyonu: %q", productVersion)
	}
	return major, nil
}
