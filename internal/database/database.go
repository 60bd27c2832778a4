// Package database opens the connections to the record store.
//
// It handles:
//   - the SQLite database file inside the data directory
//   - a pgx connection pool for PostgreSQL, including query logging through logrus
//   - the database/sql connection used for running migrations on PostgreSQL
//   - IAM auth tokens (Aurora DSQL) instead of a static password
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dsql/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // database/sql driver for the migration connection
	_ "github.com/mattn/go-sqlite3" // Just needed for the sqlite driver
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/stagehand/internal/log"
	"github.com/derWhity/stagehand/internal/models"
)

const (
	// SQLiteFile is the name of the database file inside the data directory
	SQLiteFile = "stagehand.db"
	// PingTimeout is the time to wait for the database to answer on startup
	PingTimeout = 10 * time.Second
)

// OpenSQLite opens the SQLite database inside the given data directory
func OpenSQLite(dataDir string) (*sqlx.DB, error) {
	dsn := path.Join(dataDir, SQLiteFile) + "?_foreign_keys=on"
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "OpenSQLite: Failed to open database")
	}
	// SQLite allows only one writer at a time
	db.SetMaxOpenConns(1)
	return db, nil
}

// Postgres holds the connections to a PostgreSQL server
type Postgres struct {
	// Pool is used by the repositories
	Pool *pgxpool.Pool
	// DB is a database/sql connection used for migrations
	DB     *sqlx.DB
	logger *logrus.Entry
}

// Close closes all connections to the server
func (p *Postgres) Close() {
	p.logger.Info("Closing database connections")
	if p.DB != nil {
		p.DB.Close()
	}
	p.Pool.Close()
}

// tokenSource returns the password to use for a new connection
type tokenSource func(ctx context.Context) (string, error)

// iamTokenSource generates Aurora DSQL auth tokens using the default AWS credential chain
func iamTokenSource(ctx context.Context, cfg models.DatabaseConfig) (tokenSource, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "iamTokenSource: Failed to load AWS config")
	}
	endpoint := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	return func(ctx context.Context) (string, error) {
		return auth.GenerateDbConnectAuthToken(ctx, endpoint, awsCfg.Region, awsCfg.Credentials)
	}, nil
}

// DSN builds the postgres:// connection URL for the given configuration and password
func DSN(cfg models.DatabaseConfig, password string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Name,
	}
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// OpenPostgres creates the connection pool and the migration connection for the configured PostgreSQL server
func OpenPostgres(ctx context.Context, cfg models.DatabaseConfig, logger *logrus.Entry) (*Postgres, error) {
	logger = logger.WithField(log.FldDriver, models.DriverPostgres)
	password := cfg.Password
	var tokens tokenSource
	if cfg.IAMAuth {
		var err error
		if tokens, err = iamTokenSource(ctx, cfg); err != nil {
			return nil, err
		}
		if password, err = tokens(ctx); err != nil {
			return nil, errors.Wrap(err, "OpenPostgres: Failed to generate IAM auth token")
		}
		logger.Info("Using IAM auth token for the database connection")
	}
	dsn := DSN(cfg, password)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "OpenPostgres: Failed to parse connection string")
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   NewTraceLogger(logger),
		LogLevel: TraceLogLevel(logger.Logger.GetLevel()),
	}
	if tokens != nil {
		// IAM tokens expire - every new connection gets a fresh one
		poolConfig.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
			token, err := tokens(ctx)
			if err != nil {
				return err
			}
			cc.Password = token
			return nil
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "OpenPostgres: Failed to create connection pool")
	}
	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "OpenPostgres: Failed to ping database")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "OpenPostgres: Failed to open migration connection")
	}
	db.SetMaxOpenConns(1)
	logger.Info("Connected to the database")
	return &Postgres{Pool: pool, DB: db, logger: logger}, nil
}

// traceLogger writes the pgx query log through logrus
type traceLogger struct {
	logger *logrus.Entry
}

// NewTraceLogger creates a pgx tracelog.Logger writing to the given log entry
func NewTraceLogger(logger *logrus.Entry) tracelog.Logger {
	return &traceLogger{logger: logger}
}

// Log implements tracelog.Logger
func (l *traceLogger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	entry := l.logger.WithFields(logrus.Fields(data))
	switch level {
	case tracelog.LogLevelTrace:
		entry.Trace(msg)
	case tracelog.LogLevelDebug, tracelog.LogLevelInfo:
		entry.Debug(msg)
	case tracelog.LogLevelWarn:
		entry.Warn(msg)
	case tracelog.LogLevelError:
		entry.Error(msg)
	default:
		entry.WithField("pgxLevel", fmt.Sprint(level)).Error(msg)
	}
}

// TraceLogLevel converts a logrus level into the matching pgx log level.
// pgx logs queries on info level - these end up as debug entries.
func TraceLogLevel(level logrus.Level) tracelog.LogLevel {
	switch {
	case level >= logrus.TraceLevel:
		return tracelog.LogLevelTrace
	case level >= logrus.DebugLevel:
		return tracelog.LogLevelInfo
	case level >= logrus.WarnLevel:
		return tracelog.LogLevelWarn
	case level >= logrus.ErrorLevel:
		return tracelog.LogLevelError
	default:
		return tracelog.LogLevelNone
	}
}
