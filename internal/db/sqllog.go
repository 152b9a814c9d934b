package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// statementLogger opens sqlite3 connections whose prepared statements log
// each exec and query at debug level.
type statementLogger struct {
	dsn    string
	logger *slog.Logger
}

func newStatementLogger(dsn string, logger *slog.Logger) driver.Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &statementLogger{dsn: dsn, logger: logger}
}

func (c *statementLogger) Connect(context.Context) (driver.Conn, error) {
	conn, err := (&sqlite3.SQLiteDriver{}).Open(c.dsn)
	if err != nil {
		return nil, err
	}
	return &loggedConn{Conn: conn, logger: c.logger}, nil
}

func (c *statementLogger) Driver() driver.Driver { return noOpenDriver{} }

type noOpenDriver struct{}

func (noOpenDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("sqlite3 statement logger: open through db.Open")
}

type loggedConn struct {
	driver.Conn
	logger *slog.Logger
}

func (c *loggedConn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *loggedConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var (
		stmt driver.Stmt
		err  error
	)
	if p, ok := c.Conn.(driver.ConnPrepareContext); ok {
		stmt, err = p.PrepareContext(ctx, query)
	} else {
		stmt, err = c.Conn.Prepare(query)
	}
	if err != nil {
		return nil, err
	}
	return &loggedStmt{Stmt: stmt, query: query, logger: c.logger}, nil
}

func (c *loggedConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if b, ok := c.Conn.(driver.ConnBeginTx); ok {
		return b.BeginTx(ctx, opts)
	}
	//nolint:staticcheck // SA1019 fallback for conns without BeginTx
	return c.Conn.Begin()
}

type loggedStmt struct {
	driver.Stmt
	query  string
	logger *slog.Logger
}

func (s *loggedStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	s.log(ctx, "exec", args)
	if e, ok := s.Stmt.(driver.StmtExecContext); ok {
		return e.ExecContext(ctx, args)
	}
	//nolint:staticcheck // SA1019 fallback for stmts without ExecContext
	return s.Stmt.Exec(plainValues(args))
}

func (s *loggedStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	s.log(ctx, "query", args)
	if q, ok := s.Stmt.(driver.StmtQueryContext); ok {
		return q.QueryContext(ctx, args)
	}
	//nolint:staticcheck // SA1019 fallback for stmts without QueryContext
	return s.Stmt.Query(plainValues(args))
}

func (s *loggedStmt) log(ctx context.Context, op string, args []driver.NamedValue) {
	if !s.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	shown := make([]string, len(args))
	for i, a := range args {
		v := "NULL"
		switch t := a.Value.(type) {
		case nil:
		case []byte:
			v = string(t)
		default:
			v = fmt.Sprint(t)
		}
		if a.Name != "" {
			v = a.Name + "=" + v
		}
		shown[i] = v
	}
	s.logger.DebugContext(ctx, "sql", "op", op, "sql", s.query, "args", shown)
}

func plainValues(args []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(args))
	for i := range args {
		out[i] = args[i].Value
	}
	return out
}
