package store

import (
	"context"
	"database/sql"
	"errors"
)

// OpenSQLConn adapta un *sql.DB a una única conexión física.
//
// database/sql trae su propio pool; acá lo limitamos a una conexión y la
// retenemos con db.Conn, así el pool por tenant es el único que decide cuántas
// conexiones existen.
func OpenSQLConn(ctx context.Context, driver string, db *sql.DB) (Conn, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := c.PingContext(ctx); err != nil {
		_ = c.Close()
		_ = db.Close()
		return nil, err
	}
	return &sqlConn{driver: driver, db: db, conn: c}, nil
}

type sqlConn struct {
	driver string
	db     *sql.DB
	conn   *sql.Conn
}

func (c *sqlConn) Driver() string { return c.driver }

func (c *sqlConn) Ping(ctx context.Context) error { return c.conn.PingContext(ctx) }

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// algunos drivers no lo soportan; no es un error de ejecución
		return 0, nil
	}
	return n, nil
}

func (c *sqlConn) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (c *sqlConn) Close() error {
	return errors.Join(c.conn.Close(), c.db.Close())
}

// SQL expone la conexión database/sql subyacente.
func (c *sqlConn) SQL() *sql.Conn { return c.conn }

type sqlRows struct {
	rows     *sql.Rows
	closeErr error
}

func (r *sqlRows) Next() bool             { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

func (r *sqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return err
	}
	return r.closeErr
}

func (r *sqlRows) Close() { r.closeErr = r.rows.Close() }
