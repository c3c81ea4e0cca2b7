package tracing

import (
	"database/sql"
	"os"

	// Need to use SQLite connections.
	_ "github.com/glebarez/go-sqlite"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// SQLiteTraceWriter is a writer that writes trace data to a SQLite database.
type SQLiteTraceWriter struct {
	*sql.DB
	statement *sql.Stmt

	dbName           string
	tasksToWriteToDB []Task
	batchSize        int
	writeErr         error
}

// NewSQLiteTraceWriter creates a new SQLiteTraceWriter. The database is
// stored in path + ".sqlite3"; an empty path picks a unique name. Buffered
// tasks are flushed when the program exits through atexit.
func NewSQLiteTraceWriter(path string) *SQLiteTraceWriter {
	w := &SQLiteTraceWriter{
		dbName:    path,
		batchSize: 10000,
	}

	atexit.Register(func() { _ = w.Flush() })

	return w
}

// WithBatchSize sets how many tasks are buffered before they are written.
func (t *SQLiteTraceWriter) WithBatchSize(n int) *SQLiteTraceWriter {
	if n <= 0 {
		panic("batch size must be positive")
	}

	t.batchSize = n

	return t
}

// FileName returns the database file the writer uses.
func (t *SQLiteTraceWriter) FileName() string {
	return t.dbName + ".sqlite3"
}

// Init creates the database file and the trace table.
func (t *SQLiteTraceWriter) Init() error {
	if t.dbName == "" {
		t.dbName = "busim_trace_" + xid.New().String()
	}

	if err := t.createDatabase(); err != nil {
		return err
	}

	if err := t.createTable(); err != nil {
		return err
	}

	return t.prepareStatement()
}

func (t *SQLiteTraceWriter) createDatabase() error {
	filename := t.FileName()

	if _, err := os.Stat(filename); err == nil {
		return errors.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return errors.Wrapf(err, "open trace database %s", filename)
	}

	t.DB = db

	return nil
}

func (t *SQLiteTraceWriter) createTable() error {
	stmts := []string{
		`create table trace
		(
			id         varchar(200) not null,
			parent_id  varchar(200),
			kind       varchar(100),
			what       varchar(100),
			location   varchar(100),
			address    integer,
			start_time integer not null,
			end_time   integer default 0,
			error      text
		);`,
		`create index trace_id_index on trace (id);`,
		`create index trace_kind_index on trace (kind);`,
		`create index trace_location_index on trace (location);`,
		`create index trace_start_time_index on trace (start_time);`,
	}

	for _, s := range stmts {
		if _, err := t.Exec(s); err != nil {
			return errors.Wrap(err, "create trace table")
		}
	}

	return nil
}

func (t *SQLiteTraceWriter) prepareStatement() error {
	stmt, err := t.Prepare(`INSERT INTO trace VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare trace insert")
	}

	t.statement = stmt

	return nil
}

// Write buffers a task. The buffer is written when it reaches the batch
// size; a failure is reported by the next Flush.
func (t *SQLiteTraceWriter) Write(task Task) {
	t.tasksToWriteToDB = append(t.tasksToWriteToDB, task)
	if len(t.tasksToWriteToDB) >= t.batchSize {
		if err := t.Flush(); err != nil && t.writeErr == nil {
			t.writeErr = err
		}
	}
}

// Flush writes all the buffered tasks to the database in one transaction.
func (t *SQLiteTraceWriter) Flush() error {
	if t.writeErr != nil {
		err := t.writeErr
		t.writeErr = nil

		return err
	}

	if len(t.tasksToWriteToDB) == 0 {
		return nil
	}

	if t.DB == nil {
		return errors.New("sqlite trace writer is not initialized")
	}

	tx, err := t.Begin()
	if err != nil {
		return errors.Wrap(err, "begin trace transaction")
	}

	stmt := tx.Stmt(t.statement)
	for _, task := range t.tasksToWriteToDB {
		_, err := stmt.Exec(
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Where,
			task.Address,
			int64(task.StartTime),
			int64(task.EndTime),
			task.Error,
		)
		if err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "insert task %s", task.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit trace transaction")
	}

	t.tasksToWriteToDB = nil

	return nil
}
