package tracing

import (
	"database/sql"
	"fmt"
	"os"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

// SQLiteTraceWriter is a writer that writes trace data to a SQLite database.
type SQLiteTraceWriter struct {
	*sql.DB

	taskStatement *sql.Stmt
	stepStatement *sql.Stmt

	path         string
	tasksToWrite []Task
	batchSize    int
}

// NewSQLiteTraceWriter creates a new SQLiteTraceWriter. The database is
// stored at path + ".sqlite3"; an empty path picks a unique name.
func NewSQLiteTraceWriter(path string) *SQLiteTraceWriter {
	w := &SQLiteTraceWriter{
		path:      path,
		batchSize: 10000,
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// Path returns the file the trace is written to. It is only known after
// Init.
func (t *SQLiteTraceWriter) Path() string {
	return t.path + ".sqlite3"
}

// Init creates the database and its tables.
func (t *SQLiteTraceWriter) Init() {
	if t.path == "" {
		t.path = "busvip_trace_" + xid.New().String()
	}

	t.createDatabase()
	t.createTables()
	t.prepareStatements()
}

func (t *SQLiteTraceWriter) createDatabase() {
	filename := t.Path()

	_, err := os.Stat(filename)
	if err == nil {
		log.Panicf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		log.WithError(err).Panic("cannot open trace database")
	}

	t.DB = db

	log.WithField("file", filename).Info("collecting trace")
}

func (t *SQLiteTraceWriter) createTables() {
	t.mustExecute(`
		create table trace
		(
			task_id    varchar(200) not null,
			parent_id  varchar(200),
			kind       varchar(100),
			what       varchar(100),
			location   varchar(100),
			start_time float not null,
			end_time   float not null
		);
	`)

	t.mustExecute(`create index trace_task_id_index on trace (task_id);`)
	t.mustExecute(`create index trace_kind_index on trace (kind);`)
	t.mustExecute(`create index trace_location_index on trace (location);`)
	t.mustExecute(`create index trace_start_time_index on trace (start_time);`)

	t.mustExecute(`
		create table trace_step
		(
			task_id varchar(200) not null,
			time    float not null,
			what    varchar(100) not null
		);
	`)

	t.mustExecute(`create index trace_step_task_id_index on trace_step (task_id);`)
}

func (t *SQLiteTraceWriter) prepareStatements() {
	var err error

	t.taskStatement, err = t.Prepare(
		`insert into trace values (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.WithError(err).Panic("cannot prepare statement")
	}

	t.stepStatement, err = t.Prepare(
		`insert into trace_step values (?, ?, ?)`)
	if err != nil {
		log.WithError(err).Panic("cannot prepare statement")
	}
}

// Write buffers a task. The buffer is flushed when it is full.
func (t *SQLiteTraceWriter) Write(task Task) {
	t.tasksToWrite = append(t.tasksToWrite, task)
	if len(t.tasksToWrite) >= t.batchSize {
		t.Flush()
	}
}

// Flush writes all the buffered tasks to the database.
func (t *SQLiteTraceWriter) Flush() {
	if len(t.tasksToWrite) == 0 || t.DB == nil {
		return
	}

	t.mustExecute("BEGIN TRANSACTION")
	defer t.mustExecute("COMMIT TRANSACTION")

	for _, task := range t.tasksToWrite {
		_, err := t.taskStatement.Exec(
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Location,
			float64(task.StartTime),
			float64(task.EndTime),
		)
		if err != nil {
			log.WithError(err).WithField("task", task.ID).
				Panic("cannot write task")
		}

		for _, step := range task.Steps {
			_, err := t.stepStatement.Exec(task.ID, float64(step.Time), step.What)
			if err != nil {
				log.WithError(err).WithField("task", task.ID).
					Panic("cannot write task step")
			}
		}
	}

	t.tasksToWrite = nil
}

// Close flushes the buffered tasks and closes the database.
func (t *SQLiteTraceWriter) Close() error {
	if t.DB == nil {
		return nil
	}

	t.Flush()

	err := t.DB.Close()
	t.DB = nil

	return err
}

func (t *SQLiteTraceWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		panic(fmt.Errorf("failed to execute %q: %w", query, err))
	}

	return res
}
