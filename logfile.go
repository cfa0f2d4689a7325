package heapdb

import (
	"bytes"
	"encoding/binary"
	"os"
	"sync"

	"github.com/natefinch/atomic"
)

/* LogFile is the write-ahead undo/redo contract BufferPool depends on
(§4.G). The teacher's BufferPool never wrote a log at all: being FORCE (a
committing transaction's dirty pages are flushed before the lock is
released), it never needed undo records to survive a crash. This kernel
keeps FORCE but still writes a log, because NO-STEAL alone doesn't cover
the case spec.md calls out: a page evicted clean mid-transaction still
needs its before-image recorded somewhere durable before the dirtying
transaction can be said to have gotten that far, in case the process dies
before commit. There's no analog for this in the teacher's code; the log
record format below is grounded on what heapPage already tracks
(getBeforeImage/refreshBeforeImage) rather than invented. */

// LogRecord is one undo/redo entry: the before-image of a page a
// transaction has dirtied in memory, tagged with the transaction and page it
// belongs to.
type LogRecord struct {
	Tid   TransactionID
	Page  PageID
	Image []byte
}

// LogFile is the durability boundary between BufferPool and disk (§4.G).
// LogWrite appends a record to the in-memory tail; Force makes that tail
// durable. BufferPool calls LogWrite when it records a page as dirtied by a
// transaction and Force before flushing it, so the undo image always
// reaches stable storage before the page it describes does (write-ahead).
type LogFile interface {
	LogWrite(rec LogRecord) error
	Force() error
}

// FileLogFile is a LogFile backed by a single file, rewritten wholesale on
// every Force via github.com/natefinch/atomic: a log's tail segment is
// always replaced in full rather than patched in place, which is exactly
// what atomic.WriteFile is for (unlike the heap file's random-access pages,
// where an atomic whole-file replace would be wasteful).
type FileLogFile struct {
	mu      sync.Mutex
	path    string
	pending []LogRecord
}

// NewFileLogFile opens (or prepares to create) a log file at path.
func NewFileLogFile(path string) *FileLogFile {
	return &FileLogFile{path: path}
}

// LogWrite appends rec to the in-memory tail. It is not durable until the
// next Force.
func (l *FileLogFile) LogWrite(rec LogRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, rec)
	return nil
}

// Force serializes the pending tail and replaces the log file atomically,
// then clears the tail. A crash during Force leaves either the old log file
// or the new one on disk, never a half-written one.
func (l *FileLogFile) Force() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil
	}

	buf := new(bytes.Buffer)
	for _, rec := range l.pending {
		if err := encodeLogRecord(buf, rec); err != nil {
			return wrapErr(IOError, "encoding log record", err)
		}
	}

	existing, err := os.ReadFile(l.path)
	if err != nil && !os.IsNotExist(err) {
		return wrapErr(IOError, "reading existing log", err)
	}
	full := append(existing, buf.Bytes()...)

	if err := atomic.WriteFile(l.path, bytes.NewReader(full)); err != nil {
		return wrapErr(IOError, "forcing log to disk", err)
	}
	l.pending = l.pending[:0]
	return nil
}

func encodeLogRecord(buf *bytes.Buffer, rec LogRecord) error {
	tidBytes := [16]byte(rec.Tid)
	if _, err := buf.Write(tidBytes[:]); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, int64(rec.Page.TableID)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, int64(rec.Page.PageNo)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, int64(len(rec.Image))); err != nil {
		return err
	}
	if _, err := buf.Write(rec.Image); err != nil {
		return err
	}
	return nil
}

// nullLogFile discards every record; used where a caller wants the
// BufferPool's log-then-write ordering exercised without a real file on
// disk (e.g. tests that only care about NO-STEAL/2PL behavior).
type nullLogFile struct{}

func (nullLogFile) LogWrite(LogRecord) error { return nil }
func (nullLogFile) Force() error             { return nil }

var _ LogFile = (*FileLogFile)(nil)
var _ LogFile = nullLogFile{}
