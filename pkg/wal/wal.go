// Package wal is the append-only transaction state log coordinator and
// replicas replay on recovery. Records are CSV rows, fsynced one at a time
// through a single writer goroutine.
package wal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"txmesh/pkg/common"
)

type Entry struct {
	TxID  string
	State common.TxState
	Op    common.Operation
	Key   string
}

type request struct {
	record []string
	done   chan error
}

type Log struct {
	path   string
	file   *os.File
	writer *csv.Writer
	reqs   chan request
	closed chan struct{}
}

func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	l := &Log{
		path:   path,
		file:   file,
		writer: csv.NewWriter(file),
		reqs:   make(chan request),
		closed: make(chan struct{}),
	}
	go l.writeLoop()
	return l, nil
}

func (l *Log) writeLoop() {
	defer close(l.closed)
	for req := range l.reqs {
		err := l.writer.Write(req.record)
		if err == nil {
			l.writer.Flush()
			err = l.writer.Error()
		}
		if err == nil {
			err = l.file.Sync()
		}
		req.done <- err
	}
}

// Append records a full state transition. It returns after the record is
// flushed and fsynced.
func (l *Log) Append(txID string, state common.TxState, op common.Operation, key string) error {
	done := make(chan error)
	l.reqs <- request{
		record: []string{txID, state.String(), op.String(), key},
		done:   done,
	}
	return <-done
}

// AppendState records a state transition with no operation payload.
func (l *Log) AppendState(txID string, state common.TxState) error {
	return l.Append(txID, state, common.NoOp, "")
}

// Read replays every entry in the log. A missing file reads as empty.
func (l *Log) Read() ([]Entry, error) {
	file, err := os.OpenFile(l.path, os.O_RDONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", l.path, err)
	}

	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		if len(record) != 4 {
			return nil, fmt.Errorf("replay %s: malformed record %v", l.path, record)
		}
		entries = append(entries, Entry{
			TxID:  record[0],
			State: common.ParseTxState(record[1]),
			Op:    common.ParseOperation(record[2]),
			Key:   record[3],
		})
	}
	return entries, nil
}

func (l *Log) Close() error {
	close(l.reqs)
	<-l.closed
	return l.file.Close()
}
