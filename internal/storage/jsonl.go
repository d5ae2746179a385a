package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devtooligan/singularity-v2/internal/events"
	"github.com/devtooligan/singularity-v2/internal/model"
)

// JsonlStorage appends records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// Path returns the output file.
func (s *JsonlStorage) Path() string { return s.path }

// PutEventBatch appends events in their record form.
func (s *JsonlStorage) PutEventBatch(_ context.Context, evs []model.PoolEvent) error {
	if len(evs) == 0 {
		return nil
	}
	records := make([]interface{}, 0, len(evs))
	for _, ev := range evs {
		record, err := ev.Record()
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", ev.ID, err)
		}
		records = append(records, record)
	}
	return s.appendLines(records)
}

// PutLogBatch appends encoded log records.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	records := make([]interface{}, 0, len(logs))
	for _, log := range logs {
		records = append(records, log)
	}
	return s.appendLines(records)
}

// PutDecodeErrors appends records of log lines that failed to decode.
func (s *JsonlStorage) PutDecodeErrors(errs []model.DecodeError) error {
	if len(errs) == 0 {
		return nil
	}
	records := make([]interface{}, 0, len(errs))
	for _, e := range errs {
		records = append(records, e)
	}
	return s.appendLines(records)
}

func (s *JsonlStorage) appendLines(records []interface{}) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// LogSink writes events as ABI-encoded log records.
type LogSink struct {
	out   *JsonlStorage
	codec *events.Codec
	now   func() time.Time
}

func NewLogSink(out *JsonlStorage, codec *events.Codec) *LogSink {
	return &LogSink{out: out, codec: codec, now: time.Now}
}

// PutEventBatch encodes and appends a batch.
func (s *LogSink) PutEventBatch(_ context.Context, evs []model.PoolEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ingestedAt := s.now().UTC().Format(time.RFC3339)
	logs := make([]model.LogRecord, 0, len(evs))
	for i, ev := range evs {
		log, err := s.codec.Encode(ev)
		if err != nil {
			return err
		}
		log.LogIndex = uint64(i)
		log.IngestedAt = ingestedAt
		logs = append(logs, log)
	}
	return s.out.PutLogBatch(logs)
}

// ReadLines streams a JSONL file, calling fn with each non-empty line and
// its 1-based line number.
func ReadLines(path string, fn func(line int, data []byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		if err := fn(line, data); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
