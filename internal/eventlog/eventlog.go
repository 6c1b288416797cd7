// Package eventlog implements the append-only JSONL sinks described in
// spec §6/§9: one record per line, UTF-8, newline-terminated, every record
// carrying a schema_version field. Each sink has a single writer per process;
// concurrent readers only ever see complete lines.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// SchemaVersion is embedded in every event record written through this package.
const SchemaVersion = 1

// Sink appends JSON records to a single file.
type Sink struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// Open opens (creating if necessary) the append sink at path.
func Open(path string) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return &Sink{path: path, file: f}, nil
}

// Append writes one record as a JSON line. record must be a struct or map;
// a schema_version field is injected if the caller hasn't already embedded
// one via embedding Envelope.
func (s *Sink) Append(record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record for %s: %w", s.path, err)
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) == nil {
		if _, ok := fields["schema_version"]; !ok {
			fields["schema_version"] = json.RawMessage(fmt.Sprint(SchemaVersion))
			if data, err = json.Marshal(fields); err != nil {
				return fmt.Errorf("marshal record for %s: %w", s.path, err)
			}
		}
	}
	data = append(data, '\n')

	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("append to %s: %w", s.path, err)
	}
	return nil
}

// Close closes the underlying file handle.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Close(); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("eventlog: close failed")
		return err
	}
	return nil
}

// Envelope is embedded by every concrete event type in this module so that
// schema_version travels with the record on the wire.
type Envelope struct {
	SchemaVersion int `json:"schema_version"`
}

// NewEnvelope returns the current schema envelope.
func NewEnvelope() Envelope {
	return Envelope{SchemaVersion: SchemaVersion}
}
