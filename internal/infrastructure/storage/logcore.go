package storage

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap/zapcore"
)

const logWriteTimeout = 2 * time.Second

// logCore is a zapcore.Core that appends records to the logs table.
// Write failures are dropped so logging never fails the caller.
type logCore struct {
	zapcore.LevelEnabler
	store  *Store
	name   string
	fields []zapcore.Field
}

// LogCore returns a core persisting records at or above level under the given logger name
func (s *Store) LogCore(name string, level zapcore.LevelEnabler) zapcore.Core {
	return &logCore{LevelEnabler: level, store: s, name: name}
}

func (c *logCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *logCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *logCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	encoded, err := json.Marshal(enc.Fields)
	if err != nil {
		encoded = []byte("{}")
	}

	name := c.name
	if entry.LoggerName != "" {
		name = entry.LoggerName
	}

	ctx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
	defer cancel()

	_, _ = c.store.exec(ctx, c.store.db,
		`INSERT INTO logs (logger, level, message, fields, created_at) VALUES (?, ?, ?, ?, ?)`,
		name, entry.Level.String(), entry.Message, string(encoded), entry.Time.UTC().Format(time.RFC3339Nano))
	return nil
}

func (c *logCore) Sync() error {
	return nil
}

// LogRecord is one persisted log row
type LogRecord struct {
	Logger    string
	Level     string
	Message   string
	Fields    map[string]any
	CreatedAt time.Time
}

// RecentLogs returns up to limit persisted records, newest first
func (s *Store) RecentLogs(ctx context.Context, limit int) ([]LogRecord, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT logger, level, message, fields, created_at FROM logs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, wrapErr("recent logs", err)
	}
	defer rows.Close()

	var records []LogRecord
	for rows.Next() {
		var (
			r       LogRecord
			fields  string
			created string
		)
		if err := rows.Scan(&r.Logger, &r.Level, &r.Message, &fields, &created); err != nil {
			return nil, wrapErr("scan log", err)
		}
		_ = json.Unmarshal([]byte(fields), &r.Fields)
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		records = append(records, r)
	}
	return records, wrapErr("recent logs", rows.Err())
}
