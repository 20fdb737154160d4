package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists planning decisions in a SQLite database.
type SQLiteStore struct {
	db         *sql.DB
	maxRecords int
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string, maxRecords int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS decisions (
        id TEXT PRIMARY KEY,
        ts INTEGER NOT NULL,
        target_soc REAL,
        charge_power_w INTEGER,
        phase TEXT,
        reasoning TEXT,
        context TEXT
    );
    CREATE INDEX IF NOT EXISTS decisions_ts ON decisions(ts);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &SQLiteStore{db: db, maxRecords: maxRecords}, nil
}

// Append inserts the record and prunes entries beyond the retention cap.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	ctxJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO decisions
        (id, ts, target_soc, charge_power_w, phase, reasoning, context)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixMilli(), rec.TargetSoC, rec.ChargePowerW,
		rec.Phase, rec.Reasoning, string(ctxJSON))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM decisions WHERE id NOT IN (
        SELECT id FROM decisions ORDER BY ts DESC LIMIT ?)`, s.maxRecords)
	return err
}

// Query returns decisions in chronological order matching the query.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, ts, target_soc, charge_power_w,
        phase, reasoning, context FROM decisions ORDER BY ts ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		var rec Record
		var ts int64
		var ctxJSON string
		if err := rows.Scan(&rec.ID, &ts, &rec.TargetSoC, &rec.ChargePowerW,
			&rec.Phase, &rec.Reasoning, &ctxJSON); err != nil {
			return nil, err
		}
		rec.Timestamp = time.UnixMilli(ts).UTC()
		if ctxJSON != "" {
			if err := json.Unmarshal([]byte(ctxJSON), &rec.Context); err != nil {
				rec.Context = nil
			}
		}
		if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && rec.Timestamp.After(q.End) {
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
