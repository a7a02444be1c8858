// Package sqlitevec stores prediction feature rows as float32 vectors and
// scheduled posts in SQLite.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"inspiro/internal/logging"
	"inspiro/internal/model"
	"inspiro/internal/predict"
)

// DB wraps a SQLite database used as a vector store.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// each pooled connection would get its own empty database
		d.SetMaxOpenConns(1)
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS predictions (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts INTEGER NOT NULL,
	  task TEXT NOT NULL,
	  caption TEXT NOT NULL,
	  vector BLOB NOT NULL,
	  features TEXT,
	  label TEXT NOT NULL,
	  score REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pred_task_ts ON predictions(task, ts);
	CREATE TABLE IF NOT EXISTS posts (
	  id TEXT PRIMARY KEY,
	  caption TEXT NOT NULL,
	  scheduled_dt TEXT NOT NULL,
	  created_at TEXT NOT NULL,
	  status TEXT NOT NULL,
	  posted_at TEXT,
	  post_id TEXT,
	  error TEXT,
	  seq INTEGER NOT NULL
	);
	`)
	return err
}

// LogPrediction stores one prediction row.
func (d *DB) LogPrediction(ctx context.Context, rec predict.Record) error {
	var fstr *string
	if rec.Features != nil {
		fb, err := json.Marshal(rec.Features)
		if err != nil {
			return err
		}
		fs := string(fb)
		fstr = &fs
	}
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO predictions(ts, task, caption, vector, features, label, score) VALUES(?,?,?,?,?,?,?)`,
		rec.At.Unix(), rec.Task, rec.Caption, encodeF32(toF32(rec.Row)), fstr, rec.Label, rec.Score)
	return err
}

// Prediction is a stored prediction row.
type Prediction struct {
	At       time.Time
	Task     string
	Caption  string
	Vector   []float32
	Features map[string]float64
	Label    string
	Score    float64
}

// LoadPredictions returns task's predictions within [start,end), oldest first.
func (d *DB) LoadPredictions(ctx context.Context, task string, start, end time.Time) ([]Prediction, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT ts, task, caption, vector, COALESCE(features, ''), label, score FROM predictions
		 WHERE task=? AND ts>=? AND ts<? ORDER BY ts, id`, task, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Prediction
	for rows.Next() {
		var p Prediction
		var ts int64
		var vb []byte
		var fs string
		if err := rows.Scan(&ts, &p.Task, &p.Caption, &vb, &fs, &p.Label, &p.Score); err != nil {
			return nil, err
		}
		p.At = time.Unix(ts, 0).UTC()
		p.Vector = decodeF32(vb)
		if fs != "" {
			if err := json.Unmarshal([]byte(fs), &p.Features); err != nil {
				return nil, fmt.Errorf("prediction features: %w", err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LabelCounts returns how often each label was predicted for task.
func (d *DB) LabelCounts(ctx context.Context, task string) (map[string]int, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT label, COUNT(*) FROM predictions WHERE task=? GROUP BY label`, task)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		out[label] = n
	}
	return out, rows.Err()
}

// Load returns the stored posts in insertion order. Rows with unparseable
// times are dropped with a warning.
func (d *DB) Load(ctx context.Context) ([]model.ScheduledPost, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, caption, scheduled_dt, created_at, status, COALESCE(posted_at,''), COALESCE(post_id,''), COALESCE(error,'')
		 FROM posts ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ScheduledPost{}
	for rows.Next() {
		var p model.ScheduledPost
		var sched, created, posted, status string
		if err := rows.Scan(&p.ID, &p.Caption, &sched, &created, &status, &posted, &p.ExternalID, &p.Error); err != nil {
			return nil, err
		}
		p.Status = model.PostStatus(status)
		err := parseTimes(&p, sched, created, posted)
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			logging.Warn("post_record_dropped", map[string]any{"id": p.ID, "error": err.Error()})
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Save replaces the stored posts with posts in one transaction.
func (d *DB) Save(ctx context.Context, posts []model.ScheduledPost) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO posts(id, caption, scheduled_dt, created_at, status, posted_at, post_id, error, seq) VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, p := range posts {
		var posted *string
		if p.PostedAt != nil {
			s := p.PostedAt.Format(time.RFC3339Nano)
			posted = &s
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Caption, p.ScheduledAt.Format(time.RFC3339Nano),
			p.CreatedAt.Format(time.RFC3339Nano), string(p.Status), posted, nullable(p.ExternalID), nullable(p.Error), i); err != nil {
			return fmt.Errorf("save post %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func parseTimes(p *model.ScheduledPost, sched, created, posted string) error {
	var err error
	if p.ScheduledAt, err = time.Parse(time.RFC3339Nano, sched); err != nil {
		return err
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return err
	}
	if posted != "" {
		t, err := time.Parse(time.RFC3339Nano, posted)
		if err != nil {
			return err
		}
		p.PostedAt = &t
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toF32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func encodeF32(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v[i]))
	}
	return b
}

func decodeF32(b []byte) []float32 {
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
