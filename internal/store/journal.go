package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"meetcal/internal/lifecycle"
	"meetcal/internal/model"
)

// stampLayout keeps every stored timestamp the same width so TEXT ordering
// matches time ordering. Values are always written in UTC.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatStamp(t time.Time) string { return t.UTC().Format(stampLayout) }

// Journal is a SQLite log of applied transitions and an outbox of the
// obligations they produced. Feeds stay the source of which meetings exist;
// the journal carries the latest local state of each one across reloads.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate journal: %w", err)
	}
	return j, nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transitions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		meeting_id  TEXT NOT NULL,
		transition  TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status   TEXT NOT NULL,
		meeting     TEXT NOT NULL,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transitions_meeting ON transitions(meeting_id, id);

	CREATE TABLE IF NOT EXISTS obligations (
		id           TEXT PRIMARY KEY,
		kind         TEXT NOT NULL,
		meeting_id   TEXT NOT NULL,
		participants TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		done_at      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_obligations_pending ON obligations(done_at, created_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record stores a transition result and queues its obligations atomically.
func (j *Journal) Record(ctx context.Context, res lifecycle.Result) error {
	meeting, err := json.Marshal(res.Meeting)
	if err != nil {
		return err
	}
	now := formatStamp(time.Now())

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transitions (meeting_id, transition, from_status, to_status, meeting, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.Meeting.ID, string(res.Transition), string(res.Previous), string(res.Meeting.Status), string(meeting), now,
	); err != nil {
		return fmt.Errorf("store: record transition: %w", err)
	}

	for _, ob := range res.Obligations {
		participants, err := json.Marshal(ob.Participants)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO obligations (id, kind, meeting_id, participants, created_at) VALUES (?, ?, ?, ?, ?)`,
			ob.ID, string(ob.Kind), ob.MeetingID, string(participants), formatStamp(ob.CreatedAt),
		); err != nil {
			return fmt.Errorf("store: queue obligation: %w", err)
		}
	}
	return tx.Commit()
}

// Overlay replaces every meeting that has journaled transitions with its
// latest recorded state. Journal entries for meetings absent from meetings
// are ignored. The input slice is not modified.
func (j *Journal) Overlay(ctx context.Context, meetings []model.Meeting) ([]model.Meeting, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT meeting_id, meeting FROM transitions
		 WHERE id IN (SELECT MAX(id) FROM transitions GROUP BY meeting_id)`)
	if err != nil {
		return nil, fmt.Errorf("store: query journal: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]model.Meeting)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var m model.Meeting
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("store: journal entry for %q: %w", id, err)
		}
		latest[id] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Meeting, 0, len(meetings))
	for _, m := range meetings {
		if jm, ok := latest[m.ID]; ok {
			m = jm
		}
		out = append(out, m.Clone())
	}
	return out, nil
}

// PendingObligations returns obligations not yet marked done, oldest first.
func (j *Journal) PendingObligations(ctx context.Context) ([]lifecycle.Obligation, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, meeting_id, participants, created_at FROM obligations
		 WHERE done_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("store: query obligations: %w", err)
	}
	defer rows.Close()

	var out []lifecycle.Obligation
	for rows.Next() {
		var (
			ob                    lifecycle.Obligation
			kind, parts, rawStamp string
		)
		if err := rows.Scan(&ob.ID, &kind, &ob.MeetingID, &parts, &rawStamp); err != nil {
			return nil, err
		}
		ob.Kind = lifecycle.ObligationKind(kind)
		if err := json.Unmarshal([]byte(parts), &ob.Participants); err != nil {
			return nil, err
		}
		if ob.CreatedAt, err = time.Parse(stampLayout, rawStamp); err != nil {
			return nil, err
		}
		out = append(out, ob)
	}
	return out, rows.Err()
}

// ErrObligationNotFound is returned by MarkDone for unknown or finished IDs.
var ErrObligationNotFound = errors.New("store: obligation not found or already done")

// MarkDone marks an obligation as carried out.
func (j *Journal) MarkDone(ctx context.Context, id string) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE obligations SET done_at = ? WHERE id = ? AND done_at IS NULL`,
		formatStamp(time.Now()), strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("store: mark obligation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrObligationNotFound, id)
	}
	return nil
}
