package storage

import (
	"database/sql"
	"embed"
	"errors"
	"strings"
	"time"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
)

//go:embed schema.sql
var embeddedSchema embed.FS

var ErrNotFound = errors.New("not found")

// Store is the moderation journal: who sent what, who voted how, and when
// approved photos are due.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InitSchema() error {
	if _, err := s.db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return err
	}

	b, err := embeddedSchema.ReadFile("schema.sql")
	if err != nil {
		return err
	}

	schema := strings.TrimSpace(string(b))
	_, err = s.db.Exec(schema)
	return err
}

// ---------- Submissions ----------

func (s *Store) RecordSubmission(sub domain.Submission) error {
	_, err := s.db.Exec(`
INSERT INTO submissions(id, artifact_ref, submitter_id, username, chat_id, message_id, state, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`, sub.ID, sub.ArtifactRef, sub.Originator.UserID, sub.Originator.Username,
		sub.Originator.ChatID, sub.Originator.MessageID, string(sub.State), sub.CreatedAt.UTC())
	return err
}

func (s *Store) ResolveSubmission(id int64, state domain.State, at time.Time) error {
	res, err := s.db.Exec(`UPDATE submissions SET state = ?, resolved_at = ? WHERE id = ?`, string(state), at.UTC(), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// LastSubmissionID returns the highest id ever journaled, 0 for an empty journal.
func (s *Store) LastSubmissionID() (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(id) FROM submissions`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// ---------- Votes ----------

// RecordVote keeps the first vote of a reviewer; repeats are ignored.
func (s *Store) RecordVote(submissionID, reviewerID int64, d domain.Decision, at time.Time) error {
	_, err := s.db.Exec(`
INSERT INTO votes(submission_id, reviewer_id, decision, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(submission_id, reviewer_id) DO NOTHING
`, submissionID, reviewerID, string(d), at.UTC())
	return err
}

// ---------- Publications ----------

func (s *Store) RecordBooking(pub domain.ScheduledPublication) error {
	_, err := s.db.Exec(`
INSERT INTO publications(submission_id, scheduled_at, day_offset, slot_index, status, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(submission_id) DO UPDATE SET
    scheduled_at = excluded.scheduled_at,
    day_offset = excluded.day_offset,
    slot_index = excluded.slot_index,
    status = excluded.status,
    updated_at = excluded.updated_at
`, pub.SubmissionID, pub.ScheduledAt.UTC(), pub.DayOffset, pub.SlotIndex,
		string(domain.PublicationScheduled), time.Now().UTC())
	return err
}

// MarkPublication records the outcome of a publish attempt. A published
// photo also moves its submission to the published state.
func (s *Store) MarkPublication(submissionID int64, status domain.PublicationStatus, at time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE publications SET status = ?, updated_at = ? WHERE submission_id = ?`, string(status), at.UTC(), submissionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	if status == domain.PublicationPublished {
		if _, err := tx.Exec(`UPDATE submissions SET state = ? WHERE id = ?`, string(domain.StatePublished), submissionID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// PendingPublications lists bookings that have not fired yet, oldest first.
func (s *Store) PendingPublications() ([]domain.ScheduledPublication, error) {
	rows, err := s.db.Query(`
SELECT submission_id, scheduled_at, day_offset, slot_index
FROM publications
WHERE status = ?
ORDER BY scheduled_at, submission_id
`, string(domain.PublicationScheduled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pubs []domain.ScheduledPublication
	for rows.Next() {
		var p domain.ScheduledPublication
		if err := rows.Scan(&p.SubmissionID, &p.ScheduledAt, &p.DayOffset, &p.SlotIndex); err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pubs, nil
}

// ---------- Stats ----------

type Stats struct {
	Pending   int64
	Rejected  int64
	Scheduled int64
	Published int64
}

func (s *Store) Stats() (Stats, error) {
	rows, err := s.db.Query(`SELECT state, COUNT(1) FROM submissions GROUP BY state`)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return Stats{}, err
		}
		switch domain.State(state) {
		case domain.StatePending:
			st.Pending = n
		case domain.StateRejected:
			st.Rejected = n
		case domain.StateScheduled, domain.StateApproved:
			st.Scheduled += n
		case domain.StatePublished:
			st.Published = n
		}
	}
	return st, rows.Err()
}
