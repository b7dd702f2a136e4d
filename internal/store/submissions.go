package store

import (
	"context"
	"fmt"
	"time"
)

// Submission is a stored contact form.
type Submission struct {
	ID        int64     `json:"id"`
	Topic     string    `json:"topic"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	HashedIP  string    `json:"-"`
	Notified  bool      `json:"notified"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveSubmission inserts s and returns its id.
func (d *DB) SaveSubmission(ctx context.Context, s Submission) (int64, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	res, err := d.ExecContext(ctx, `
		INSERT INTO submissions (topic, name, email, message, hashed_ip, notified, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.Topic, s.Name, s.Email, s.Message, s.HashedIP, s.Notified, formatTime(s.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("saving submission: %w", err)
	}
	return res.LastInsertId()
}

// MarkNotified records that the owner was mailed about submission id.
func (d *DB) MarkNotified(ctx context.Context, id int64) error {
	if _, err := d.ExecContext(ctx, `UPDATE submissions SET notified = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("marking submission %d notified: %w", id, err)
	}
	return nil
}

// ListSubmissions returns the newest submissions first. limit <= 0 means all.
func (d *DB) ListSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.QueryContext(ctx, `
		SELECT id, topic, name, email, message, hashed_ip, notified, created_at
		FROM submissions
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var s Submission
		var ts string
		if err := rows.Scan(&s.ID, &s.Topic, &s.Name, &s.Email, &s.Message, &s.HashedIP, &s.Notified, &ts); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		if s.CreatedAt, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parsing submission timestamp: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSubmission removes one submission and reports whether it existed.
func (d *DB) DeleteSubmission(ctx context.Context, id int64) (bool, error) {
	res, err := d.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting submission %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
