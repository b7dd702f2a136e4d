package store

import (
	"context"
	"fmt"
	"time"
)

// Visit is one tracked page view. The client address is only ever stored
// hashed.
type Visit struct {
	ID        int64     `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordVisit stores one page view.
func (d *DB) RecordVisit(ctx context.Context, v Visit) error {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now()
	}
	_, err := d.ExecContext(ctx,
		`INSERT INTO visitors (hashed_ip, user_agent, path, timestamp) VALUES (?, ?, ?, ?)`,
		v.HashedIP, v.UserAgent, v.Path, formatTime(v.Timestamp))
	if err != nil {
		return fmt.Errorf("recording visit: %w", err)
	}
	return nil
}

// CleanupVisits deletes views older than cutoff and returns how many went.
func (d *DB) CleanupVisits(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := d.ExecContext(ctx, `DELETE FROM visitors WHERE timestamp < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleaning up visitors: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RecentVisits returns the newest views first.
func (d *DB) RecentVisits(ctx context.Context, limit int) ([]Visit, error) {
	rows, err := d.QueryContext(ctx, `
		SELECT id, hashed_ip, user_agent, path, timestamp
		FROM visitors
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying visitors: %w", err)
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		var v Visit
		var ts string
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &ts); err != nil {
			return nil, fmt.Errorf("scanning visitor: %w", err)
		}
		if v.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parsing visitor timestamp: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// TopicCount is the number of submissions for one topic.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int64  `json:"count"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalVisitors      int64        `json:"total_visitors"`
	UniqueVisitors     int64        `json:"unique_visitors"`
	VisitorsToday      int64        `json:"visitors_today"`
	VisitorsThisWeek   int64        `json:"visitors_this_week"`
	TotalSubmissions   int64        `json:"total_submissions"`
	SubmissionsByTopic []TopicCount `json:"submissions_by_topic"`
	RecentVisitors     []Visit      `json:"recent_visitors"`
	RecentSubmissions  []Submission `json:"recent_submissions"`
}

// Stats computes the dashboard figures relative to now.
func (d *DB) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	s := &Stats{}
	startOfDay := now.UTC().Truncate(24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&s.TotalVisitors, `SELECT COUNT(*) FROM visitors`, nil},
		{&s.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil},
		{&s.VisitorsToday, `SELECT COUNT(*) FROM visitors WHERE timestamp >= ?`, []any{formatTime(startOfDay)}},
		{&s.VisitorsThisWeek, `SELECT COUNT(*) FROM visitors WHERE timestamp >= ?`, []any{formatTime(weekAgo)}},
		{&s.TotalSubmissions, `SELECT COUNT(*) FROM submissions`, nil},
	}
	for _, c := range counts {
		if err := d.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("computing stats: %w", err)
		}
	}

	rows, err := d.QueryContext(ctx, `
		SELECT topic, COUNT(*) FROM submissions
		GROUP BY topic ORDER BY COUNT(*) DESC, topic`)
	if err != nil {
		return nil, fmt.Errorf("counting topics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning topic count: %w", err)
		}
		s.SubmissionsByTopic = append(s.SubmissionsByTopic, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.RecentVisitors, err = d.RecentVisits(ctx, 50); err != nil {
		return nil, err
	}
	if s.RecentSubmissions, err = d.ListSubmissions(ctx, 10); err != nil {
		return nil, err
	}
	return s, nil
}
