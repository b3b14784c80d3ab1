package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rmasand0/Terraform-Feature-Lag-Tracker/app/tracker"
)

var _ AnnouncementRepository = (*announcementRepository)(nil)

type announcementRepository struct {
	db *DB
}

func NewAnnouncementRepository(db *DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

// UpsertAnnouncements keys announcements by (cloud, title). A re-seen
// announcement refreshes its link and dates; an empty value never
// overwrites a stored one.
func (r *announcementRepository) UpsertAnnouncements(ctx context.Context, cloud string, items []tracker.RawAnnouncement) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	before, err := countAnnouncements(ctx, tx, cloud)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO announcements (cloud, title, link, published, updated, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (cloud, title) DO UPDATE SET
			link = CASE WHEN excluded.link != '' THEN excluded.link ELSE announcements.link END,
			published = CASE WHEN excluded.published != '' THEN excluded.published ELSE announcements.published END,
			updated = CASE WHEN excluded.updated != '' THEN excluded.updated ELSE announcements.updated END,
			last_seen_at = excluded.last_seen_at
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := formatTime(timeNow())
	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, cloud, item.Title, item.Link, item.Published, item.Updated, now, now); err != nil {
			return 0, fmt.Errorf("failed to upsert announcement: %w", err)
		}
	}

	after, err := countAnnouncements(ctx, tx, cloud)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit announcements: %w", err)
	}
	return after - before, nil
}

// GetAnnouncements returns a cloud's announcements in the order they were
// first seen.
func (r *announcementRepository) GetAnnouncements(ctx context.Context, cloud string) ([]tracker.RawAnnouncement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT title, link, published, updated
		FROM announcements
		WHERE cloud = ?
		ORDER BY id
	`, cloud)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", err)
	}
	defer rows.Close()

	var items []tracker.RawAnnouncement
	for rows.Next() {
		var item tracker.RawAnnouncement
		if err := rows.Scan(&item.Title, &item.Link, &item.Published, &item.Updated); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *announcementRepository) GetAnnouncementCount(ctx context.Context, cloud string) (int, error) {
	return countAnnouncements(ctx, r.db, cloud)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func countAnnouncements(ctx context.Context, q queryRower, cloud string) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM announcements WHERE cloud = ?`, cloud).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count announcements: %w", err)
	}
	return count, nil
}
