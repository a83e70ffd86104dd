package card

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/studydeck/internal/database"
)

// DBRepository implements Repository on top of a SQL database. Queries are
// written with '?' placeholders and rebound for the driver in use.
type DBRepository struct {
	db *sqlx.DB
}

// NewDBRepository creates a new DBRepository.
func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{db: db}
}

// Create inserts c and sets its id.
func (r *DBRepository) Create(ctx context.Context, c *Card) error {
	return insertCard(ctx, r.db, c)
}

// CreateAll inserts cards in one transaction.
func (r *DBRepository) CreateAll(ctx context.Context, cards []*Card) error {
	err := database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		for _, c := range cards {
			if err := insertCard(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, c := range cards {
			c.ID = 0
		}
		return err
	}
	return nil
}

func insertCard(ctx context.Context, db sqlx.ExtContext, c *Card) error {
	id, err := insertReturningID(ctx, db,
		`INSERT INTO cards (type, question, answer, options, correct_answer, course,
			easiness_factor, interval_days, repetitions, due_at, last_reviewed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Type, c.Question, c.Answer, c.Options, c.CorrectAnswer, c.Course,
		c.EasinessFactor, c.Interval, c.Repetitions, c.DueAt, c.LastReviewedAt, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert card > %w", err)
	}
	c.ID = id
	return nil
}

// FindByID returns the card with id, or nil if not found.
func (r *DBRepository) FindByID(ctx context.Context, id int64) (*Card, error) {
	var c Card
	err := r.db.GetContext(ctx, &c, r.db.Rebind("SELECT * FROM cards WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(card %d) > %w", id, err)
	}
	c.inUTC()
	return &c, nil
}

// FindNextDue returns the earliest due card of course at now, or nil.
func (r *DBRepository) FindNextDue(ctx context.Context, course string, now time.Time) (*Card, error) {
	query := "SELECT * FROM cards WHERE due_at <= ?"
	args := []any{now}
	if course != "" {
		query += " AND course = ?"
		args = append(args, course)
	}
	query += " ORDER BY due_at, id LIMIT 1"

	var c Card
	err := r.db.GetContext(ctx, &c, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(next due card) > %w", err)
	}
	c.inUTC()
	return &c, nil
}

// FindAll returns the cards of course ordered by id.
func (r *DBRepository) FindAll(ctx context.Context, course string) ([]Card, error) {
	query := "SELECT * FROM cards"
	var args []any
	if course != "" {
		query += " WHERE course = ?"
		args = append(args, course)
	}
	query += " ORDER BY id"

	var cards []Card
	if err := r.db.SelectContext(ctx, &cards, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext(cards) > %w", err)
	}
	for i := range cards {
		cards[i].inUTC()
	}
	return cards, nil
}

// SaveReview updates the scheduling columns of c and inserts log in one transaction.
func (r *DBRepository) SaveReview(ctx context.Context, c *Card, log *ReviewLog) error {
	return database.RunInTx(ctx, r.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE cards
			SET easiness_factor = ?, interval_days = ?, repetitions = ?, due_at = ?, last_reviewed_at = ?, updated_at = ?
			WHERE id = ?`),
			c.EasinessFactor, c.Interval, c.Repetitions, c.DueAt, c.LastReviewedAt, c.UpdatedAt, c.ID); err != nil {
			return fmt.Errorf("tx.ExecContext(update card %d) > %w", c.ID, err)
		}

		if log == nil {
			return nil
		}
		id, err := insertReturningID(ctx, tx,
			`INSERT INTO review_logs (card_id, course, quality, reviewed_at, interval_days, easiness_factor, repetitions)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			log.CardID, log.Course, log.Quality, log.ReviewedAt, log.IntervalDays, log.EasinessFactor, log.Repetitions)
		if err != nil {
			return fmt.Errorf("insert review_log > %w", err)
		}
		log.ID = id
		return nil
	})
}

// FindReviewLogs returns the review logs of course ordered by id.
func (r *DBRepository) FindReviewLogs(ctx context.Context, course string) ([]ReviewLog, error) {
	query := "SELECT * FROM review_logs"
	var args []any
	if course != "" {
		query += " WHERE course = ?"
		args = append(args, course)
	}
	query += " ORDER BY id"

	var logs []ReviewLog
	if err := r.db.SelectContext(ctx, &logs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("db.SelectContext(review_logs) > %w", err)
	}
	for i := range logs {
		logs[i].ReviewedAt = logs[i].ReviewedAt.UTC()
	}
	return logs, nil
}

// Courses returns the distinct non-empty courses.
func (r *DBRepository) Courses(ctx context.Context) ([]string, error) {
	var courses []string
	if err := r.db.SelectContext(ctx, &courses,
		"SELECT DISTINCT course FROM cards WHERE course <> '' ORDER BY course"); err != nil {
		return nil, fmt.Errorf("db.SelectContext(courses) > %w", err)
	}
	return courses, nil
}

// insertReturningID runs an INSERT and returns the generated id. PostgreSQL
// does not support LastInsertId, so the id is read with RETURNING there.
func insertReturningID(ctx context.Context, db sqlx.ExtContext, query string, args ...any) (int64, error) {
	query = db.Rebind(query)
	if db.DriverName() == "postgres" {
		var id int64
		if err := db.QueryRowxContext(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("QueryRowxContext() > %w", err)
		}
		return id, nil
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("ExecContext() > %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("result.LastInsertId() > %w", err)
	}
	return id, nil
}
