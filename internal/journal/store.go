package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"notesd/internal/config"
)

// Store manages delivery persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "journal.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the journal database location.
func (s *Store) Path() string {
	return s.path
}

// Record inserts a new delivery in the received state and returns it.
func (s *Store) Record(ctx context.Context, title string) (*Delivery, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO deliveries (id, title, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		id,
		title,
		StatusReceived,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert delivery: %w", err)
	}

	return s.Get(ctx, id)
}

// RecordRejected inserts a delivery that failed validation, keeping the
// reason for later inspection.
func (s *Store) RecordRejected(ctx context.Context, title, reason string) (*Delivery, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	id := uuid.NewString()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO deliveries (id, title, status, error_message, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		title,
		StatusRejected,
		nullableString(reason),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert rejected delivery: %w", err)
	}

	return s.Get(ctx, id)
}

// Get fetches a delivery by identifier. A missing delivery returns nil.
func (s *Store) Get(ctx context.Context, id string) (*Delivery, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = ?`, id)
	delivery, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return delivery, nil
}

// Update persists changes to an existing delivery.
func (s *Store) Update(ctx context.Context, delivery *Delivery) error {
	if delivery == nil {
		return errors.New("delivery is nil")
	}
	delivery.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE deliveries
         SET title = ?, filename = ?, status = ?, revision = ?,
             error_message = ?, updated_at = ?
         WHERE id = ?`,
		delivery.Title,
		nullableString(delivery.Filename),
		delivery.Status,
		nullableString(delivery.Revision),
		nullableString(delivery.ErrorMessage),
		delivery.UpdatedAt.Format(time.RFC3339Nano),
		delivery.ID,
	)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	return nil
}

// SetStatus advances a delivery to a new status.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE deliveries SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set delivery status: %w", err)
	}
	return nil
}

// SetFailed marks a delivery as failed with the given message.
func (s *Store) SetFailed(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE deliveries SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		StatusFailed,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("set delivery failed: %w", err)
	}
	return nil
}

// List returns deliveries filtered by status set (or all deliveries when no
// status is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Delivery, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + deliveryColumns + ` FROM deliveries`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, rows.Err()
}

// PushPending returns deliveries with committed but unpushed work.
func (s *Store) PushPending(ctx context.Context) ([]*Delivery, error) {
	return s.List(ctx, StatusPushPending)
}

// MarkPushPendingResolved moves all push_pending deliveries to pushed.
// Startup recovery calls this after a successful push, which publishes
// every retained local commit at once.
func (s *Store) MarkPushPendingResolved(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE deliveries SET status = ?, error_message = NULL, updated_at = ? WHERE status = ?`,
		StatusPushed,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusPushPending,
	)
	if err != nil {
		return 0, fmt.Errorf("resolve push_pending deliveries: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of deliveries grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM deliveries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Summarize aggregates journal state for diagnostic output.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{}
	for status, count := range stats {
		summary.Total += count
		switch status {
		case StatusPushed:
			summary.Pushed += count
		case StatusPushPending:
			summary.PushPending += count
		case StatusRejected:
			summary.Rejected += count
		case StatusFailed:
			summary.Failed += count
		default:
			summary.InFlight += count
		}
	}
	return summary, nil
}

// Clear removes all deliveries from the journal.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM deliveries`)
	if err != nil {
		return 0, fmt.Errorf("clear journal: %w", err)
	}
	return res.RowsAffected()
}

// ClearTerminal removes deliveries that reached a terminal state. In-flight
// and push_pending rows stay, since recovery still acts on them.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	var args []any
	for _, status := range AllStatuses() {
		if status.Terminal() {
			args = append(args, status)
		}
	}
	query := fmt.Sprintf(`DELETE FROM deliveries WHERE status IN (%s)`, makePlaceholders(len(args)))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear terminal deliveries: %w", err)
	}
	return res.RowsAffected()
}

const deliveryColumns = "id, title, filename, status, revision, error_message, created_at, updated_at"

func scanDelivery(scanner interface{ Scan(dest ...any) error }) (*Delivery, error) {
	var (
		id           string
		title        string
		filename     sql.NullString
		statusStr    string
		revision     sql.NullString
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&filename,
		&statusStr,
		&revision,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	delivery := &Delivery{
		ID:           id,
		Title:        title,
		Filename:     filename.String,
		Status:       Status(statusStr),
		Revision:     revision.String,
		ErrorMessage: errorMessage.String,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		delivery.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		delivery.UpdatedAt = updated
	}
	return delivery, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
