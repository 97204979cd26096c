// Package store provides storage backends for orderbot records.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/chowline/orderbot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveOrder(order models.OrderRecord) error {
	itemsJSON, err := marshalOrderItems(order.Items)
	if err != nil {
		slog.Error("PostgresStore SaveOrder items marshal failed", "error", err, "orderID", order.ID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO orders (id, owner_key, user_name, address, latitude, longitude, note, items, total_amount, payment_reference, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			address = EXCLUDED.address, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			note = EXCLUDED.note, items = EXCLUDED.items, total_amount = EXCLUDED.total_amount,
			payment_reference = EXCLUDED.payment_reference, status = EXCLUDED.status`,
		order.ID, order.OwnerKey, nilIfEmpty(order.UserName), nilIfEmpty(order.Address),
		order.Latitude, order.Longitude, nilIfEmpty(order.Note), itemsJSON,
		order.TotalAmount, nilIfEmpty(order.PaymentReference), string(order.Status), order.Timestamp)
	if err != nil {
		slog.Error("PostgresStore SaveOrder failed", "error", err, "orderID", order.ID)
		return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
	}
	slog.Debug("PostgresStore SaveOrder succeeded", "orderID", order.ID, "total", order.TotalAmount)
	return nil
}

func (s *PostgresStore) UpdateOrderStatus(orderID string, status models.RecordStatus) error {
	res, err := s.db.Exec(`UPDATE orders SET status = $1 WHERE id = $2`, string(status), orderID)
	if err != nil {
		slog.Error("PostgresStore UpdateOrderStatus failed", "error", err, "orderID", orderID)
		return fmt.Errorf("failed to update order %s status: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		slog.Debug("PostgresStore UpdateOrderStatus order not found", "orderID", orderID)
		return ErrOrderNotFound
	}
	slog.Debug("PostgresStore UpdateOrderStatus succeeded", "orderID", orderID, "status", status)
	return nil
}

func (s *PostgresStore) GetOrder(orderID string) (*models.OrderRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, owner_key, user_name, address, latitude, longitude, note, items, total_amount, payment_reference, status, created_at
		FROM orders WHERE id = $1`, orderID)
	order, err := scanOrderRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetOrder not found", "orderID", orderID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetOrder failed", "error", err, "orderID", orderID)
		return nil, err
	}
	return &order, nil
}

func (s *PostgresStore) ListOrders(ownerKey string) ([]models.OrderRecord, error) {
	query := `
		SELECT id, owner_key, user_name, address, latitude, longitude, note, items, total_amount, payment_reference, status, created_at
		FROM orders`
	var args []interface{}
	if ownerKey != "" {
		query += ` WHERE owner_key = $1`
		args = append(args, ownerKey)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListOrders query failed", "error", err)
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.OrderRecord
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			slog.Error("PostgresStore ListOrders scan failed", "error", err)
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListOrders rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate order rows: %w", err)
	}
	slog.Debug("PostgresStore ListOrders succeeded", "count", len(orders))
	return orders, nil
}

func (s *PostgresStore) SaveComplaint(complaint models.ComplaintRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO complaints (id, owner_key, user_name, body, priority, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		complaint.ID, complaint.OwnerKey, nilIfEmpty(complaint.UserName), complaint.Text,
		string(complaint.Priority), string(complaint.Status), complaint.Timestamp)
	if err != nil {
		slog.Error("PostgresStore SaveComplaint failed", "error", err, "complaintID", complaint.ID)
		return fmt.Errorf("failed to insert complaint %s: %w", complaint.ID, err)
	}
	slog.Debug("PostgresStore SaveComplaint succeeded", "complaintID", complaint.ID, "priority", complaint.Priority)
	return nil
}

func (s *PostgresStore) ListComplaints(ownerKey string) ([]models.ComplaintRecord, error) {
	query := `SELECT id, owner_key, user_name, body, priority, status, created_at FROM complaints`
	var args []interface{}
	if ownerKey != "" {
		query += ` WHERE owner_key = $1`
		args = append(args, ownerKey)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListComplaints query failed", "error", err)
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()

	var complaints []models.ComplaintRecord
	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			slog.Error("PostgresStore ListComplaints scan failed", "error", err)
			return nil, err
		}
		complaints = append(complaints, complaint)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListComplaints rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate complaint rows: %w", err)
	}
	slog.Debug("PostgresStore ListComplaints succeeded", "count", len(complaints))
	return complaints, nil
}

func (s *PostgresStore) SaveFeedback(feedback models.FeedbackRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO feedback (id, owner_key, user_name, order_id, rating, comment, status, session_duration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		feedback.ID, feedback.OwnerKey, nilIfEmpty(feedback.UserName), nilIfEmpty(feedback.OrderID),
		string(feedback.Rating), nilIfEmpty(feedback.Comment), string(feedback.Status),
		feedback.SessionDuration, feedback.Timestamp)
	if err != nil {
		slog.Error("PostgresStore SaveFeedback failed", "error", err, "feedbackID", feedback.ID)
		return fmt.Errorf("failed to insert feedback %s: %w", feedback.ID, err)
	}
	slog.Debug("PostgresStore SaveFeedback succeeded", "feedbackID", feedback.ID, "rating", feedback.Rating)
	return nil
}

func (s *PostgresStore) ListFeedback() ([]models.FeedbackRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_key, user_name, order_id, rating, comment, status, session_duration, created_at
		FROM feedback ORDER BY created_at`)
	if err != nil {
		slog.Error("PostgresStore ListFeedback query failed", "error", err)
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var feedback []models.FeedbackRecord
	for rows.Next() {
		record, err := scanFeedback(rows)
		if err != nil {
			slog.Error("PostgresStore ListFeedback scan failed", "error", err)
			return nil, err
		}
		feedback = append(feedback, record)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListFeedback rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}
	slog.Debug("PostgresStore ListFeedback succeeded", "count", len(feedback))
	return feedback, nil
}

func (s *PostgresStore) SaveEnquiry(enquiry models.EnquiryRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO enquiries (id, owner_key, user_name, body, priority, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		enquiry.ID, enquiry.OwnerKey, nilIfEmpty(enquiry.UserName), enquiry.Text,
		string(enquiry.Priority), string(enquiry.Status), enquiry.Timestamp)
	if err != nil {
		slog.Error("PostgresStore SaveEnquiry failed", "error", err, "enquiryID", enquiry.ID)
		return fmt.Errorf("failed to insert enquiry %s: %w", enquiry.ID, err)
	}
	slog.Debug("PostgresStore SaveEnquiry succeeded", "enquiryID", enquiry.ID)
	return nil
}

// UpsertUserProfile stores or replaces the durable details for a user.
func (s *PostgresStore) UpsertUserProfile(profile models.UserProfile) error {
	_, err := s.db.Exec(`
		INSERT INTO user_profiles (owner_key, name, preferred_name, address, latitude, longitude, map_link, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (owner_key) DO UPDATE SET
			name = EXCLUDED.name, preferred_name = EXCLUDED.preferred_name,
			address = EXCLUDED.address, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			map_link = EXCLUDED.map_link, updated_at = NOW()`,
		profile.OwnerKey, nilIfEmpty(profile.Name), nilIfEmpty(profile.PreferredName),
		nilIfEmpty(profile.Address), profile.Latitude, profile.Longitude, nilIfEmpty(profile.MapLink))
	if err != nil {
		slog.Error("PostgresStore UpsertUserProfile failed", "error", err, "ownerKey", profile.OwnerKey)
		return fmt.Errorf("failed to upsert user profile for %s: %w", profile.OwnerKey, err)
	}
	slog.Debug("PostgresStore UpsertUserProfile succeeded", "ownerKey", profile.OwnerKey)
	return nil
}

func (s *PostgresStore) GetUserProfile(ownerKey string) (*models.UserProfile, error) {
	row := s.db.QueryRow(`
		SELECT owner_key, name, preferred_name, address, latitude, longitude, map_link, updated_at
		FROM user_profiles WHERE owner_key = $1`, ownerKey)
	profile, err := scanUserProfileRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUserProfile not found", "ownerKey", ownerKey)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserProfile failed", "error", err, "ownerKey", ownerKey)
		return nil, err
	}
	return &profile, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
