// Package store provides storage backends for orderbot records.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/chowline/orderbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveOrder(order models.OrderRecord) error {
	itemsJSON, err := marshalOrderItems(order.Items)
	if err != nil {
		slog.Error("SQLiteStore SaveOrder items marshal failed", "error", err, "orderID", order.ID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO orders (id, owner_key, user_name, address, latitude, longitude, note, items, total_amount, payment_reference, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OwnerKey, nilIfEmpty(order.UserName), nilIfEmpty(order.Address),
		order.Latitude, order.Longitude, nilIfEmpty(order.Note), itemsJSON,
		order.TotalAmount, nilIfEmpty(order.PaymentReference), string(order.Status), order.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore SaveOrder failed", "error", err, "orderID", order.ID)
		return fmt.Errorf("failed to insert order %s: %w", order.ID, err)
	}
	slog.Debug("SQLiteStore SaveOrder succeeded", "orderID", order.ID, "total", order.TotalAmount)
	return nil
}

func (s *SQLiteStore) UpdateOrderStatus(orderID string, status models.RecordStatus) error {
	res, err := s.db.Exec(`UPDATE orders SET status = ? WHERE id = ?`, string(status), orderID)
	if err != nil {
		slog.Error("SQLiteStore UpdateOrderStatus failed", "error", err, "orderID", orderID)
		return fmt.Errorf("failed to update order %s status: %w", orderID, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		slog.Debug("SQLiteStore UpdateOrderStatus order not found", "orderID", orderID)
		return ErrOrderNotFound
	}
	slog.Debug("SQLiteStore UpdateOrderStatus succeeded", "orderID", orderID, "status", status)
	return nil
}

func (s *SQLiteStore) GetOrder(orderID string) (*models.OrderRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, owner_key, user_name, address, latitude, longitude, note, items, total_amount, payment_reference, status, created_at
		FROM orders WHERE id = ?`, orderID)
	order, err := scanOrderRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetOrder not found", "orderID", orderID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetOrder failed", "error", err, "orderID", orderID)
		return nil, err
	}
	return &order, nil
}

func (s *SQLiteStore) ListOrders(ownerKey string) ([]models.OrderRecord, error) {
	query := `
		SELECT id, owner_key, user_name, address, latitude, longitude, note, items, total_amount, payment_reference, status, created_at
		FROM orders`
	var args []interface{}
	if ownerKey != "" {
		query += ` WHERE owner_key = ?`
		args = append(args, ownerKey)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListOrders query failed", "error", err)
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.OrderRecord
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			slog.Error("SQLiteStore ListOrders scan failed", "error", err)
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListOrders rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate order rows: %w", err)
	}
	slog.Debug("SQLiteStore ListOrders succeeded", "count", len(orders))
	return orders, nil
}

func (s *SQLiteStore) SaveComplaint(complaint models.ComplaintRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO complaints (id, owner_key, user_name, body, priority, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		complaint.ID, complaint.OwnerKey, nilIfEmpty(complaint.UserName), complaint.Text,
		string(complaint.Priority), string(complaint.Status), complaint.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore SaveComplaint failed", "error", err, "complaintID", complaint.ID)
		return fmt.Errorf("failed to insert complaint %s: %w", complaint.ID, err)
	}
	slog.Debug("SQLiteStore SaveComplaint succeeded", "complaintID", complaint.ID, "priority", complaint.Priority)
	return nil
}

func (s *SQLiteStore) ListComplaints(ownerKey string) ([]models.ComplaintRecord, error) {
	query := `SELECT id, owner_key, user_name, body, priority, status, created_at FROM complaints`
	var args []interface{}
	if ownerKey != "" {
		query += ` WHERE owner_key = ?`
		args = append(args, ownerKey)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListComplaints query failed", "error", err)
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()

	var complaints []models.ComplaintRecord
	for rows.Next() {
		complaint, err := scanComplaint(rows)
		if err != nil {
			slog.Error("SQLiteStore ListComplaints scan failed", "error", err)
			return nil, err
		}
		complaints = append(complaints, complaint)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListComplaints rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate complaint rows: %w", err)
	}
	slog.Debug("SQLiteStore ListComplaints succeeded", "count", len(complaints))
	return complaints, nil
}

func (s *SQLiteStore) SaveFeedback(feedback models.FeedbackRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO feedback (id, owner_key, user_name, order_id, rating, comment, status, session_duration, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		feedback.ID, feedback.OwnerKey, nilIfEmpty(feedback.UserName), nilIfEmpty(feedback.OrderID),
		string(feedback.Rating), nilIfEmpty(feedback.Comment), string(feedback.Status),
		feedback.SessionDuration, feedback.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore SaveFeedback failed", "error", err, "feedbackID", feedback.ID)
		return fmt.Errorf("failed to insert feedback %s: %w", feedback.ID, err)
	}
	slog.Debug("SQLiteStore SaveFeedback succeeded", "feedbackID", feedback.ID, "rating", feedback.Rating)
	return nil
}

func (s *SQLiteStore) ListFeedback() ([]models.FeedbackRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, owner_key, user_name, order_id, rating, comment, status, session_duration, created_at
		FROM feedback ORDER BY created_at`)
	if err != nil {
		slog.Error("SQLiteStore ListFeedback query failed", "error", err)
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var feedback []models.FeedbackRecord
	for rows.Next() {
		record, err := scanFeedback(rows)
		if err != nil {
			slog.Error("SQLiteStore ListFeedback scan failed", "error", err)
			return nil, err
		}
		feedback = append(feedback, record)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListFeedback rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}
	slog.Debug("SQLiteStore ListFeedback succeeded", "count", len(feedback))
	return feedback, nil
}

func (s *SQLiteStore) SaveEnquiry(enquiry models.EnquiryRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO enquiries (id, owner_key, user_name, body, priority, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		enquiry.ID, enquiry.OwnerKey, nilIfEmpty(enquiry.UserName), enquiry.Text,
		string(enquiry.Priority), string(enquiry.Status), enquiry.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore SaveEnquiry failed", "error", err, "enquiryID", enquiry.ID)
		return fmt.Errorf("failed to insert enquiry %s: %w", enquiry.ID, err)
	}
	slog.Debug("SQLiteStore SaveEnquiry succeeded", "enquiryID", enquiry.ID)
	return nil
}

// UpsertUserProfile stores or replaces the durable details for a user.
// Repeated writes overwrite the current row so only the latest address and
// coordinates are kept.
func (s *SQLiteStore) UpsertUserProfile(profile models.UserProfile) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO user_profiles (owner_key, name, preferred_name, address, latitude, longitude, map_link, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		profile.OwnerKey, nilIfEmpty(profile.Name), nilIfEmpty(profile.PreferredName),
		nilIfEmpty(profile.Address), profile.Latitude, profile.Longitude, nilIfEmpty(profile.MapLink))
	if err != nil {
		slog.Error("SQLiteStore UpsertUserProfile failed", "error", err, "ownerKey", profile.OwnerKey)
		return fmt.Errorf("failed to upsert user profile for %s: %w", profile.OwnerKey, err)
	}
	slog.Debug("SQLiteStore UpsertUserProfile succeeded", "ownerKey", profile.OwnerKey)
	return nil
}

func (s *SQLiteStore) GetUserProfile(ownerKey string) (*models.UserProfile, error) {
	row := s.db.QueryRow(`
		SELECT owner_key, name, preferred_name, address, latitude, longitude, map_link, updated_at
		FROM user_profiles WHERE owner_key = ?`, ownerKey)
	profile, err := scanUserProfileRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUserProfile not found", "ownerKey", ownerKey)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserProfile failed", "error", err, "ownerKey", ownerKey)
		return nil, err
	}
	return &profile, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
