package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chowline/orderbot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// marshalOrderItems encodes order line items as JSON for storage.
func marshalOrderItems(items []models.OrderItem) (string, error) {
	if len(items) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order items: %w", err)
	}
	return string(data), nil
}

// unmarshalOrderItems decodes the stored JSON line items.
func unmarshalOrderItems(data string) ([]models.OrderItem, error) {
	if data == "" {
		return nil, nil
	}
	var items []models.OrderItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	return items, nil
}

// scanOrder scans an OrderRecord from sql.Rows.
func scanOrder(rows *sql.Rows) (models.OrderRecord, error) {
	var o models.OrderRecord
	var userName, address, note, paymentRef, itemsJSON sql.NullString
	var lat, lon sql.NullFloat64
	var status string
	err := rows.Scan(
		&o.ID, &o.OwnerKey, &userName, &address, &lat, &lon, &note,
		&itemsJSON, &o.TotalAmount, &paymentRef, &status, &o.Timestamp,
	)
	if err != nil {
		return o, fmt.Errorf("scan order failed: %w", err)
	}
	o.UserName = userName.String
	o.Address = address.String
	o.Note = note.String
	o.PaymentReference = paymentRef.String
	o.Status = models.RecordStatus(status)
	if lat.Valid {
		o.Latitude = &lat.Float64
	}
	if lon.Valid {
		o.Longitude = &lon.Float64
	}
	o.Items, err = unmarshalOrderItems(itemsJSON.String)
	if err != nil {
		return o, err
	}
	return o, nil
}

// scanOrderRow scans an OrderRecord from a single sql.Row.
func scanOrderRow(row *sql.Row) (models.OrderRecord, error) {
	var o models.OrderRecord
	var userName, address, note, paymentRef, itemsJSON sql.NullString
	var lat, lon sql.NullFloat64
	var status string
	err := row.Scan(
		&o.ID, &o.OwnerKey, &userName, &address, &lat, &lon, &note,
		&itemsJSON, &o.TotalAmount, &paymentRef, &status, &o.Timestamp,
	)
	if err != nil {
		return o, err
	}
	o.UserName = userName.String
	o.Address = address.String
	o.Note = note.String
	o.PaymentReference = paymentRef.String
	o.Status = models.RecordStatus(status)
	if lat.Valid {
		o.Latitude = &lat.Float64
	}
	if lon.Valid {
		o.Longitude = &lon.Float64
	}
	o.Items, err = unmarshalOrderItems(itemsJSON.String)
	if err != nil {
		return o, err
	}
	return o, nil
}

// scanComplaint scans a ComplaintRecord from sql.Rows.
func scanComplaint(rows *sql.Rows) (models.ComplaintRecord, error) {
	var c models.ComplaintRecord
	var userName sql.NullString
	var priority, status string
	err := rows.Scan(&c.ID, &c.OwnerKey, &userName, &c.Text, &priority, &status, &c.Timestamp)
	if err != nil {
		return c, fmt.Errorf("scan complaint failed: %w", err)
	}
	c.UserName = userName.String
	c.Priority = models.Priority(priority)
	c.Status = models.RecordStatus(status)
	return c, nil
}

// scanFeedback scans a FeedbackRecord from sql.Rows.
func scanFeedback(rows *sql.Rows) (models.FeedbackRecord, error) {
	var f models.FeedbackRecord
	var userName, orderID, comment sql.NullString
	var duration sql.NullFloat64
	var rating, status string
	err := rows.Scan(&f.ID, &f.OwnerKey, &userName, &orderID, &rating, &comment, &status, &duration, &f.Timestamp)
	if err != nil {
		return f, fmt.Errorf("scan feedback failed: %w", err)
	}
	f.UserName = userName.String
	f.OrderID = orderID.String
	f.Comment = comment.String
	f.Rating = models.Rating(rating)
	f.Status = models.RecordStatus(status)
	if duration.Valid {
		f.SessionDuration = &duration.Float64
	}
	return f, nil
}

// scanUserProfileRow scans a UserProfile from a single sql.Row.
func scanUserProfileRow(row *sql.Row) (models.UserProfile, error) {
	var p models.UserProfile
	var name, preferredName, address, mapLink sql.NullString
	var lat, lon sql.NullFloat64
	err := row.Scan(&p.OwnerKey, &name, &preferredName, &address, &lat, &lon, &mapLink, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Name = name.String
	p.PreferredName = preferredName.String
	p.Address = address.String
	p.MapLink = mapLink.String
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	return p, nil
}
