// Package store provides storage backends for orderbot records.
//
// It persists orders, complaints, feedback, enquiries, and user profiles.
// Three backends are available: an in-memory store for tests and ephemeral
// runs, an SQLite-backed store for single-node deployments, and a
// PostgreSQL-backed store for shared deployments.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chowline/orderbot/internal/models"
)

// Store is the persistence interface used by flow handlers and the API.
type Store interface {
	SaveOrder(order models.OrderRecord) error
	UpdateOrderStatus(orderID string, status models.RecordStatus) error
	GetOrder(orderID string) (*models.OrderRecord, error)
	ListOrders(ownerKey string) ([]models.OrderRecord, error)

	SaveComplaint(complaint models.ComplaintRecord) error
	ListComplaints(ownerKey string) ([]models.ComplaintRecord, error)

	SaveFeedback(feedback models.FeedbackRecord) error
	ListFeedback() ([]models.FeedbackRecord, error)

	SaveEnquiry(enquiry models.EnquiryRecord) error

	UpsertUserProfile(profile models.UserProfile) error
	GetUserProfile(ownerKey string) (*models.UserProfile, error)

	Close() error
}

// InMemoryStore keeps all records in process memory. Used by tests and as
// the fallback backend when no database DSN is configured.
type InMemoryStore struct {
	mu         sync.RWMutex
	orders     map[string]models.OrderRecord
	orderIDs   []string // insertion order for stable listings
	complaints []models.ComplaintRecord
	feedback   []models.FeedbackRecord
	enquiries  []models.EnquiryRecord
	profiles   map[string]models.UserProfile
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("InMemoryStore created")
	return &InMemoryStore{
		orders:   make(map[string]models.OrderRecord),
		profiles: make(map[string]models.UserProfile),
	}
}

func (s *InMemoryStore) SaveOrder(order models.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; !exists {
		s.orderIDs = append(s.orderIDs, order.ID)
	}
	s.orders[order.ID] = order
	slog.Debug("InMemoryStore SaveOrder succeeded", "orderID", order.ID, "total", order.TotalAmount)
	return nil
}

func (s *InMemoryStore) UpdateOrderStatus(orderID string, status models.RecordStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		slog.Debug("InMemoryStore UpdateOrderStatus order not found", "orderID", orderID)
		return ErrOrderNotFound
	}
	order.Status = status
	s.orders[orderID] = order
	slog.Debug("InMemoryStore UpdateOrderStatus succeeded", "orderID", orderID, "status", status)
	return nil
}

func (s *InMemoryStore) GetOrder(orderID string) (*models.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

func (s *InMemoryStore) ListOrders(ownerKey string) ([]models.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var orders []models.OrderRecord
	for _, id := range s.orderIDs {
		order := s.orders[id]
		if ownerKey == "" || order.OwnerKey == ownerKey {
			orders = append(orders, order)
		}
	}
	return orders, nil
}

func (s *InMemoryStore) SaveComplaint(complaint models.ComplaintRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.complaints = append(s.complaints, complaint)
	slog.Debug("InMemoryStore SaveComplaint succeeded", "complaintID", complaint.ID, "priority", complaint.Priority)
	return nil
}

func (s *InMemoryStore) ListComplaints(ownerKey string) ([]models.ComplaintRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var complaints []models.ComplaintRecord
	for _, c := range s.complaints {
		if ownerKey == "" || c.OwnerKey == ownerKey {
			complaints = append(complaints, c)
		}
	}
	return complaints, nil
}

func (s *InMemoryStore) SaveFeedback(feedback models.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, feedback)
	slog.Debug("InMemoryStore SaveFeedback succeeded", "feedbackID", feedback.ID, "rating", feedback.Rating)
	return nil
}

func (s *InMemoryStore) ListFeedback() ([]models.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	feedback := make([]models.FeedbackRecord, len(s.feedback))
	copy(feedback, s.feedback)
	return feedback, nil
}

func (s *InMemoryStore) SaveEnquiry(enquiry models.EnquiryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enquiries = append(s.enquiries, enquiry)
	slog.Debug("InMemoryStore SaveEnquiry succeeded", "enquiryID", enquiry.ID)
	return nil
}

func (s *InMemoryStore) UpsertUserProfile(profile models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile.UpdatedAt = time.Now()
	s.profiles[profile.OwnerKey] = profile
	slog.Debug("InMemoryStore UpsertUserProfile succeeded", "ownerKey", profile.OwnerKey)
	return nil
}

func (s *InMemoryStore) GetUserProfile(ownerKey string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[ownerKey]
	if !ok {
		return nil, nil
	}
	return &profile, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
