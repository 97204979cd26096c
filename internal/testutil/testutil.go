// Package testutil provides common test utilities and fakes for orderbot tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/chowline/orderbot/internal/geo"
	"github.com/chowline/orderbot/internal/messaging"
	"github.com/chowline/orderbot/internal/models"
)

// FakeMessagingService implements messaging.Service for tests. It records
// every sent message and lets tests inject incoming responses.
type FakeMessagingService struct {
	mu        sync.Mutex
	sent      []models.OutboundMessage
	responses chan models.Response
	SendErr   error // when set, SendMessage returns this error
}

// NewFakeMessagingService creates an empty fake messaging service.
func NewFakeMessagingService() *FakeMessagingService {
	return &FakeMessagingService{
		responses: make(chan models.Response, 16),
	}
}

func (f *FakeMessagingService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return messaging.CanonicalizePhoneNumber(recipient)
}

func (f *FakeMessagingService) SendMessage(ctx context.Context, msg models.OutboundMessage) error {
	if f.SendErr != nil {
		return f.SendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *FakeMessagingService) Start(ctx context.Context) error { return nil }

func (f *FakeMessagingService) Stop() error {
	close(f.responses)
	return nil
}

func (f *FakeMessagingService) Responses() <-chan models.Response {
	return f.responses
}

// Inject feeds an incoming response into the service, as if received from
// the transport.
func (f *FakeMessagingService) Inject(response models.Response) {
	f.responses <- response
}

// Sent returns a copy of all messages sent so far.
func (f *FakeMessagingService) Sent() []models.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	sent := make([]models.OutboundMessage, len(f.sent))
	copy(sent, f.sent)
	return sent
}

// LastSent returns the most recent sent message, failing the test when
// nothing has been sent.
func (f *FakeMessagingService) LastSent(t *testing.T) models.OutboundMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sent[len(f.sent)-1]
}

// FakeGeocoder implements geo.Geocoder with scriptable results.
type FakeGeocoder struct {
	Available     bool
	ForwardResult *geo.Result
	ForwardErr    error
	ReverseResult string
	ReverseErr    error
}

// NewFakeGeocoder creates an available fake geocoder with no scripted results.
func NewFakeGeocoder() *FakeGeocoder {
	return &FakeGeocoder{Available: true}
}

func (f *FakeGeocoder) ForwardGeocode(ctx context.Context, query string) (*geo.Result, error) {
	if f.ForwardErr != nil {
		return nil, f.ForwardErr
	}
	return f.ForwardResult, nil
}

func (f *FakeGeocoder) ReverseGeocode(ctx context.Context, coords models.Coordinates) (string, error) {
	if f.ReverseErr != nil {
		return "", f.ReverseErr
	}
	return f.ReverseResult, nil
}

func (f *FakeGeocoder) IsAvailable(ctx context.Context) bool {
	return f.Available
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}
