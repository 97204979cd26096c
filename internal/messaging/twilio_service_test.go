package messaging

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestTwilioService(t *testing.T) *TwilioService {
	t.Helper()
	svc, err := NewTwilioService(
		WithAccountSID("ACtest"),
		WithAuthToken("secret"),
		WithFromWhatsApp("whatsapp:+14155238886"),
	)
	if err != nil {
		t.Fatalf("NewTwilioService() error = %v", err)
	}
	return svc
}

func postWebhookForm(t *testing.T, svc *TwilioService, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	svc.WebhookHandler(rr, req)
	return rr
}

func TestWebhookHandlerEmitsTextMessage(t *testing.T) {
	svc := newTestTwilioService(t)

	rr := postWebhookForm(t, svc, url.Values{
		"From": {"whatsapp:+2348012345678"},
		"Body": {"hi"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want %d", rr.Code, http.StatusOK)
	}

	select {
	case resp := <-svc.Responses():
		if resp.From != "whatsapp:+2348012345678" {
			t.Errorf("From = %q, want sender preserved", resp.From)
		}
		if resp.Body != "hi" {
			t.Errorf("Body = %q, want %q", resp.Body, "hi")
		}
		if resp.Location != nil {
			t.Errorf("Location = %v, want nil for text message", resp.Location)
		}
	default:
		t.Fatal("no response emitted for inbound text")
	}
}

func TestWebhookHandlerParsesLocationShare(t *testing.T) {
	svc := newTestTwilioService(t)

	rr := postWebhookForm(t, svc, url.Values{
		"From":      {"whatsapp:+2348012345678"},
		"Latitude":  {"6.4281"},
		"Longitude": {"3.4216"},
		"Address":   {"Victoria Island, Lagos"},
		"Label":     {"Office"},
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, want %d", rr.Code, http.StatusOK)
	}

	select {
	case resp := <-svc.Responses():
		if resp.Location == nil {
			t.Fatal("Location = nil, want parsed coordinates")
		}
		if resp.Location.Latitude != 6.4281 || resp.Location.Longitude != 3.4216 {
			t.Errorf("coordinates = (%v, %v), want (6.4281, 3.4216)",
				resp.Location.Latitude, resp.Location.Longitude)
		}
		if resp.Location.Address != "Victoria Island, Lagos" {
			t.Errorf("Address = %q, want forwarded", resp.Location.Address)
		}
		if resp.Location.Name != "Office" {
			t.Errorf("Name = %q, want label forwarded", resp.Location.Name)
		}
	default:
		t.Fatal("no response emitted for location share")
	}
}

func TestWebhookHandlerRejectsMissingFields(t *testing.T) {
	svc := newTestTwilioService(t)

	tests := []struct {
		name string
		form url.Values
	}{
		{"no sender", url.Values{"Body": {"hi"}}},
		{"no body or location", url.Values{"From": {"whatsapp:+2348012345678"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postWebhookForm(t, svc, tt.form)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("webhook status = %d, want %d", rr.Code, http.StatusBadRequest)
			}
			select {
			case resp := <-svc.Responses():
				t.Errorf("unexpected response emitted: %+v", resp)
			default:
			}
		})
	}
}

func TestWebhookHandlerDropsAfterStop(t *testing.T) {
	svc := newTestTwilioService(t)
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	rr := postWebhookForm(t, svc, url.Values{
		"From": {"whatsapp:+2348012345678"},
		"Body": {"hi"},
	})

	// The handler still acknowledges so Twilio does not retry, but
	// nothing is emitted once the service is stopped.
	if rr.Code != http.StatusOK {
		t.Errorf("webhook status = %d, want %d", rr.Code, http.StatusOK)
	}
}
