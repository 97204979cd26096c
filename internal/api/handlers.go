package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/chowline/orderbot/internal/messaging"
	"github.com/chowline/orderbot/internal/models"
	"github.com/chowline/orderbot/internal/store"
)

// healthHandler reports liveness and the active session count.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"status":          "healthy",
		"active_sessions": s.sessions.Count(),
		"time":            time.Now().UTC().Format(time.RFC3339),
	}))
}

// feedbackAnalyticsHandler returns aggregated feedback statistics. The
// optional recent query parameter bounds the recent-entries list.
func (s *Server) feedbackAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	recent := 0
	if raw := r.URL.Query().Get("recent"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			slog.Warn("Server analytics invalid recent parameter", "recent", raw)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("recent must be a non-negative integer"))
			return
		}
		recent = parsed
	}

	analytics, err := s.engine.FeedbackAnalytics(recent)
	if err != nil {
		slog.Error("Server analytics failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute feedback analytics"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(analytics))
}

// ordersHandler serves order lookups and status updates for support staff.
// GET with id returns one order, GET with owner lists an account's orders,
// and PATCH moves an order through its lifecycle.
func (s *Server) ordersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getOrders(w, r)
	case http.MethodPatch:
		s.updateOrderStatus(w, r)
	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPatch)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) getOrders(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		order, err := s.records.GetOrder(id)
		if err != nil {
			slog.Error("Server order lookup failed", "order", id, "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up order"))
			return
		}
		if order == nil {
			writeJSONResponse(w, http.StatusNotFound, models.Error("order not found"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(order))
		return
	}

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("id or owner query parameter required"))
		return
	}
	orders, err := s.records.ListOrders(owner)
	if err != nil {
		slog.Error("Server order listing failed", "owner", owner, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list orders"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(orders))
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}

	var in struct {
		ID     string              `json:"id"`
		Status models.RecordStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		slog.Warn("Server order update invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if in.ID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("order id required"))
		return
	}
	if !models.IsValidOrderStatus(in.Status) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid order status"))
		return
	}

	err := s.records.UpdateOrderStatus(in.ID, in.Status)
	if errors.Is(err, store.ErrOrderNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("order not found"))
		return
	}
	if err != nil {
		slog.Error("Server order update failed", "order", in.ID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update order"))
		return
	}

	slog.Info("Server order status updated", "order", in.ID, "status", in.Status)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("order updated", nil))
}

// complaintsHandler lists an account's complaints for support review.
func (s *Server) complaintsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("owner query parameter required"))
		return
	}
	complaints, err := s.records.ListComplaints(owner)
	if err != nil {
		slog.Error("Server complaint listing failed", "owner", owner, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list complaints"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(complaints))
}

// injectMessageHandler drives one inbound message through the router as if
// it had arrived over the messaging channel and returns the reply.
func (s *Server) injectMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var in models.Response
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		slog.Warn("Server inject invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	from, err := messaging.CanonicalizePhoneNumber(in.From)
	if err != nil {
		slog.Warn("Server inject invalid sender", "error", err, "from", in.From)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	if in.Time == 0 {
		in.Time = time.Now().Unix()
	}

	var reply models.OutboundMessage
	switch {
	case in.Location != nil:
		reply, err = s.router.HandleLocation(r.Context(), from, *in.Location, in.Time)
	case in.Body != "":
		reply, err = s.router.Handle(r.Context(), from, in.Body, in.Time)
	default:
		writeJSONResponse(w, http.StatusBadRequest, models.Error("message requires a body or a location"))
		return
	}
	if err != nil {
		slog.Error("Server inject routing failed", "error", err, "from", from)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to route message"))
		return
	}

	slog.Info("Server injected message", "from", from, "reply_buttons", len(reply.Buttons))
	writeJSONResponse(w, http.StatusOK, models.Success(reply))
}
