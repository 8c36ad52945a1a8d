package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"meal-order-assistant/internal/catering"
)

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	q.Set("dateFrom", r.URL.Query().Get("from"))
	q.Set("dateTo", r.URL.Query().Get("to"))

	var up upstreamCalendar
	if err := s.forward(r, http.MethodGet, "/client/v1/calendar", q, nil, &up); err != nil {
		s.upstreamError(w, "calendar", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"slots": mapCalendar(up)})
}

func (s *Server) handleDishes(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	q.Set("channelId", r.URL.Query().Get("channel"))
	q.Set("targetTime", r.URL.Query().Get("time"))

	var up upstreamMenu
	if err := s.forward(r, http.MethodGet, "/client/v1/menu", q, nil, &up); err != nil {
		s.upstreamError(w, "menu", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"dishes": mapMenu(up)})
}

func (s *Server) handleRestaurants(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	q.Set("channelId", r.URL.Query().Get("channel"))
	q.Set("targetTime", r.URL.Query().Get("time"))

	var up upstreamRestaurants
	if err := s.forward(r, http.MethodGet, "/client/v1/restaurants", q, nil, &up); err != nil {
		s.upstreamError(w, "restaurants", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"dishes": mapRestaurants(up)})
}

func (s *Server) handleAddresses(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	if ns := r.URL.Query().Get("namespace"); ns != "" {
		q.Set("corpNamespace", ns)
	}

	var up upstreamAddresses
	if err := s.forward(r, http.MethodGet, "/client/v1/addresses", q, nil, &up); err != nil {
		s.upstreamError(w, "addresses", err)
		return
	}
	s.writeJSON(w, http.StatusOK, mapAddresses(up))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	q.Set("dateFrom", r.URL.Query().Get("from"))
	q.Set("dateTo", r.URL.Query().Get("to"))

	var up upstreamHistory
	if err := s.forward(r, http.MethodGet, "/client/v1/orders/history", q, nil, &up); err != nil {
		s.upstreamError(w, "history", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"orders": mapHistory(up)})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req catering.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upstreamBody, err := json.Marshal(map[string]string{
		"channelId":     req.Channel,
		"dishId":        req.DishID,
		"targetTime":    req.TargetTime,
		"corpAddressId": req.CorpAddressID,
		"userAddressId": req.UserAddressID,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}

	var result upstreamOrderResult
	if err := s.forward(r, http.MethodPost, "/client/v1/orders", nil, bytes.NewReader(upstreamBody), &result); err != nil {
		s.upstreamError(w, "place order", err)
		return
	}
	// The upstream reports some failures with a 200 and an explicit flag.
	if !result.Success {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("order rejected: %s", result.Message))
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"orderId": result.OrderID})
}

func (s *Server) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	if orderID == "" {
		s.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	var result upstreamOrderResult
	if err := s.forward(r, http.MethodDelete, "/client/v1/orders/"+url.PathEscape(orderID), nil, nil, &result); err != nil {
		s.upstreamError(w, "delete order", err)
		return
	}
	if !result.Success {
		s.writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("delete rejected: %s", result.Message))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
