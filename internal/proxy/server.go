package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"meal-order-assistant/internal/config"
)

// Server is the stateless translation layer between the assistant and the
// upstream catering platform. It authenticates callers with short-lived
// JWTs, injects the upstream session cookie, and reshapes upstream JSON.
type Server struct {
	upstreamURL string
	cookie      string
	secret      []byte
	httpClient  *http.Client
	log         *zap.Logger
}

// NewServer creates a proxy server from configuration.
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		upstreamURL: strings.TrimRight(cfg.UpstreamURL, "/"),
		cookie:      cfg.UpstreamCookie,
		secret:      []byte(cfg.ProxySecret),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		log:         logger,
	}
}

// Routes builds the HTTP handler with authentication applied to every API
// route.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/calendar", s.handleCalendar)
	mux.HandleFunc("GET /api/dishes", s.handleDishes)
	mux.HandleFunc("GET /api/restaurants", s.handleRestaurants)
	mux.HandleFunc("GET /api/addresses", s.handleAddresses)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/orders", s.handlePlaceOrder)
	mux.HandleFunc("DELETE /api/orders/{id}", s.handleDeleteOrder)

	handler := s.authenticate(mux)

	outer := http.NewServeMux()
	outer.Handle("/api/", handler)
	outer.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return outer
}

// authenticate verifies the caller's HS256 bearer token.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		_, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.secret, nil
		}, jwt.WithExpirationRequired())
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// forward performs one upstream call with the session cookie attached and
// decodes the JSON response into out.
func (s *Server) forward(r *http.Request, method, path string, query url.Values, body io.Reader, out any) error {
	u := s.upstreamURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(r.Context(), method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("Cookie", s.cookie)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upstream error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) upstreamError(w http.ResponseWriter, op string, err error) {
	s.log.Error("upstream call failed", zap.String("op", op), zap.Error(err))
	s.writeError(w, http.StatusBadGateway, err.Error())
}
