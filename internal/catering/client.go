package catering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Client is the assistant's view of the catering platform, reached through
// the proxy backend.
type Client interface {
	FetchCalendar(ctx context.Context, from, to time.Time) ([]Slot, error)
	FetchDishes(ctx context.Context, channel, targetTime string) ([]Dish, error)
	FetchRestaurants(ctx context.Context, channel, targetTime string) ([]Dish, error)
	FetchAddresses(ctx context.Context, namespace string) (AddressBook, error)
	FetchOrderHistory(ctx context.Context, from, to time.Time) ([]HistoricalOrder, error)
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (string, error)
	DeleteOrder(ctx context.Context, orderID string) error
}

type httpClient struct {
	baseURL    string
	secret     []byte
	httpClient *http.Client
}

// NewClient creates a client for the proxy at baseURL. Requests are
// authenticated with short-lived HS256 tokens signed with the shared secret.
func NewClient(baseURL string, secret []byte) Client {
	return &httpClient{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// requestToken mints a short-lived JWT for one proxy request.
func (c *httpClient) requestToken() (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(5 * time.Minute).Unix(),
		"aud": "proxy",
	})
	return token.SignedString(c.secret)
}

func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.requestToken()
	if err != nil {
		return fmt.Errorf("failed to sign request token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("proxy error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *httpClient) FetchCalendar(ctx context.Context, from, to time.Time) ([]Slot, error) {
	q := url.Values{}
	q.Set("from", from.Format(dateLayout))
	q.Set("to", to.Format(dateLayout))

	var response struct {
		Slots []Slot `json:"slots"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/calendar", q, nil, &response); err != nil {
		return nil, fmt.Errorf("fetch calendar: %w", err)
	}
	return response.Slots, nil
}

func (c *httpClient) fetchMenu(ctx context.Context, path, channel, targetTime string) ([]Dish, error) {
	q := url.Values{}
	q.Set("channel", channel)
	q.Set("time", targetTime)

	var response struct {
		Dishes []Dish `json:"dishes"`
	}
	if err := c.do(ctx, http.MethodGet, path, q, nil, &response); err != nil {
		return nil, err
	}
	return response.Dishes, nil
}

func (c *httpClient) FetchDishes(ctx context.Context, channel, targetTime string) ([]Dish, error) {
	dishes, err := c.fetchMenu(ctx, "/api/dishes", channel, targetTime)
	if err != nil {
		return nil, fmt.Errorf("fetch dishes: %w", err)
	}
	return dishes, nil
}

func (c *httpClient) FetchRestaurants(ctx context.Context, channel, targetTime string) ([]Dish, error) {
	dishes, err := c.fetchMenu(ctx, "/api/restaurants", channel, targetTime)
	if err != nil {
		return nil, fmt.Errorf("fetch restaurants: %w", err)
	}
	return dishes, nil
}

func (c *httpClient) FetchAddresses(ctx context.Context, namespace string) (AddressBook, error) {
	q := url.Values{}
	if namespace != "" {
		q.Set("namespace", namespace)
	}

	var book AddressBook
	if err := c.do(ctx, http.MethodGet, "/api/addresses", q, nil, &book); err != nil {
		return AddressBook{}, fmt.Errorf("fetch addresses: %w", err)
	}
	return book, nil
}

func (c *httpClient) FetchOrderHistory(ctx context.Context, from, to time.Time) ([]HistoricalOrder, error) {
	q := url.Values{}
	q.Set("from", from.Format(dateLayout))
	q.Set("to", to.Format(dateLayout))

	var response struct {
		Orders []HistoricalOrder `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/history", q, nil, &response); err != nil {
		return nil, fmt.Errorf("fetch order history: %w", err)
	}
	return response.Orders, nil
}

func (c *httpClient) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (string, error) {
	var response struct {
		OrderID string `json:"orderId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/orders", nil, req, &response); err != nil {
		return "", fmt.Errorf("place order: %w", err)
	}
	return response.OrderID, nil
}

func (c *httpClient) DeleteOrder(ctx context.Context, orderID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/orders/"+url.PathEscape(orderID), nil, nil, nil); err != nil {
		return fmt.Errorf("delete order %s: %w", orderID, err)
	}
	return nil
}
