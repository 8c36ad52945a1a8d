package catering

import (
	"encoding/json"
	"strings"
)

// DishID is an upstream dish identifier. The platform is inconsistent about
// whether ids arrive as JSON strings or numbers, so the raw literal is kept
// and compared loosely.
type DishID string

// UnmarshalJSON accepts both `"55"` and `55`.
func (id *DishID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = DishID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = DishID(n.String())
	return nil
}

// EqualsLoose reports whether the id matches another identifier after
// trimming, ignoring the string/number representation difference.
func (id DishID) EqualsLoose(other string) bool {
	return strings.TrimSpace(string(id)) == strings.TrimSpace(other)
}

// Dish is a single orderable item from a slot's menu. For namespaces that
// expose restaurants instead of dishes, a restaurant is presented through the
// same shape.
type Dish struct {
	ID             DishID `json:"id"`
	Name           string `json:"name"`
	Price          int    `json:"price"` // minor currency units
	Description    string `json:"description,omitempty"`
	RestaurantID   string `json:"restaurantId,omitempty"`
	RestaurantName string `json:"restaurantName,omitempty"`
}

// Address is a delivery address scoped to a namespace. Identifiers are not
// stable across namespaces; only the display name is portable.
type Address struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AddressBook is the address list for one namespace plus the namespace's own
// suggested default.
type AddressBook struct {
	Addresses []Address `json:"addresses"`
	DefaultID string    `json:"defaultId,omitempty"`
}

// ByName returns the first address whose display name matches, if any.
func (b AddressBook) ByName(name string) (Address, bool) {
	for _, a := range b.Addresses {
		if a.Name == name {
			return a, true
		}
	}
	return Address{}, false
}

// ByID returns the address with the given identifier, if any.
func (b AddressBook) ByID(id string) (Address, bool) {
	for _, a := range b.Addresses {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}

// HistoricalOrder is one previously delivered order, used as taste-profile
// input for plan generation.
type HistoricalOrder struct {
	Date           string     `json:"date"`
	Period         MealPeriod `json:"period"`
	DishName       string     `json:"dishName"`
	RestaurantName string     `json:"restaurantName,omitempty"`
	Price          int        `json:"price,omitempty"`
}

// PlaceOrderRequest carries everything needed to place one order. The
// upstream wants the resolved address in both the corp and user roles.
type PlaceOrderRequest struct {
	Channel       string `json:"channel"`
	DishID        string `json:"dishId"`
	TargetTime    string `json:"targetTime"`
	CorpAddressID string `json:"corpAddressId"`
	UserAddressID string `json:"userAddressId"`
}
