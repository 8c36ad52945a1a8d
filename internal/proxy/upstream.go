package proxy

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"meal-order-assistant/internal/catering"
)

// Upstream wire shapes. These mirror the catering platform's JSON as-is and
// are translated into the assistant's types at the proxy boundary.

type upstreamCalendar struct {
	Days []upstreamDay `json:"days"`
}

type upstreamDay struct {
	Date  string         `json:"date"`
	Meals []upstreamMeal `json:"meals"`
}

type upstreamMeal struct {
	MealType          string `json:"mealType"`
	State             string `json:"state"`
	ChannelID         string `json:"channelId"`
	OrderID           string `json:"orderId"`
	CloseTime         string `json:"closeTime"`
	DeliveryAddressID string `json:"deliveryAddressId"`
	CorpNamespace     string `json:"corpNamespace"`
}

type upstreamMenu struct {
	Items []upstreamMenuItem `json:"items"`
}

type upstreamMenuItem struct {
	ID              catering.DishID `json:"id"`
	Caption         string          `json:"caption"`
	PriceCents      int             `json:"priceCents"`
	DescriptionHTML string          `json:"descriptionHtml"`
	Restaurant      struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"restaurant"`
}

type upstreamRestaurants struct {
	Restaurants []struct {
		ID   catering.DishID `json:"id"`
		Name string          `json:"name"`
	} `json:"restaurants"`
}

type upstreamAddresses struct {
	Addresses []struct {
		AddressID string `json:"addressId"`
		Caption   string `json:"caption"`
		IsDefault bool   `json:"isDefault"`
	} `json:"addresses"`
}

type upstreamHistory struct {
	Orders []struct {
		Date           string `json:"date"`
		MealType       string `json:"mealType"`
		DishCaption    string `json:"dishCaption"`
		RestaurantName string `json:"restaurantName"`
		PriceCents     int    `json:"priceCents"`
	} `json:"orders"`
}

type upstreamOrderResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	Message string `json:"message"`
}

func mapStatus(state string) catering.SlotStatus {
	switch strings.ToUpper(state) {
	case "AVAILABLE", "OPEN":
		return catering.StatusOpen
	case "ORDERED":
		return catering.StatusOrdered
	case "NOT_OFFERED":
		return catering.StatusNotOffered
	default:
		return catering.StatusClosed
	}
}

func mapCalendar(up upstreamCalendar) []catering.Slot {
	var slots []catering.Slot
	for _, day := range up.Days {
		for _, meal := range day.Meals {
			slots = append(slots, catering.Slot{
				Date:      day.Date,
				Period:    catering.MealPeriod(strings.ToUpper(meal.MealType)),
				Status:    mapStatus(meal.State),
				Channel:   meal.ChannelID,
				OrderID:   meal.OrderID,
				CloseTime: meal.CloseTime,
				AddressID: meal.DeliveryAddressID,
				Namespace: meal.CorpNamespace,
			})
		}
	}
	return slots
}

func mapMenu(up upstreamMenu) []catering.Dish {
	dishes := make([]catering.Dish, 0, len(up.Items))
	for _, item := range up.Items {
		dishes = append(dishes, catering.Dish{
			ID:             item.ID,
			Name:           item.Caption,
			Price:          item.PriceCents,
			Description:    htmlToText(item.DescriptionHTML),
			RestaurantID:   item.Restaurant.ID,
			RestaurantName: item.Restaurant.Name,
		})
	}
	return dishes
}

// mapRestaurants presents a restaurant list through the dish shape, for
// namespace types that expose restaurants instead of dishes.
func mapRestaurants(up upstreamRestaurants) []catering.Dish {
	dishes := make([]catering.Dish, 0, len(up.Restaurants))
	for _, r := range up.Restaurants {
		dishes = append(dishes, catering.Dish{
			ID:             r.ID,
			Name:           r.Name,
			RestaurantID:   string(r.ID),
			RestaurantName: r.Name,
		})
	}
	return dishes
}

func mapAddresses(up upstreamAddresses) catering.AddressBook {
	book := catering.AddressBook{Addresses: make([]catering.Address, 0, len(up.Addresses))}
	for _, a := range up.Addresses {
		book.Addresses = append(book.Addresses, catering.Address{ID: a.AddressID, Name: a.Caption})
		if a.IsDefault && book.DefaultID == "" {
			book.DefaultID = a.AddressID
		}
	}
	return book
}

func mapHistory(up upstreamHistory) []catering.HistoricalOrder {
	orders := make([]catering.HistoricalOrder, 0, len(up.Orders))
	for _, o := range up.Orders {
		orders = append(orders, catering.HistoricalOrder{
			Date:           o.Date,
			Period:         catering.MealPeriod(strings.ToUpper(o.MealType)),
			DishName:       o.DishCaption,
			RestaurantName: o.RestaurantName,
			Price:          o.PriceCents,
		})
	}
	return orders
}

// htmlToText flattens the upstream's HTML dish descriptions to plain text.
func htmlToText(html string) string {
	if html == "" || !strings.Contains(html, "<") {
		return strings.TrimSpace(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
