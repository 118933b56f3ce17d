package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// property is an inventory record. The catalog is an in-process fixture
// standing in for the booking system integration.
type property struct {
	ID             string
	Name           string
	Description    string
	Location       string
	Capacity       int
	BasePrice      int
	CheckIn        string
	CheckOut       string
	Amenities      []string
	AvailableDates []string
}

var catalog = map[string]property{
	"miami_beach_01": {
		ID:          "miami_beach_01",
		Name:        "Ocean View Apartment - Miami Beach",
		Description: "Stunning 2BR/2BA apartment with direct ocean views",
		Location:    "Miami Beach, FL",
		Capacity:    4,
		BasePrice:   150,
		CheckIn:     "3:00 PM",
		CheckOut:    "11:00 AM",
		Amenities:   []string{"Ocean view", "WiFi", "Kitchen", "Parking", "Pool", "Gym"},
		AvailableDates: []string{
			"2024-03-15", "2024-03-16", "2024-03-17", "2024-03-20", "2024-03-25",
		},
	},
	"downtown_02": {
		ID:          "downtown_02",
		Name:        "Downtown Miami Loft",
		Description: "Modern loft in the heart of downtown Miami",
		Location:    "Downtown Miami, FL",
		Capacity:    2,
		BasePrice:   120,
		CheckIn:     "3:00 PM",
		CheckOut:    "11:00 AM",
		Amenities:   []string{"City view", "WiFi", "Kitchen", "Parking", "Rooftop terrace"},
		AvailableDates: []string{
			"2024-03-18", "2024-03-19", "2024-03-22", "2024-03-23", "2024-03-24",
		},
	},
	"brickell_03": {
		ID:          "brickell_03",
		Name:        "Brickell High-Rise Condo",
		Description: "Luxury condo with bay views in Brickell",
		Location:    "Brickell, Miami, FL",
		Capacity:    6,
		BasePrice:   200,
		CheckIn:     "4:00 PM",
		CheckOut:    "11:00 AM",
		Amenities:   []string{"Bay view", "WiFi", "Kitchen", "Parking", "Pool", "Spa", "Concierge"},
		AvailableDates: []string{
			"2024-03-15", "2024-03-16", "2024-03-21", "2024-03-22", "2024-03-26",
		},
	},
}

const dateLayout = "2006-01-02"

// CheckAvailabilityInput identifies a property and a date range.
type CheckAvailabilityInput struct {
	PropertyID string `json:"propertyId" jsonschema_description:"Property identifier, e.g. miami_beach_01 or downtown_02"`
	CheckIn    string `json:"checkIn" jsonschema_description:"Check-in date in YYYY-MM-DD format"`
	CheckOut   string `json:"checkOut" jsonschema_description:"Check-out date in YYYY-MM-DD format"`
}

// PropertyDetailsInput identifies a single property.
type PropertyDetailsInput struct {
	PropertyID string `json:"propertyId" jsonschema_description:"Property identifier"`
}

// ListPropertiesInput has no parameters; the model calls it to see the
// whole portfolio.
type ListPropertiesInput struct{}

// RegisterPropertyTools adds the booking tools to the registry.
func RegisterPropertyTools(r *Registry) error {
	checkAvailability, err := New(
		"checkAvailability",
		"Check availability and pricing for a property over a date range. "+
			"Requires a property ID and check-in/check-out dates in YYYY-MM-DD format.",
		checkAvailabilityHandler,
	)
	if err != nil {
		return err
	}

	propertyDetails, err := New(
		"propertyDetails",
		"Get detailed information about a specific property: description, "+
			"amenities, capacity, pricing, and check-in/check-out times.",
		propertyDetailsHandler,
	)
	if err != nil {
		return err
	}

	listProperties, err := New(
		"listProperties",
		"List all managed properties with their IDs, locations, capacities, and nightly rates.",
		listPropertiesHandler,
	)
	if err != nil {
		return err
	}

	for _, t := range []*Tool{checkAvailability, propertyDetails, listProperties} {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func checkAvailabilityHandler(_ context.Context, in CheckAvailabilityInput) (string, error) {
	prop, ok := catalog[in.PropertyID]
	if !ok {
		return fmt.Sprintf("Property %s not found. Available properties: %s",
			in.PropertyID, strings.Join(catalogIDs(), ", ")), nil
	}

	checkIn, err := time.Parse(dateLayout, in.CheckIn)
	if err != nil {
		return "Invalid check-in date. Please use YYYY-MM-DD format.", nil
	}
	checkOut, err := time.Parse(dateLayout, in.CheckOut)
	if err != nil {
		return "Invalid check-out date. Please use YYYY-MM-DD format.", nil
	}
	if !checkIn.Before(checkOut) {
		return "Check-in date must be before check-out date.", nil
	}

	available := make(map[string]bool, len(prop.AvailableDates))
	for _, d := range prop.AvailableDates {
		available[d] = true
	}

	nights := 0
	openNights := 0
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		nights++
		if available[d.Format(dateLayout)] {
			openNights++
		}
	}

	if openNights == nights {
		total := nights * prop.BasePrice
		return fmt.Sprintf(
			"AVAILABLE: %s\nDates: %s to %s (%d nights)\nPrice: $%d/night x %d nights = $%d\nAll requested dates are available.",
			prop.Name, in.CheckIn, in.CheckOut, nights, prop.BasePrice, nights, total), nil
	}
	return fmt.Sprintf(
		"PARTIALLY AVAILABLE: %s\nRequested: %s to %s (%d nights)\nAvailable: %d nights\nUnavailable: %d nights\nTry different dates or check other properties.",
		prop.Name, in.CheckIn, in.CheckOut, nights, openNights, nights-openNights), nil
}

func propertyDetailsHandler(_ context.Context, in PropertyDetailsInput) (string, error) {
	prop, ok := catalog[in.PropertyID]
	if !ok {
		return fmt.Sprintf("Property %s not found. Available properties: %s",
			in.PropertyID, strings.Join(catalogIDs(), ", ")), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", prop.Name)
	fmt.Fprintf(&b, "Location: %s\n", prop.Location)
	fmt.Fprintf(&b, "Capacity: %d guests\n", prop.Capacity)
	fmt.Fprintf(&b, "Price: $%d/night\n\n", prop.BasePrice)
	fmt.Fprintf(&b, "Description: %s\n\n", prop.Description)
	b.WriteString("Amenities:\n")
	for _, a := range prop.Amenities {
		fmt.Fprintf(&b, "- %s\n", a)
	}
	fmt.Fprintf(&b, "\nCheck-in: %s\nCheck-out: %s", prop.CheckIn, prop.CheckOut)
	return b.String(), nil
}

func listPropertiesHandler(_ context.Context, _ ListPropertiesInput) (string, error) {
	var b strings.Builder
	b.WriteString("Available properties:\n")
	for i, id := range catalogIDs() {
		prop := catalog[id]
		fmt.Fprintf(&b, "\n%d. %s - %s\n   %s | %d guests | $%d/night\n",
			i+1, prop.ID, prop.Name, prop.Location, prop.Capacity, prop.BasePrice)
	}
	b.WriteString("\nUse property IDs to check availability or get details.")
	return b.String(), nil
}

func catalogIDs() []string {
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
