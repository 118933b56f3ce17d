package tools

import (
	"context"
	"strings"
	"testing"
)

func propertyRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := RegisterPropertyTools(r); err != nil {
		t.Fatalf("RegisterPropertyTools: %v", err)
	}
	return r
}

func TestCheckAvailabilityFullyAvailable(t *testing.T) {
	r := propertyRegistry(t)
	out, err := r.Dispatch(context.Background(), "checkAvailability", map[string]any{
		"propertyId": "miami_beach_01",
		"checkIn":    "2024-03-15",
		"checkOut":   "2024-03-17",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.HasPrefix(out, "AVAILABLE:") {
		t.Errorf("output should report full availability, got:\n%s", out)
	}
	// 2 nights at $150.
	if !strings.Contains(out, "$300") {
		t.Errorf("output should contain total price $300, got:\n%s", out)
	}
}

func TestCheckAvailabilityPartial(t *testing.T) {
	r := propertyRegistry(t)
	out, err := r.Dispatch(context.Background(), "checkAvailability", map[string]any{
		"propertyId": "miami_beach_01",
		"checkIn":    "2024-03-15",
		"checkOut":   "2024-03-19",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !strings.HasPrefix(out, "PARTIALLY AVAILABLE:") {
		t.Errorf("output should report partial availability, got:\n%s", out)
	}
}

func TestCheckAvailabilityValidation(t *testing.T) {
	r := propertyRegistry(t)
	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			"unknown property",
			map[string]any{"propertyId": "orlando_99", "checkIn": "2024-03-15", "checkOut": "2024-03-16"},
			"not found",
		},
		{
			"bad dates",
			map[string]any{"propertyId": "downtown_02", "checkIn": "03/15/2024", "checkOut": "2024-03-16"},
			"YYYY-MM-DD",
		},
		{
			"inverted range",
			map[string]any{"propertyId": "downtown_02", "checkIn": "2024-03-20", "checkOut": "2024-03-18"},
			"must be before",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := r.Dispatch(context.Background(), "checkAvailability", tc.args)
			if err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			if !strings.Contains(out, tc.want) {
				t.Errorf("output missing %q:\n%s", tc.want, out)
			}
		})
	}
}

func TestPropertyDetails(t *testing.T) {
	r := propertyRegistry(t)
	out, err := r.Dispatch(context.Background(), "propertyDetails", map[string]any{
		"propertyId": "brickell_03",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	for _, want := range []string{"Brickell High-Rise Condo", "6 guests", "$200/night", "Concierge", "4:00 PM"} {
		if !strings.Contains(out, want) {
			t.Errorf("details missing %q:\n%s", want, out)
		}
	}
}

func TestListProperties(t *testing.T) {
	r := propertyRegistry(t)
	out, err := r.Dispatch(context.Background(), "listProperties", map[string]any{})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	for _, id := range []string{"miami_beach_01", "downtown_02", "brickell_03"} {
		if !strings.Contains(out, id) {
			t.Errorf("listing missing %q:\n%s", id, out)
		}
	}
}
