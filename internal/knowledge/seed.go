package knowledge

// SeedChunk is one entry of the starter corpus loaded by the ingest
// command on a fresh database.
type SeedChunk struct {
	Content  string
	Metadata map[string]any
}

// SeedCorpus returns the business knowledge for the managed Miami
// portfolio. Content is plain text; structured facts live in metadata.
func SeedCorpus() []SeedChunk {
	return []SeedChunk{
		{
			Content: "We manage 3 premium Airbnb properties in Miami: Ocean View Apartment in Miami Beach " +
				"($150/night), Downtown Miami Loft ($120/night), and Brickell High-Rise Condo ($200/night).",
			Metadata: map[string]any{"category": "properties", "location": "miami", "type": "overview"},
		},
		{
			Content: "Ocean View Apartment (miami_beach_01) is a 2BR/2BA with direct ocean views, " +
				"accommodates 4 guests, includes pool and gym access.",
			Metadata: map[string]any{"category": "properties", "property_id": "miami_beach_01", "type": "details"},
		},
		{
			Content: "Downtown Miami Loft (downtown_02) is a modern loft in downtown, accommodates 2 guests, " +
				"features city views and rooftop terrace.",
			Metadata: map[string]any{"category": "properties", "property_id": "downtown_02", "type": "details"},
		},
		{
			Content: "Brickell High-Rise Condo (brickell_03) is a luxury condo with bay views, " +
				"accommodates 6 guests, includes spa and concierge services.",
			Metadata: map[string]any{"category": "properties", "property_id": "brickell_03", "type": "details"},
		},
		{
			Content: "Standard check-in time is 3:00 PM and check-out time is 11:00 AM for most properties. " +
				"Brickell condo has 4:00 PM check-in.",
			Metadata: map[string]any{"category": "policies", "type": "checkin_checkout"},
		},
		{
			Content: "We offer 24/7 customer support for all guests during their stay. " +
				"Contact us via WhatsApp for immediate assistance.",
			Metadata: map[string]any{"category": "support", "availability": "24_7"},
		},
		{
			Content: "Cancellation policy allows free cancellation up to 48 hours before check-in. " +
				"Cancellations within 48 hours are subject to one night charge.",
			Metadata: map[string]any{"category": "policies", "type": "cancellation"},
		},
		{
			Content: "All properties include free WiFi, fully equipped kitchen, parking, and professional cleaning. " +
				"Premium properties include additional amenities.",
			Metadata: map[string]any{"category": "amenities", "type": "standard"},
		},
		{
			Content: "For availability checks, provide property ID (miami_beach_01, downtown_02, or brickell_03) " +
				"and desired dates in YYYY-MM-DD format.",
			Metadata: map[string]any{"category": "booking", "type": "instructions"},
		},
		{
			Content: "Peak season rates apply during December-April. Off-season discounts available May-November. " +
				"Weekly stays get 10% discount.",
			Metadata: map[string]any{"category": "pricing", "type": "seasonal"},
		},
	}
}
