package listing

import "testing"

func TestNormalizePropertyType(t *testing.T) {
	tests := []struct {
		raw  string
		want PropertyType
	}{
		{"Apartment", TypeApartment},
		{"appartement", TypeApartment},
		{"Entire rental unit", TypeApartment},
		{"Private room", TypeRoom},
		{"chambre", TypeRoom},
		{"Villa", TypeVilla},
		{"Hôtel", TypeHotel},
		{"boutique hotel", TypeHotel},
		{"Auberge", TypeGuesthouse},
		{"Apartment in Ouakam", TypeApartment},
		{"castle", TypeOther},
		{"", TypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizePropertyType(tt.raw); got != tt.want {
				t.Errorf("NormalizePropertyType(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeCity(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"dakar", "Dakar"},
		{"Dakar", "Dakar"},
		{"thies", "Thiès"},
		{"saint louis", "Saint-Louis"},
		{"  Mbour  ", "Mbour"},
		{"Touba", "Touba"}, // unknown city passes through
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeCity(tt.raw); got != tt.want {
			t.Errorf("NormalizeCity(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestValidPlatform(t *testing.T) {
	for _, p := range []string{"airbnb", "booking", "expat_dakar", "jumia_house"} {
		if !ValidPlatform(p) {
			t.Errorf("ValidPlatform(%q) = false, want true", p)
		}
	}
	for _, p := range []string{"", "craigslist", "AIRBNB"} {
		if ValidPlatform(p) {
			t.Errorf("ValidPlatform(%q) = true, want false", p)
		}
	}
}

func TestQualityScore(t *testing.T) {
	empty := &Listing{Platform: PlatformAirbnb, PlatformID: "1"}
	if got := empty.QualityScore(); got != 0 {
		t.Errorf("empty listing score = %d, want 0", got)
	}

	price := 45000.0
	host := "Awa Ndiaye"
	lat, lng := 14.69, -17.44
	rating := 4.8
	beds := int64(2)
	full := &Listing{
		Platform:      PlatformAirbnb,
		PlatformID:    "2",
		URL:           "https://example.com",
		Title:         "Villa",
		LocationText:  "Ngor, Dakar",
		PricePerNight: &price,
		Photos:        []string{"p.jpg"},
		Latitude:      &lat,
		Longitude:     &lng,
		HostName:      &host,
		Bedrooms:      &beds,
		Rating:        &rating,
	}
	if got := full.QualityScore(); got != 100 {
		t.Errorf("full listing score = %d, want 100", got)
	}
}
