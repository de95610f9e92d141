package models

// Metal identifiers used as MetalRateTable keys.
const (
	MetalGold     = "gold"
	MetalSilver   = "silver"
	MetalPlatinum = "platinum"
)

// MetalRateTable maps a metal identifier to its price per gram.
type MetalRateTable map[string]float64

// FallbackRates is served when neither the live feed nor the cache is available.
func FallbackRates() MetalRateTable {
	return MetalRateTable{
		MetalGold:     24.5,
		MetalSilver:   0.32,
		MetalPlatinum: 31.1,
	}
}

// Clone returns an independent copy of the table.
func (t MetalRateTable) Clone() MetalRateTable {
	if t == nil {
		return nil
	}
	out := make(MetalRateTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// PreciousMaterial is one metal/karat combination used in a piece.
type PreciousMaterial struct {
	Name   string  `json:"name"`
	Karat  Karat   `json:"karat"`
	Weight float64 `json:"weight"`
}

// Jewelry is a single piece sold by a shop.
type Jewelry struct {
	ID                string             `json:"_id"`
	Name              string             `json:"name,omitempty"`
	Type              string             `json:"type,omitempty"`
	Shop              Ref                `json:"shop,omitempty"`
	OriginPrice       float64            `json:"originPrice"`
	PreciousMaterials []PreciousMaterial `json:"preciousMaterials"`
	Size              string             `json:"size,omitempty"`
}

// Collection is a jeweler-curated bundle sold as one orderable unit.
type Collection struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name,omitempty"`
	Shop        Ref       `json:"shop,omitempty"`
	OriginPrice float64   `json:"originPrice"`
	Jewelry     []Jewelry `json:"jewelry"`
}

// Service is a flat-priced jeweler service (cleaning, resizing, ...).
type Service struct {
	ID    string  `json:"_id"`
	Name  string  `json:"name,omitempty"`
	Shop  Ref     `json:"shop,omitempty"`
	Price float64 `json:"price"`
}
