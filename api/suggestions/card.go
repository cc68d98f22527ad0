package suggestions

import "github.com/kilianp07/bikeflow/core/model"

// Status is the urgency tier of a station card.
type Status string

const (
	StatusCritical Status = "critical"
	StatusWarning  Status = "warning"
	StatusBalanced Status = "balanced"
)

// Fill tells which way a station is out of balance.
type Fill string

const (
	FillEmpty Fill = "empty"
	FillFull  Fill = "full"
	FillNull  Fill = "null"
)

// Card is one station of the map view.
type Card struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Capacity  int     `json:"capacity"`
	Available int     `json:"available"`
	Status    Status  `json:"status"`
	Type      Fill    `json:"type"`
}

// NewCard builds the card of st from its live inventory.
func NewCard(st model.Station, sn model.InventorySnapshot) Card {
	status, fill := Classify(sn.CurrentBikes, sn.Capacity)
	return Card{
		ID:        st.ID,
		Name:      st.Name,
		Lat:       st.Lat,
		Lng:       st.Lng,
		Capacity:  sn.Capacity,
		Available: sn.CurrentBikes,
		Status:    status,
		Type:      fill,
	}
}

// Classify maps the fill ratio of a station to a card status. The critical
// bands are checked before the warning bands.
func Classify(available, capacity int) (Status, Fill) {
	if capacity <= 0 {
		return StatusBalanced, FillNull
	}
	ratio := float64(available) / float64(capacity)
	switch {
	case ratio <= 0.10:
		return StatusCritical, FillEmpty
	case ratio >= 0.90:
		return StatusCritical, FillFull
	case ratio <= 0.20:
		return StatusWarning, FillEmpty
	case ratio >= 0.80:
		return StatusWarning, FillFull
	default:
		return StatusBalanced, FillNull
	}
}
