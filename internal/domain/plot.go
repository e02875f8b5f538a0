package domain

import "time"

// Thai land units: 1 rai = 4 ngan = 400 square wa.
const (
	NganPerRai = 4
	WaPerRai   = 400
)

// Plot is a piece of farmland owned by one user.
type Plot struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	SizeRai   *float64  `json:"sizeRai,omitempty"`
	SizeNgan  *float64  `json:"sizeNgan,omitempty"`
	SizeWa    *float64  `json:"sizeWa,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TotalRai returns the plot area in rai. Missing units count as zero.
func (p *Plot) TotalRai() float64 {
	return TotalRai(p.SizeRai, p.SizeNgan, p.SizeWa)
}

// TotalRai folds a rai/ngan/wa triple into rai.
func TotalRai(rai, ngan, wa *float64) float64 {
	var total float64
	if rai != nil {
		total += *rai
	}
	if ngan != nil {
		total += *ngan / NganPerRai
	}
	if wa != nil {
		total += *wa / WaPerRai
	}
	return total
}
