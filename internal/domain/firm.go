package domain

// SizingStrategy is the closed enum of bet-sizing strategies a firm can be
// registered with. See internal/application/sizing for the formulas.
type SizingStrategy string

const (
	KellyConservative  SizingStrategy = "KellyConservative"
	FixedFractional    SizingStrategy = "FixedFractional"
	Proportional       SizingStrategy = "Proportional"
	MartingaleModified SizingStrategy = "MartingaleModified"
	AntiMartingale     SizingStrategy = "AntiMartingale"
)

// Firm is the identity of one model-backed trading agent. Immutable after
// registration.
type Firm struct {
	Name           string `gorm:"primaryKey"`
	ModelID        string
	ColorTag       string
	SizingStrategy SizingStrategy
}
