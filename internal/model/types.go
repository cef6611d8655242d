// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
)

// Ion identifies one of the tracked brewing ions.
type Ion int

// Tracked ions, in display order.
const (
	IonCa Ion = iota
	IonMg
	IonNa
	IonCl
	IonHCO3
	IonSO4
	IonCount
)

// AllIons lists every tracked ion in display order.
var AllIons = []Ion{IonCa, IonMg, IonNa, IonCl, IonHCO3, IonSO4}

var ionNames = [IonCount]string{"Ca", "Mg", "Na", "Cl", "HCO3", "SO4"}

func (i Ion) String() string {
	if i < 0 || i >= IonCount {
		return fmt.Sprintf("Ion(%d)", int(i))
	}
	return ionNames[i]
}

// IonValues holds one value per ion, indexed by Ion.
type IonValues [IonCount]float64

// Get returns the value for ion.
func (v IonValues) Get(ion Ion) float64 {
	return v[ion]
}

// Role is the slot a water profile occupies in a recipe.
type Role string

// Water profile roles.
const (
	RoleNone   Role = ""
	RoleBase   Role = "base"
	RoleTarget Role = "target"
)

// WaterProfile is a named water chemistry sample.
type WaterProfile struct {
	ID               string  `toml:"-" json:"id,omitempty"`
	Name             string  `toml:"name" json:"name"`
	Calcium          float64 `toml:"calcium" json:"calcium_ppm"`
	Magnesium        float64 `toml:"magnesium" json:"magnesium_ppm"`
	Sodium           float64 `toml:"sodium" json:"sodium_ppm"`
	Chloride         float64 `toml:"chloride" json:"chloride_ppm"`
	Bicarbonate      float64 `toml:"bicarbonate" json:"bicarbonate_ppm"`
	Sulfate          float64 `toml:"sulfate" json:"sulfate_ppm"`
	Alkalinity       float64 `toml:"alkalinity" json:"alkalinity"`
	AlkalinityAsHCO3 bool    `toml:"alkalinity-as-hco3" json:"alkalinity_as_hco3"`
	MashRO           float64 `toml:"mash-ro" json:"mash_ro"`
	SpargeRO         float64 `toml:"sparge-ro" json:"sparge_ro"`
	Notes            string  `toml:"notes" json:"notes,omitempty"`
	Role             Role    `toml:"-" json:"role,omitempty"`
	// Transient marks an unsaved working copy that has not been committed.
	Transient bool `toml:"-" json:"transient,omitempty"`
}

// PPM returns the profile's concentration of ion in ppm.
func (w WaterProfile) PPM(ion Ion) float64 {
	switch ion {
	case IonCa:
		return w.Calcium
	case IonMg:
		return w.Magnesium
	case IonNa:
		return w.Sodium
	case IonCl:
		return w.Chloride
	case IonHCO3:
		return w.Bicarbonate
	case IonSO4:
		return w.Sulfate
	default:
		return 0
	}
}

// Ions returns all ion concentrations of the profile.
func (w WaterProfile) Ions() IonValues {
	var out IonValues
	for _, ion := range AllIons {
		out[ion] = w.PPM(ion)
	}
	return out
}

// Validate checks the profile's value ranges.
func (w WaterProfile) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("water profile name must not be empty")
	}
	for _, ion := range AllIons {
		if w.PPM(ion) < 0 {
			return fmt.Errorf("water profile %q: %s must be >= 0", w.Name, ion)
		}
	}
	if w.Alkalinity < 0 {
		return fmt.Errorf("water profile %q: alkalinity must be >= 0", w.Name)
	}
	if w.MashRO < 0 || w.MashRO > 1 {
		return fmt.Errorf("water profile %q: mash-ro must be between 0 and 1", w.Name)
	}
	if w.SpargeRO < 0 || w.SpargeRO > 1 {
		return fmt.Errorf("water profile %q: sparge-ro must be between 0 and 1", w.Name)
	}
	return nil
}

// SaltKind identifies a salt or acid addition.
type SaltKind string

// Supported salts and acids.
const (
	CaCl2    SaltKind = "CaCl2"
	CaCO3    SaltKind = "CaCO3"
	CaSO4    SaltKind = "CaSO4"
	MgSO4    SaltKind = "MgSO4"
	NaCl     SaltKind = "NaCl"
	NaHCO3   SaltKind = "NaHCO3"
	Lactic   SaltKind = "Lactic"
	AcidMalt SaltKind = "AcidMalt"
	H3PO4    SaltKind = "H3PO4"
)

// SaltKinds lists the mineral salts in display order.
var SaltKinds = []SaltKind{CaCl2, CaCO3, CaSO4, MgSO4, NaCl, NaHCO3}

// AcidKinds lists the acid additions in display order.
var AcidKinds = []SaltKind{Lactic, AcidMalt, H3PO4}

// IsAcid reports whether the kind is an acid addition.
func (k SaltKind) IsAcid() bool {
	return k == Lactic || k == AcidMalt || k == H3PO4
}

// ParseSaltKind resolves a case-insensitive salt or acid name.
func ParseSaltKind(s string) (SaltKind, error) {
	s = strings.TrimSpace(s)
	for _, k := range SaltKinds {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	for _, k := range AcidKinds {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	switch strings.ToLower(s) {
	case "acid-malt", "acidulated":
		return AcidMalt, nil
	case "phosphoric":
		return H3PO4, nil
	}
	return "", fmt.Errorf("unknown salt kind %q", s)
}

// WaterTarget is the water volume a salt is dissolved into.
type WaterTarget string

// Addition targets.
const (
	TargetMash   WaterTarget = "mash"
	TargetSparge WaterTarget = "sparge"
)

// ParseWaterTarget resolves "mash" or "sparge"; empty means mash.
func ParseWaterTarget(s string) (WaterTarget, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mash":
		return TargetMash, nil
	case "sparge":
		return TargetSparge, nil
	default:
		return "", fmt.Errorf("unknown water target %q (use mash or sparge)", s)
	}
}

// SaltAddition is one entry in the salt ledger.
type SaltAddition struct {
	Kind    SaltKind    `toml:"kind" json:"kind"`
	AmountG float64     `toml:"amount-g" json:"amount_g"`
	Target  WaterTarget `toml:"target" json:"target"`
}

// Fermentable is one grain bill entry.
type Fermentable struct {
	Name           string  `toml:"name" json:"name"`
	AmountKg       float64 `toml:"amount-kg" json:"amount_kg"`
	ColorSRM       float64 `toml:"color-srm" json:"color_srm"`
	DiastaticPower float64 `toml:"diastatic-power" json:"diastatic_power_lintner"`
}

// Mash describes the recipe's mash water volumes.
type Mash struct {
	InfusionL float64 `toml:"infusion-l" json:"infusion_l"`
	SpargeL   float64 `toml:"sparge-l" json:"sparge_l"`
	Steps     int     `toml:"steps" json:"steps"`
}

// Recipe is the snapshot consumed by the chemistry session.
type Recipe struct {
	Name         string         `toml:"name" json:"name"`
	OG           float64        `toml:"og" json:"og"`
	ColorSRM     float64        `toml:"color-srm" json:"color_srm"`
	Mash         *Mash          `toml:"mash" json:"mash,omitempty"`
	Fermentables []Fermentable  `toml:"fermentable" json:"fermentables"`
	Salts        []SaltAddition `toml:"salt" json:"salts,omitempty"`
}

// RecipeChemistry is the committed water chemistry of a recipe. A nil
// profile means the slot is unset.
type RecipeChemistry struct {
	Base   *WaterProfile
	Target *WaterProfile
	Salts  []SaltAddition
}

// MashGeometry holds the derived mash totals used by the chemistry models.
type MashGeometry struct {
	TotalInfusionL     float64 `json:"total_infusion_l"`
	TotalSpargeL       float64 `json:"total_sparge_l"`
	TotalMashWaterL    float64 `json:"total_mash_water_l"`
	TotalGrainKg       float64 `json:"total_grain_kg"`
	WeightedGrainColor float64 `json:"weighted_grain_color"`
	Thickness          float64 `json:"thickness"`
}
