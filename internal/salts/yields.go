// Package salts maintains the salt and acid ledger for a mash.
package salts

import "github.com/verte-zerg/mashph/internal/model"

// Grams of ion released per gram of salt, from molar masses of the hydrated
// forms sold for brewing (CaCl2·2H2O, CaSO4·2H2O, MgSO4·7H2O). Carbonate from
// CaCO3 is carried as its HCO3 equivalent.
var yieldTable = map[model.SaltKind]model.IonValues{
	model.CaCl2:  {model.IonCa: 0.272, model.IonCl: 0.482},
	model.CaCO3:  {model.IonCa: 0.400, model.IonHCO3: 0.610},
	model.CaSO4:  {model.IonCa: 0.233, model.IonSO4: 0.558},
	model.MgSO4:  {model.IonMg: 0.099, model.IonSO4: 0.390},
	model.NaCl:   {model.IonNa: 0.393, model.IonCl: 0.607},
	model.NaHCO3: {model.IonNa: 0.274, model.IonHCO3: 0.726},
}

// Yield returns grams of ion per gram of salt. Acids and unknown kinds yield 0.
func Yield(kind model.SaltKind, ion model.Ion) float64 {
	y, ok := yieldTable[kind]
	if !ok {
		return 0
	}
	return y.Get(ion)
}

// YieldMg returns milligrams of ion per gram of salt.
func YieldMg(kind model.SaltKind, ion model.Ion) float64 {
	return 1000 * Yield(kind, ion)
}
