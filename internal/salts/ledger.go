package salts

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/verte-zerg/mashph/internal/model"
)

// ErrInvalidInput is returned for additions the ledger refuses to hold.
var ErrInvalidInput = errors.New("invalid salt addition")

// Ledger is the ordered list of salt and acid additions for a mash.
type Ledger struct {
	additions []model.SaltAddition
}

// NewLedger builds a ledger from additions, validating each one.
func NewLedger(additions []model.SaltAddition) (*Ledger, error) {
	l := &Ledger{}
	for i, a := range additions {
		if err := l.Add(a); err != nil {
			return nil, fmt.Errorf("addition %d: %w", i+1, err)
		}
	}
	return l, nil
}

// Add appends an addition. The amount must be a positive, finite number of grams.
func (l *Ledger) Add(a model.SaltAddition) error {
	kind, err := model.ParseSaltKind(string(a.Kind))
	if err != nil {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, a.Kind)
	}
	a.Kind = kind
	if !(a.AmountG > 0) || math.IsInf(a.AmountG, 0) {
		return fmt.Errorf("%w: %s amount must be > 0, got %v", ErrInvalidInput, a.Kind, a.AmountG)
	}
	if a.Target == "" {
		a.Target = model.TargetMash
	}
	if a.Target != model.TargetMash && a.Target != model.TargetSparge {
		return fmt.Errorf("%w: unknown target %q", ErrInvalidInput, a.Target)
	}
	l.additions = append(l.additions, a)
	return nil
}

// Remove drops the entries at the given positions. Out-of-range and repeated
// indices are ignored; the remaining entries keep their order.
func (l *Ledger) Remove(indices ...int) {
	if len(indices) == 0 || len(l.additions) == 0 {
		return
	}
	dead := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(l.additions) {
			dead[idx] = struct{}{}
		}
	}
	if len(dead) == 0 {
		return
	}
	kept := make([]model.SaltAddition, 0, len(l.additions)-len(dead))
	for i, a := range l.additions {
		if _, ok := dead[i]; ok {
			continue
		}
		kept = append(kept, a)
	}
	l.additions = kept
}

// Len returns the number of additions.
func (l *Ledger) Len() int {
	return len(l.additions)
}

// Additions returns a copy of the ledger entries.
func (l *Ledger) Additions() []model.SaltAddition {
	return append([]model.SaltAddition(nil), l.additions...)
}

// Clone returns an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{additions: l.Additions()}
}

// TotalIon returns the milligrams of ion contributed by every addition.
// Divided by litres of water this gives ppm.
func (l *Ledger) TotalIon(ion model.Ion) float64 {
	total := 0.0
	for _, a := range l.additions {
		total += a.AmountG * YieldMg(a.Kind, ion)
	}
	return total
}

// TotalIons returns TotalIon for every ion.
func (l *Ledger) TotalIons() model.IonValues {
	var out model.IonValues
	for _, ion := range model.AllIons {
		out[ion] = l.TotalIon(ion)
	}
	return out
}

// TotalAcidWeight returns the grams of the given acid. Non-acid kinds return 0.
func (l *Ledger) TotalAcidWeight(kind model.SaltKind) float64 {
	if !kind.IsAcid() {
		return 0
	}
	return l.DisplayTotal(kind)
}

// DisplayTotal returns the grams added of a kind, for display.
func (l *Ledger) DisplayTotal(kind model.SaltKind) float64 {
	total := 0.0
	for _, a := range l.additions {
		if a.Kind == kind {
			total += a.AmountG
		}
	}
	return total
}

// ParseAddition reads "KIND:GRAMS[:mash|sparge]". Spaces work as separators
// too. The result is not range checked; Add does that.
func ParseAddition(s string) (model.SaltAddition, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ':' || r == ' ' || r == '\t'
	})
	if len(fields) < 2 || len(fields) > 3 {
		return model.SaltAddition{}, fmt.Errorf("%w: expected KIND:GRAMS[:mash|sparge], got %q", ErrInvalidInput, s)
	}
	kind, err := model.ParseSaltKind(fields[0])
	if err != nil {
		return model.SaltAddition{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	grams, err := strconv.ParseFloat(strings.TrimSuffix(strings.ToLower(fields[1]), "g"), 64)
	if err != nil {
		return model.SaltAddition{}, fmt.Errorf("%w: bad amount %q", ErrInvalidInput, fields[1])
	}
	target := model.TargetMash
	if len(fields) == 3 {
		target, err = model.ParseWaterTarget(fields[2])
		if err != nil {
			return model.SaltAddition{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return model.SaltAddition{Kind: kind, AmountG: grams, Target: target}, nil
}
