// Package session owns the mutable water chemistry state of one recipe and
// recomputes the blend and mash pH after every change.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/verte-zerg/mashph/internal/log"
	"github.com/verte-zerg/mashph/internal/mashph"
	"github.com/verte-zerg/mashph/internal/model"
	"github.com/verte-zerg/mashph/internal/recipe"
	"github.com/verte-zerg/mashph/internal/salts"
	"github.com/verte-zerg/mashph/internal/water"
)

// ErrMissingMash is returned when the recipe has no mash or no mash steps.
var ErrMissingMash = errors.New("can not set strike water chemistry without a mash")

// Persister stores committed recipe water chemistry. CommitChemistry must
// apply all of c or none of it; a nil profile clears that slot.
type Persister interface {
	CommitChemistry(ctx context.Context, recipe string, c model.RecipeChemistry) (model.RecipeChemistry, error)
}

// Result is the outcome of the last successful recompute.
type Result struct {
	Recipe     string                     `json:"recipe"`
	Geometry   model.MashGeometry         `json:"geometry"`
	Blend      water.Blend                `json:"blend"`
	Prediction mashph.Prediction          `json:"prediction"`
	Salts      []model.SaltAddition       `json:"salts"`
	SaltTotals map[model.SaltKind]float64 `json:"salt_totals_g"`
	Base       *model.WaterProfile        `json:"base,omitempty"`
	Target     *model.WaterProfile        `json:"target,omitempty"`
	MashRO     float64                    `json:"mash_ro"`
	SpargeRO   float64                    `json:"sparge_ro"`
}

type snapshot struct {
	ledger   *salts.Ledger
	base     *model.WaterProfile
	target   *model.WaterProfile
	mashRO   float64
	spargeRO float64
}

// Session holds the salt ledger and the base/target slots for one recipe.
// Every mutation is followed by a full recompute. The mutation is kept even
// when that recompute fails; the last good result stays available.
type Session struct {
	predictor *mashph.Predictor

	recipe   model.Recipe
	geometry model.MashGeometry
	ledger   *salts.Ledger
	base     *model.WaterProfile
	target   *model.WaterProfile
	mashRO   float64
	spargeRO float64

	committed snapshot

	result    Result
	hasResult bool
}

// New returns an empty session using p for predictions.
func New(p *mashph.Predictor) *Session {
	if p == nil {
		p = mashph.New(mashph.DefaultConstants())
	}
	return &Session{predictor: p, ledger: &salts.Ledger{}}
}

// SetRecipe loads a recipe snapshot together with its committed waters and
// recomputes. The recipe's salts become the committed ledger. A failed
// recompute leaves the previous result in place.
func (s *Session) SetRecipe(ctx context.Context, r model.Recipe, waters []model.WaterProfile) error {
	l, err := salts.NewLedger(r.Salts)
	if err != nil {
		return fmt.Errorf("failed to load salts of %q: %w", r.Name, err)
	}
	s.recipe = r
	s.geometry = recipe.Geometry(r)
	s.ledger = l
	s.base, s.target = nil, nil
	s.mashRO, s.spargeRO = 0, 0

	for _, w := range waters {
		w.Transient = false
		switch w.Role {
		case model.RoleBase:
			s.base = &w
			s.mashRO, s.spargeRO = clamp01(w.MashRO), clamp01(w.SpargeRO)
		case model.RoleTarget:
			s.target = &w
		}
	}
	s.markCommitted()
	return s.Recompute(ctx)
}

// Recipe returns the loaded recipe snapshot.
func (s *Session) Recipe() model.Recipe {
	return s.recipe
}

// Geometry returns the derived mash totals of the loaded recipe.
func (s *Session) Geometry() model.MashGeometry {
	return s.geometry
}

// Base returns a copy of the base slot, or nil.
func (s *Session) Base() *model.WaterProfile {
	return copyProfile(s.base)
}

// Target returns a copy of the target slot, or nil.
func (s *Session) Target() *model.WaterProfile {
	return copyProfile(s.target)
}

// Salts returns the current ledger entries.
func (s *Session) Salts() []model.SaltAddition {
	return s.ledger.Additions()
}

// MashRO returns the RO fraction of the infusion water.
func (s *Session) MashRO() float64 {
	return s.mashRO
}

// SpargeRO returns the RO fraction of the sparge water.
func (s *Session) SpargeRO() float64 {
	return s.spargeRO
}

// SelectBase stores a transient copy of p in the base slot. Its RO fractions
// become the session's.
func (s *Session) SelectBase(ctx context.Context, p model.WaterProfile) error {
	s.base = transientCopy(p, model.RoleBase)
	s.mashRO, s.spargeRO = s.base.MashRO, s.base.SpargeRO
	return s.Recompute(ctx)
}

// SelectTarget stores a transient copy of p in the target slot.
func (s *Session) SelectTarget(ctx context.Context, p model.WaterProfile) error {
	s.target = transientCopy(p, model.RoleTarget)
	return s.Recompute(ctx)
}

// ClearBase empties the base slot.
func (s *Session) ClearBase(ctx context.Context) error {
	s.base = nil
	return s.Recompute(ctx)
}

// ClearTarget empties the target slot.
func (s *Session) ClearTarget(ctx context.Context) error {
	s.target = nil
	return s.Recompute(ctx)
}

// SetMashRO sets the infusion RO fraction, clamped to [0, 1]. With a base
// selected the value is written to it and the base becomes transient.
func (s *Session) SetMashRO(ctx context.Context, fraction float64) error {
	s.mashRO = clamp01(fraction)
	if s.base != nil && s.base.MashRO != s.mashRO {
		s.base.MashRO = s.mashRO
		s.base.Transient = true
	}
	return s.Recompute(ctx)
}

// SetSpargeRO sets the sparge RO fraction, clamped to [0, 1]. With a base
// selected the value is written to it and the base becomes transient.
func (s *Session) SetSpargeRO(ctx context.Context, fraction float64) error {
	s.spargeRO = clamp01(fraction)
	if s.base != nil && s.base.SpargeRO != s.spargeRO {
		s.base.SpargeRO = s.spargeRO
		s.base.Transient = true
	}
	return s.Recompute(ctx)
}

// AddSalt appends an addition. Invalid additions leave the session untouched.
func (s *Session) AddSalt(ctx context.Context, a model.SaltAddition) error {
	if err := s.ledger.Add(a); err != nil {
		return err
	}
	return s.Recompute(ctx)
}

// RemoveSalts drops the additions at the given ledger positions.
func (s *Session) RemoveSalts(ctx context.Context, indices ...int) error {
	s.ledger.Remove(indices...)
	return s.Recompute(ctx)
}

// Recompute runs the blend and the pH predictor from scratch. Without a mash
// it returns ErrMissingMash; without mash water it returns
// water.ErrDegenerateInput. In both cases the previous result is kept.
func (s *Session) Recompute(ctx context.Context) error {
	ctx = log.With(ctx, "recipe", s.recipe.Name)
	if !recipe.HasMash(s.recipe) {
		log.Warnf(ctx, "can not set strike water chemistry without a mash")
		return ErrMissingMash
	}

	blend, err := water.Compute(water.Input{
		Geometry: s.geometry,
		Base:     s.base,
		MashRO:   s.mashRO,
		SpargeRO: s.spargeRO,
		SaltIons: s.ledger.TotalIons(),
	})
	if err != nil {
		log.Warnf(ctx, "no mash water")
		return fmt.Errorf("failed to blend mash water: %w", err)
	}

	pred := s.predictor.Predict(mashph.Input{
		Recipe:   s.recipe,
		Geometry: s.geometry,
		Blend:    blend,
		Ledger:   s.ledger,
	})
	if pred.NoData {
		log.Debugf(ctx, "recipe has no fermentables, mash pH unavailable")
	}

	totals := make(map[model.SaltKind]float64, len(model.SaltKinds)+len(model.AcidKinds))
	for _, k := range model.SaltKinds {
		totals[k] = s.ledger.DisplayTotal(k)
	}
	for _, k := range model.AcidKinds {
		totals[k] = s.ledger.DisplayTotal(k)
	}

	s.result = Result{
		Recipe:     s.recipe.Name,
		Geometry:   s.geometry,
		Blend:      blend,
		Prediction: pred,
		Salts:      s.ledger.Additions(),
		SaltTotals: totals,
		Base:       copyProfile(s.base),
		Target:     copyProfile(s.target),
		MashRO:     s.mashRO,
		SpargeRO:   s.spargeRO,
	}
	s.hasResult = true
	log.Debugf(ctx, "mash pH %.2f (grist %.3f strike %+.3f acid %.3f)",
		pred.MashPH, pred.GristPH, pred.StrikeDelta, pred.AcidDelta)
	return nil
}

// Result returns the last successful recompute. ok is false before the first.
func (s *Session) Result() (Result, bool) {
	return s.result, s.hasResult
}

// Dirty reports whether there are changes not yet committed.
func (s *Session) Dirty() bool {
	if s.base != nil && s.base.Transient || s.target != nil && s.target.Transient {
		return true
	}
	if !sameProfile(s.base, s.committed.base) || !sameProfile(s.target, s.committed.target) {
		return true
	}
	return !slices.Equal(s.ledger.Additions(), s.committed.ledger.Additions())
}

// Commit persists the base and target slots and the salt ledger for the
// recipe. Cleared slots are removed from storage. On error nothing is marked
// committed.
func (s *Session) Commit(ctx context.Context, p Persister) error {
	if p == nil {
		return fmt.Errorf("no persister")
	}
	name := s.recipe.Name
	saved, err := p.CommitChemistry(ctx, name, model.RecipeChemistry{
		Base:   copyProfile(s.base),
		Target: copyProfile(s.target),
		Salts:  s.ledger.Additions(),
	})
	if err != nil {
		return fmt.Errorf("failed to save water chemistry: %w", err)
	}
	s.base, s.target = saved.Base, saved.Target
	for _, w := range []*model.WaterProfile{s.base, s.target} {
		if w != nil {
			w.Transient = false
		}
	}
	s.markCommitted()
	log.Infof(log.With(ctx, "recipe", name), "committed water chemistry")
	return s.Recompute(ctx)
}

// Discard drops uncommitted changes and recomputes.
func (s *Session) Discard(ctx context.Context) error {
	s.ledger = s.committed.ledger.Clone()
	s.base = copyProfile(s.committed.base)
	s.target = copyProfile(s.committed.target)
	s.mashRO, s.spargeRO = s.committed.mashRO, s.committed.spargeRO
	return s.Recompute(ctx)
}

func (s *Session) markCommitted() {
	s.committed = snapshot{
		ledger:   s.ledger.Clone(),
		base:     copyProfile(s.base),
		target:   copyProfile(s.target),
		mashRO:   s.mashRO,
		spargeRO: s.spargeRO,
	}
}

func transientCopy(p model.WaterProfile, role model.Role) *model.WaterProfile {
	p.ID = ""
	p.Role = role
	p.Transient = true
	p.MashRO = clamp01(p.MashRO)
	p.SpargeRO = clamp01(p.SpargeRO)
	return &p
}

func copyProfile(p *model.WaterProfile) *model.WaterProfile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func sameProfile(a, b *model.WaterProfile) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
