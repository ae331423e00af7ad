package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tomszi/quotefeed/internal/config"
	"github.com/tomszi/quotefeed/internal/model"
)

// ErrUnknownInstrument is returned when an id is not in the registry.
var ErrUnknownInstrument = errors.New("unknown instrument")

// ErrUnknownFamily is returned when a sync family name is not recognized.
var ErrUnknownFamily = errors.New("unknown instrument family")

// families maps administrative sync family names to asset classes.
var families = map[string][]model.AssetClass{
	"crypto":      {model.Crypto},
	"equities":    {model.Equity, model.Index},
	"fx":          {model.FX},
	"commodities": {model.Commodity},
	"bonds":       {model.Bond},
	"realestate":  {model.RealEstate},
}

// Registry is the static instrument registry plus the per-instrument
// provider priority table. It is built once at startup from configuration
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	instruments map[string]model.Instrument
	providers   map[string][]string
	order       []string
}

// New builds a Registry from configured instruments. Provider lists keep
// their declared order; position one is the primary source.
func New(cfgs []config.InstrumentConfig) (*Registry, error) {
	r := &Registry{
		instruments: make(map[string]model.Instrument, len(cfgs)),
		providers:   make(map[string][]string, len(cfgs)),
	}

	for _, c := range cfgs {
		class, err := model.ParseAssetClass(c.AssetClass)
		if err != nil {
			return nil, fmt.Errorf("instrument %s: %w", c.ID, err)
		}
		if _, dup := r.instruments[c.ID]; dup {
			return nil, fmt.Errorf("instrument %s: duplicate id", c.ID)
		}

		r.instruments[c.ID] = model.Instrument{
			ID:         c.ID,
			Name:       c.Name,
			AssetClass: class,
			Exchange:   c.Exchange,
			Currency:   c.Currency,
			Timezone:   c.Timezone,
		}
		r.providers[c.ID] = append([]string(nil), c.Providers...)
		r.order = append(r.order, c.ID)
	}

	return r, nil
}

// Get returns the instrument for id.
func (r *Registry) Get(id string) (model.Instrument, bool) {
	inst, ok := r.instruments[id]
	return inst, ok
}

// All returns every registered instrument in declaration order.
func (r *Registry) All() []model.Instrument {
	out := make([]model.Instrument, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.instruments[id])
	}
	return out
}

// Providers returns the priority-ordered provider names for id.
func (r *Registry) Providers(id string) []string {
	return r.providers[id]
}

// Len returns the number of registered instruments.
func (r *Registry) Len() int {
	return len(r.instruments)
}

// Validate checks that every id is registered. It reports the first unknown
// id so stream subscriptions can be rejected up front.
func (r *Registry) Validate(ids []string) error {
	for _, id := range ids {
		if _, ok := r.instruments[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownInstrument, id)
		}
	}
	return nil
}

// Family returns the instruments belonging to a sync family.
func (r *Registry) Family(name string) ([]model.Instrument, error) {
	classes, ok := families[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, name)
	}

	var out []model.Instrument
	for _, id := range r.order {
		inst := r.instruments[id]
		for _, class := range classes {
			if inst.AssetClass == class {
				out = append(out, inst)
				break
			}
		}
	}
	return out, nil
}

// Families returns the recognized sync family names, sorted.
func Families() []string {
	out := make([]string, 0, len(families))
	for name := range families {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
