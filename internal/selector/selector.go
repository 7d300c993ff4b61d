package selector

import (
	"context"
	"log/slog"

	"github.com/ReXooGen/bmkg-artikel-automation/internal/logging"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/ordered"
	"github.com/ReXooGen/bmkg-artikel-automation/internal/wilayah"
)

// Regions is the part of the region store the selector needs.
type Regions interface {
	CityByName(ctx context.Context, query string) *wilayah.City
	CitiesByKeyword(ctx context.Context, keyword string, limit int) []wilayah.City
	RandomCities(ctx context.Context, count int, zone wilayah.Zone) []wilayah.City
	CitiesByTimezone(ctx context.Context, zone wilayah.Zone) []wilayah.City
}

// Selection maps city names to records in insertion order.
type Selection = ordered.Map[string, wilayah.City]

// Split is the number of cities to draw from each zone.
type Split struct {
	WIB  int
	WITA int
	WIT  int
}

// Total returns the sum over all zones.
func (s Split) Total() int { return s.WIB + s.WITA + s.WIT }

// For returns the count for one zone.
func (s Split) For(z wilayah.Zone) int {
	switch z {
	case wilayah.WIB:
		return s.WIB
	case wilayah.WITA:
		return s.WITA
	case wilayah.WIT:
		return s.WIT
	}
	return 0
}

// DefaultSplit divides total as half WIB, a third WITA and the remainder
// WIT, using integer division.
func DefaultSplit(total int) Split {
	if total <= 0 {
		return Split{}
	}
	wib := total / 2
	wita := total / 3
	return Split{WIB: wib, WITA: wita, WIT: total - wib - wita}
}

// Selector holds the set of cities an article is being built from. A
// Selector belongs to one session and is not safe for concurrent use.
type Selector struct {
	regions  Regions
	selected *Selection
	logger   *slog.Logger
}

// New creates a selector with an empty selection.
func New(regions Regions, logger *slog.Logger) *Selector {
	return &Selector{
		regions:  regions,
		selected: ordered.New[string, wilayah.City](),
		logger:   logging.Component(logger, "selector"),
	}
}

// SelectRandom replaces the selection with total random cities split by
// DefaultSplit.
func (s *Selector) SelectRandom(ctx context.Context, total int) *Selection {
	return s.SelectSplit(ctx, DefaultSplit(total))
}

// SelectSplit replaces the selection with random cities drawn per zone.
func (s *Selector) SelectSplit(ctx context.Context, split Split) *Selection {
	s.selected.Clear()
	s.fill(ctx, split)
	return s.Selected()
}

// FillRandom adds random cities per zone without clearing the selection.
// Cities already selected are not drawn twice.
func (s *Selector) FillRandom(ctx context.Context, split Split) *Selection {
	s.fill(ctx, split)
	return s.Selected()
}

func (s *Selector) fill(ctx context.Context, split Split) {
	for _, zone := range wilayah.Zones {
		want := split.For(zone)
		if want <= 0 {
			continue
		}
		// Overdraw so already-selected names can be skipped.
		candidates := s.regions.RandomCities(ctx, want+s.selected.Len(), zone)
		added := 0
		for _, c := range candidates {
			if added == want {
				break
			}
			if s.selected.Has(c.Name) {
				continue
			}
			s.selected.Set(c.Name, c)
			added++
		}
		if added < want {
			s.logger.Warn("not enough cities in zone", "zone", zone, "wanted", want, "got", added)
		}
	}
}

// AddSpecific looks up name and adds it to the selection. It reports false,
// leaving the selection untouched, when no city matches.
func (s *Selector) AddSpecific(ctx context.Context, name string) bool {
	city := s.regions.CityByName(ctx, name)
	if city == nil {
		return false
	}
	s.selected.Set(city.Name, *city)
	return true
}

// Add inserts an already resolved city.
func (s *Selector) Add(city wilayah.City) {
	s.selected.Set(city.Name, city)
}

// Remove drops name from the selection.
func (s *Selector) Remove(name string) bool {
	return s.selected.Delete(name)
}

// Clear empties the selection.
func (s *Selector) Clear() {
	s.selected.Clear()
}

// Selected returns a copy of the current selection.
func (s *Selector) Selected() *Selection {
	return s.selected.Clone()
}

// Len returns the number of selected cities.
func (s *Selector) Len() int {
	return s.selected.Len()
}

// SearchByKeyword delegates to the region store.
func (s *Selector) SearchByKeyword(ctx context.Context, keyword string, limit int) []wilayah.City {
	return s.regions.CitiesByKeyword(ctx, keyword, limit)
}

// SearchExact returns the first keyword match for name, or nil.
func (s *Selector) SearchExact(ctx context.Context, name string) *wilayah.City {
	results := s.regions.CitiesByKeyword(ctx, name, 1)
	if len(results) == 0 {
		return nil
	}
	return &results[0]
}

// RandomCities draws replacement candidates from the region store.
func (s *Selector) RandomCities(ctx context.Context, count int, zone wilayah.Zone) []wilayah.City {
	return s.regions.RandomCities(ctx, count, zone)
}

// CountByTimezone returns how many cities the region store holds per zone,
// independent of the current selection. Every zone is present.
func (s *Selector) CountByTimezone(ctx context.Context) map[wilayah.Zone]int {
	counts := make(map[wilayah.Zone]int, len(wilayah.Zones))
	for _, zone := range wilayah.Zones {
		counts[zone] = len(s.regions.CitiesByTimezone(ctx, zone))
	}
	return counts
}

// SelectedByTimezone counts selected cities per zone. Every zone is present.
func (s *Selector) SelectedByTimezone() map[wilayah.Zone]int {
	counts := map[wilayah.Zone]int{wilayah.WIB: 0, wilayah.WITA: 0, wilayah.WIT: 0}
	s.selected.Each(func(_ string, c wilayah.City) bool {
		counts[c.Timezone]++
		return true
	})
	return counts
}

// Missing returns how many cities each zone still needs to reach target.
// Zone quotas are topped up first; any gap left is given to WIB, and a
// surplus is trimmed from WIB, then WIT, then WITA, so the result never
// exceeds the free slots.
func (s *Selector) Missing(target Split) Split {
	free := target.Total() - s.Len()
	if free <= 0 {
		return Split{}
	}
	counts := s.SelectedByTimezone()
	need := Split{
		WIB:  max(0, target.WIB-counts[wilayah.WIB]),
		WITA: max(0, target.WITA-counts[wilayah.WITA]),
		WIT:  max(0, target.WIT-counts[wilayah.WIT]),
	}
	if gap := free - need.Total(); gap > 0 {
		need.WIB += gap
	}
	for _, n := range []*int{&need.WIB, &need.WIT, &need.WITA} {
		surplus := need.Total() - free
		if surplus <= 0 {
			break
		}
		cut := min(*n, surplus)
		*n -= cut
	}
	return need
}

// Names returns the selected names in insertion order.
func (s *Selector) Names() []string {
	return s.selected.Keys()
}
