package location

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Candidate is a monitoring site reported by an upstream catalog.
type Candidate struct {
	ProviderID   int
	Name         string
	Locality     string
	City         string
	Coordinates  *Coordinates
	Mobile       bool
	ProviderName string
}

// DiscoverOptions narrows an upstream catalog query.
type DiscoverOptions struct {
	City      string
	CountryID int
	Limit     int
}

// Discoverer lists candidate locations from an upstream catalog.
type Discoverer interface {
	Discover(ctx context.Context, opts DiscoverOptions) ([]Candidate, error)
}

// BootstrapConfig configures a Bootstrapper.
type BootstrapConfig struct {
	Catalog    Catalog
	Discoverer Discoverer
	Options    DiscoverOptions

	// Force re-imports even when the catalog already has entries and
	// overwrites existing ids.
	Force bool

	Logger zerolog.Logger
}

// BootstrapStats summarises one bootstrap run.
type BootstrapStats struct {
	Skipped    bool
	Discovered int
	Saved      int
	Unmappable int
	Duplicates int
	Failed     int
}

// Bootstrapper fills an empty catalog from an upstream source.
type Bootstrapper struct {
	catalog    Catalog
	discoverer Discoverer
	opts       DiscoverOptions
	force      bool
	logger     zerolog.Logger
}

// NewBootstrapper creates a Bootstrapper. City defaults to Dhaka and Limit
// to 1000.
func NewBootstrapper(cfg BootstrapConfig) *Bootstrapper {
	opts := cfg.Options
	if strings.TrimSpace(opts.City) == "" {
		opts.City = "Dhaka"
	}
	if opts.Limit <= 0 {
		opts.Limit = 1000
	}
	return &Bootstrapper{
		catalog:    cfg.Catalog,
		discoverer: cfg.Discoverer,
		opts:       opts,
		force:      cfg.Force,
		logger:     cfg.Logger,
	}
}

// Run imports upstream locations. A failed save is logged and counted; only
// a failure to query the catalog or the upstream aborts the run.
func (b *Bootstrapper) Run(ctx context.Context) (BootstrapStats, error) {
	var stats BootstrapStats

	existing, err := b.catalog.Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("count catalog: %w", err)
	}
	if existing > 0 && !b.force {
		b.logger.Info().Int("existing", existing).Msg("catalog already populated, skipping bootstrap")
		stats.Skipped = true
		return stats, nil
	}

	b.logger.Info().
		Str("city", b.opts.City).
		Int("country_id", b.opts.CountryID).
		Bool("force", b.force).
		Msg("bootstrapping location catalog")

	candidates, err := b.discoverer.Discover(ctx, b.opts)
	if err != nil {
		return stats, fmt.Errorf("discover locations: %w", err)
	}
	stats.Discovered = len(candidates)
	if len(candidates) == 0 {
		b.logger.Warn().Msg("upstream returned no locations")
		return stats, nil
	}

	for _, c := range candidates {
		loc, ok := MapCandidate(c)
		if !ok {
			stats.Unmappable++
			continue
		}

		if !b.force {
			_, err := b.catalog.FindByID(ctx, loc.ID)
			if err == nil {
				stats.Duplicates++
				continue
			}
			if !errors.Is(err, ErrNotFound) {
				b.logger.Warn().Err(err).Str("location_id", loc.ID.String()).Msg("lookup failed during bootstrap")
				stats.Failed++
				continue
			}
		}

		if _, err := b.catalog.Save(ctx, loc); err != nil {
			b.logger.Warn().Err(err).Str("location_id", loc.ID.String()).Str("name", loc.Name).Msg("failed to save location")
			stats.Failed++
			continue
		}
		stats.Saved++
	}

	b.logger.Info().
		Int("saved", stats.Saved).
		Int("unmappable", stats.Unmappable).
		Int("duplicates", stats.Duplicates).
		Int("failed", stats.Failed).
		Msg("location bootstrap finished")

	return stats, nil
}

// MapCandidate converts an upstream site to a Location. Sites without
// coordinates or a usable name are rejected.
func MapCandidate(c Candidate) (Location, bool) {
	if c.Coordinates == nil || c.ProviderID <= 0 {
		return Location{}, false
	}
	loc, err := New(ID(fmt.Sprintf("openaq-%d", c.ProviderID)), bestName(c), *c.Coordinates, classify(c))
	if err != nil {
		return Location{}, false
	}
	return loc, true
}

func bestName(c Candidate) string {
	for _, s := range []string{c.Locality, c.Name, c.City} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func classify(c Candidate) Type {
	locality := strings.ToLower(c.Locality)
	name := strings.ToLower(c.Name)
	provider := strings.ToLower(c.ProviderName)

	switch {
	case strings.Contains(locality, "park") || strings.Contains(name, "park"):
		return TypePark
	case c.Mobile:
		return TypeSuburban
	case containsAny(provider, "government", "reference", "embassy", "consulate"):
		return TypeUrban
	case containsAny(provider, "community", "low-cost", "purpleair", "airnow"):
		return TypeSuburban
	default:
		return TypeUrban
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
