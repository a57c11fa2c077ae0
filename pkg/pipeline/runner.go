package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nacplan/pkg/cache"
	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/observability"
	"github.com/matzehuels/nacplan/pkg/plan"
)

// Cache key types reported to cache hooks.
const (
	keyTypePlan     = "plan"
	keyTypeArtifact = "artifact"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete build → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, devices []device.Load, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}

	// Phase 1: Build
	buildStart := time.Now()
	p, hit, err := r.BuildWithCacheInfo(ctx, devices, opts)
	if err != nil {
		return nil, err
	}
	result.Plan = p
	result.Stats.BuildTime = time.Since(buildStart)
	result.Stats.Devices = p.Stats.Devices
	result.Stats.Branches = p.Stats.Branches
	result.Stats.Supplies = p.Stats.Supplies
	result.CacheInfo.BuildHit = hit

	r.Logger.Info("built plan",
		"branches", p.Stats.Branches,
		"supplies", p.Stats.Supplies,
		"cabinet", p.Cabinet.Tier,
		"cached", hit,
		"duration", result.Stats.BuildTime)

	// Phase 2: Render
	renderStart := time.Now()
	artifacts, planHash, renderHit, err := r.renderWithCacheInfo(ctx, p, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.PlanHash = planHash
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"cached", renderHit,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// BuildWithCacheInfo builds a plan with caching and returns cache hit info.
// The plan's InputHash identifies the devices and options it was built from.
func (r *Runner) BuildWithCacheInfo(ctx context.Context, devices []device.Load, opts Options) (*plan.Plan, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForBuild(); err != nil {
		return nil, false, err
	}

	devicesData, err := json.Marshal(devices)
	if err != nil {
		return nil, false, fmt.Errorf("serialize devices for cache key: %w", err)
	}
	keyOpts, err := opts.PlanKeyOpts()
	if err != nil {
		return nil, false, err
	}
	cacheKey := r.Keyer.PlanKey(cache.Hash(devicesData), keyOpts)
	hooks := observability.Cache()

	// Try cache first (unless refresh requested)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			if p, err := plan.Unmarshal(data); err == nil {
				hooks.OnCacheHit(ctx, keyTypePlan)
				p.Name = opts.Name
				return p, true, nil
			}
			// Undecodable entries fall through to a rebuild
		} else if err != nil {
			r.Logger.Warn("plan cache read failed", "error", err)
		}
		hooks.OnCacheMiss(ctx, keyTypePlan)
	}

	p, err := Build(ctx, devices, opts)
	if err != nil {
		return nil, false, err
	}
	p.InputHash = cacheKey

	if data, err := plan.Marshal(p); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLPlan); err != nil {
			r.Logger.Warn("plan cache write failed", "error", err)
		} else {
			hooks.OnCacheSet(ctx, keyTypePlan, len(data))
		}
	}

	return p, false, nil
}

// Build is a convenience wrapper that calls BuildWithCacheInfo and discards the cache hit info.
func (r *Runner) Build(ctx context.Context, devices []device.Load, opts Options) (*plan.Plan, error) {
	p, _, err := r.BuildWithCacheInfo(ctx, devices, opts)
	return p, err
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, p *plan.Plan, opts Options) (map[string][]byte, bool, error) {
	artifacts, _, hit, err := r.renderWithCacheInfo(ctx, p, opts)
	return artifacts, hit, err
}

func (r *Runner) renderWithCacheInfo(ctx context.Context, p *plan.Plan, opts Options) (map[string][]byte, string, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRender(); err != nil {
		return nil, "", false, err
	}

	// Compute cache key from plan data
	planData, err := plan.Marshal(p)
	if err != nil {
		return nil, "", false, fmt.Errorf("serialize plan for cache key: %w", err)
	}
	planHash := cache.Hash(planData)
	hooks := observability.Cache()

	// Try to get all formats from cache
	artifacts := make(map[string][]byte)
	for _, format := range opts.Formats {
		cacheKey := r.Keyer.ArtifactKey(planHash, opts.ArtifactKeyOpts(format))
		data, hit, err := r.Cache.Get(ctx, cacheKey)
		if err != nil || !hit {
			break
		}
		artifacts[format] = data
	}

	if len(artifacts) == len(opts.Formats) {
		hooks.OnCacheHit(ctx, keyTypeArtifact)
		return artifacts, planHash, true, nil // All artifacts from cache
	}
	hooks.OnCacheMiss(ctx, keyTypeArtifact)

	rendered, err := Render(ctx, p, opts)
	if err != nil {
		return nil, "", false, err
	}

	for format, data := range rendered {
		cacheKey := r.Keyer.ArtifactKey(planHash, opts.ArtifactKeyOpts(format))
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLArtifact); err == nil {
			hooks.OnCacheSet(ctx, keyTypeArtifact, len(data))
		}
	}

	return rendered, planHash, false, nil // Cache miss
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, p *plan.Plan, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, p, opts)
	return artifacts, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
