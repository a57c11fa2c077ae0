// Package pipeline provides the planning pipeline for nacplan.
//
// This package implements the complete devices → plan → artifacts pipeline
// used by the CLI and the API server. By centralizing this logic, every entry
// point runs the same stages in the same order.
//
// # Architecture
//
// The pipeline consists of two phases:
//
//  1. Build: group devices into levels, consolidate floors, allocate
//     circuits, balance, merge across levels, organize power supplies, size
//     the cabinet and validate the result
//  2. Render: generate output in various formats (JSON, DOT, SVG, PNG, PDF)
//
// Each phase can be run independently or through a [Runner], which adds
// caching of both plans and artifacts.
//
// # Usage
//
//	pol := policy.Defaults()
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, devices, pipeline.Options{
//	    Policy:  &pol,
//	    Formats: []string{"json", "svg"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
//
// Build a plan without caching:
//
//	p, err := pipeline.Build(ctx, devices, opts)
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nacplan/pkg/cache"
	"github.com/matzehuels/nacplan/pkg/core/supply"
	"github.com/matzehuels/nacplan/pkg/core/validate"
	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/plan"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// Format constants for output formats.
const (
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatPDF  = "pdf"
)

// DefaultFormat is rendered when no format is requested.
const DefaultFormat = FormatJSON

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatDOT:  true,
	FormatSVG:  true,
	FormatPNG:  true,
	FormatPDF:  true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a planning run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Build options
	Policy           *policy.Policy         `json:"policy,omitempty"`
	AuxLoads         []supply.AuxLoad       `json:"aux_loads,omitempty"`
	DetectionDevices int                    `json:"detection_devices,omitempty"`
	VoltageDrops     []validate.VoltageDrop `json:"voltage_drops,omitempty"`
	Name             string                 `json:"name,omitempty"`
	Refresh          bool                   `json:"refresh,omitempty"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Plan is the finished plan.
	Plan *plan.Plan

	// PlanHash is the content hash of the plan, used for artifact cache keys.
	PlanHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which phases hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Devices    int
	Branches   int
	Supplies   int
	BuildTime  time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline phase.
type CacheInfo struct {
	BuildHit  bool // Whether the plan came from cache
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: json, dot, svg, png, pdf)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the full pipeline.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForBuild(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForBuild checks the inputs a build needs. The policy is required
// and must be valid; there is no implicit default policy.
func (o *Options) ValidateForBuild() error {
	if o.Policy == nil {
		return errors.New(errors.ErrCodeInvalidPolicy, "policy is required")
	}
	if err := o.Policy.Validate(); err != nil {
		return err
	}
	if o.DetectionDevices < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "detection_devices must be >= 0, got %d", o.DetectionDevices)
	}
	for _, a := range o.AuxLoads {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	for _, vd := range o.VoltageDrops {
		if err := errors.ValidateQuantity(errors.ErrCodeInvalidInput, "drop_percent", vd.DropPercent); err != nil {
			return fmt.Errorf("voltage drop %q: %w", vd.BranchID, err)
		}
		if err := errors.ValidateQuantity(errors.ErrCodeInvalidInput, "limit_percent", vd.LimitPercent); err != nil {
			return fmt.Errorf("voltage drop %q: %w", vd.BranchID, err)
		}
	}
	o.setLogger()
	return nil
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = []string{DefaultFormat}
	}
	o.setLogger()
}

// ValidateForRender validates and sets defaults for rendering.
func (o *Options) ValidateForRender() error {
	o.SetRenderDefaults()
	return ValidateFormats(o.Formats)
}

func (o *Options) setLogger() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// PlanKeyOpts returns cache key options for plan caching. Everything besides
// the device list that changes a plan goes into the key.
func (o *Options) PlanKeyOpts() (cache.PlanKeyOpts, error) {
	policyHash, err := cache.HashJSON(o.Policy)
	if err != nil {
		return cache.PlanKeyOpts{}, fmt.Errorf("hash policy: %w", err)
	}
	extrasHash, err := cache.HashJSON(struct {
		Aux       []supply.AuxLoad       `json:"aux"`
		Detection int                    `json:"detection"`
		Drops     []validate.VoltageDrop `json:"drops"`
	}{o.AuxLoads, o.DetectionDevices, o.VoltageDrops})
	if err != nil {
		return cache.PlanKeyOpts{}, fmt.Errorf("hash options: %w", err)
	}
	return cache.PlanKeyOpts{PolicyHash: policyHash, ExtrasHash: extrasHash}, nil
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	if format == FormatJSON {
		return cache.ArtifactKeyOpts{Format: format}
	}
	if o.Detailed {
		format += "+detailed"
	}
	return cache.ArtifactKeyOpts{Format: format}
}
