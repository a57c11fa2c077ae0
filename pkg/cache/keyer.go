package cache

// Keyer builds cache keys. Every key is deterministic for its inputs.
type Keyer interface {
	// PlanKey returns the key for a plan computed from the given device list hash.
	PlanKey(devicesHash string, opts PlanKeyOpts) string

	// ArtifactKey returns the key for a rendered artifact of a plan.
	ArtifactKey(planHash string, opts ArtifactKeyOpts) string
}

// PlanKeyOpts holds everything besides the devices that changes a plan.
type PlanKeyOpts struct {
	PolicyHash string `json:"policy"`
	ExtrasHash string `json:"extras,omitempty"`
}

// ArtifactKeyOpts holds the render options that change an artifact.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
}

// DefaultKeyer hashes its inputs into "<kind>:<sha256>" keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// PlanKey implements Keyer.
func (DefaultKeyer) PlanKey(devicesHash string, opts PlanKeyOpts) string {
	return hashKey("plan", devicesHash, opts)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(planHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", planHash, opts)
}
