package policy

import (
	"bytes"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/nacplan/pkg/errors"
)

// Parse decodes a TOML policy document on top of [Defaults].
// Keys missing from data keep their default value; unknown keys are rejected.
func Parse(data []byte) (Policy, error) {
	p := Defaults()
	// Tiers in the document replace the default list instead of merging into it.
	p.CabinetTiers = nil
	md, err := toml.Decode(string(data), &p)
	if err != nil {
		return Policy{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse policy")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Policy{}, errors.New(errors.ErrCodeInvalidPolicy, "unknown policy keys: %s", strings.Join(keys, ", "))
	}
	if !md.IsDefined("cabinet_tiers") {
		p.CabinetTiers = Defaults().CabinetTiers
	}
	s, err := ParseStrategy(string(p.Strategy))
	if err != nil {
		return Policy{}, err
	}
	p.Strategy = s
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Load reads and parses a TOML policy file.
// An empty path returns [Defaults].
func Load(path string) (Policy, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Policy{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "policy file %s", path)
		}
		return Policy{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "read policy %s", path)
	}
	return Parse(data)
}

// Encode writes p as TOML.
func (p Policy) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(p)
}

// Bytes returns the TOML encoding of p.
func (p Policy) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
