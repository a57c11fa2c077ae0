package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/errors"
)

// =============================================================================
// Plan Serialization API
// =============================================================================

// Marshal converts a plan to indented JSON bytes.
func Marshal(p *Plan) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(p, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a plan from JSON bytes.
func Unmarshal(data []byte) (*Plan, error) {
	return Read(bytes.NewReader(data))
}

// WriteFile writes a plan to a JSON file.
// The file is created with 0644 permissions.
func WriteFile(p *Plan, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Write(p, f)
}

// Write writes a plan as JSON to an io.Writer.
func Write(p *Plan, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadFile reads a plan from a JSON file.
func ReadFile(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "plan file %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a JSON plan from an io.Reader.
func Read(r io.Reader) (*Plan, error) {
	var p Plan
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode plan")
	}
	return &p, nil
}

// =============================================================================
// Device Input
// =============================================================================

// deviceFile is the object form of a device list.
type deviceFile struct {
	Devices []device.Load `json:"devices"`
}

// ReadDevices decodes a device list: a JSON array of records or an object
// with a "devices" array.
func ReadDevices(r io.Reader) ([]device.Load, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read devices: %w", err)
	}
	return ParseDevices(data)
}

// ParseDevices decodes a device list from bytes. See [ReadDevices].
func ParseDevices(data []byte) ([]device.Load, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "device list is empty")
	}
	if trimmed[0] == '[' {
		var loads []device.Load
		if err := json.Unmarshal(trimmed, &loads); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode device list")
		}
		return loads, nil
	}
	var f deviceFile
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode device list")
	}
	return f.Devices, nil
}

// ReadDevicesFile reads a device list from a JSON file.
func ReadDevicesFile(path string) ([]device.Load, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "device file %s", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseDevices(data)
}
