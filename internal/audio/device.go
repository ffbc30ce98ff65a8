package audio

import (
	"fmt"
	"log/slog"
)

// AudioDevice is a snapshot of one render endpoint taken at enumeration time.
// ID is opaque and only stable for the lifetime of the snapshot.
type AudioDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Catalog enumerates loopback-capable devices through a Backend.
type Catalog struct {
	backend Backend
}

// NewCatalog creates a catalog over backend
func NewCatalog(backend Backend) *Catalog {
	return &Catalog{backend: backend}
}

// ListDevices returns the devices in OS-defined order. The order is not
// stable across calls; resolve devices by ID.
func (c *Catalog) ListDevices() ([]AudioDevice, error) {
	devices, err := c.backend.Devices()
	if err != nil {
		return nil, classify(err, ErrEnumeration)
	}
	slog.Debug("Enumerated audio devices", "backend", c.backend.Type(), "count", len(devices))
	return devices, nil
}

// Resolve takes a fresh snapshot and returns the device whose ID matches.
func (c *Catalog) Resolve(id string) (AudioDevice, error) {
	devices, err := c.ListDevices()
	if err != nil {
		return AudioDevice{}, err
	}
	for _, device := range devices {
		if device.ID == id {
			return device, nil
		}
	}
	return AudioDevice{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}
