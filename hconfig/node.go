package hconfig

import (
	"time"

	"github.com/GMLC-TDC/HELICS-sub010/herrors"
)

// CoreConfig is the configuration surface for a leaf core, spec §6.
type CoreConfig struct {
	Name            string
	CoreType        string
	Federates       int
	BrokerAddress   string
	LocalPort       int
	BrokerPort      int
	BrokerKey       string
	Timeout         time.Duration
	NetworkInterface string
	Debugging       bool
	Profiling       bool
}

// DefaultCoreConfig returns a single-federate core with a generous timeout.
func DefaultCoreConfig(name string) CoreConfig {
	return CoreConfig{
		Name:      name,
		CoreType:  "default",
		Federates: 1,
		Timeout:   30 * time.Second,
	}
}

// Validate reports the first configuration error found.
func (c CoreConfig) Validate() error {
	if c.Name == "" {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument, "core name must not be empty")
	}
	if c.Federates < 1 {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument, "core %q must host at least one federate", c.Name)
	}
	return nil
}

// BrokerConfig is the configuration surface for an interior broker, spec §6.
type BrokerConfig struct {
	Name             string
	BrokerAddress    string
	LocalPort        int
	BrokerPort       int
	BrokerKey        string
	Timeout          time.Duration
	NetworkInterface string
	Debugging        bool
	Profiling        bool
}

// DefaultBrokerConfig returns a root-capable broker with a generous timeout.
func DefaultBrokerConfig(name string) BrokerConfig {
	return BrokerConfig{
		Name:    name,
		Timeout: 30 * time.Second,
	}
}

// Validate reports the first configuration error found.
func (c BrokerConfig) Validate() error {
	if c.Name == "" {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument, "broker name must not be empty")
	}
	return nil
}
