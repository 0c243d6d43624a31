// Package hconfig is the federation configuration surface of spec §6: the
// in-memory option structs for federates, interfaces, cores, and brokers. No
// file-format (JSON/TOML) loading lives here — that is explicitly out of
// scope — only the option surface and its defaulting/validation, in the
// shape of the teacher's config.Parameters + DefaultParams + Validate
// (_examples/luxfi-consensus/config/config.go,
// _examples/luxfi-consensus/config/validator.go).
package hconfig

import (
	"time"

	"github.com/GMLC-TDC/HELICS-sub010/herrors"
	"github.com/GMLC-TDC/HELICS-sub010/htime"
)

// Separator is the default hierarchical name separator (spec §6).
const Separator = "/"

// FederateFlags are the boolean behavior switches of spec §3.
type FederateFlags struct {
	Observer             bool
	SourceOnly           bool
	Uninterruptible      bool
	OnlyTransmitOnChange bool
	OnlyUpdateOnChange   bool
	WaitForCurrentTime   bool
	Rollback             bool
	Realtime             bool
	EventTriggered       bool
	StrictTypeChecking   bool
	TerminateOnError     bool
	Reentrant            bool
	IgnoreTimeMismatch   bool
}

// FederateConfig is the federate-scoped configuration surface of spec §6.
type FederateConfig struct {
	Name           string
	CoreName       string
	CoreType       string
	CoreInitString string

	TimeDelta   htime.Time
	Period      htime.Time
	Offset      htime.Time
	InputDelay  htime.Time
	OutputDelay htime.Time

	MaxIterations    int
	RealTimeLead     time.Duration
	RealTimeLag      time.Duration
	TimeGrantTimeout time.Duration

	LogLevel        string
	FileLogLevel    string
	ConsoleLogLevel string
	Separator       string

	Flags FederateFlags
}

// DefaultFederateConfig returns the zero-configured federate: an epsilon
// time delta, no period, synchronous everywhere, terminate-on-error enabled (the safe
// default per spec §7's propagation policy).
func DefaultFederateConfig(name string) FederateConfig {
	return FederateConfig{
		Name:             name,
		CoreType:         "default",
		TimeDelta:        htime.Epsilon,
		Period:           htime.Zero,
		Offset:           htime.Zero,
		InputDelay:       htime.Zero,
		OutputDelay:      htime.Zero,
		MaxIterations:    10,
		TimeGrantTimeout: 5 * time.Second,
		LogLevel:         "info",
		FileLogLevel:     "info",
		ConsoleLogLevel:  "info",
		Separator:        Separator,
		Flags:            FederateFlags{TerminateOnError: true},
	}
}

// Validate reports the first configuration error found, per spec §7
// InvalidArgument.
func (c FederateConfig) Validate() error {
	if c.Name == "" {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument, "federate name must not be empty")
	}
	if c.TimeDelta < 0 {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument, "timeDelta must be >= 0")
	}
	if c.Period < 0 {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument, "period must be >= 0")
	}
	if c.MaxIterations < 1 {
		return herrors.New(herrors.ErrInvalidArgument, herrors.InvalidArgument, "maxIterations must be >= 1")
	}
	if c.Separator == "" {
		c.Separator = Separator
	}
	return nil
}
