// Package digipeater implements the per-channel WIDE-N digipeat state
// machine (spec.md section 4.4), grounded on the teacher's digipeater.go
// decision tree but restated as a pure function over an ax25.Frame plus a
// small Config, instead of mutating a global C "digi_config_t" table.
package digipeater

import "github.com/na4wx/nexdigi/internal/ax25"

// Mode controls whether a channel repeats traffic at all.
type Mode int

const (
	ModeDigipeat Mode = iota
	ModeReceiveOnly
	ModeDisabled
)

// Role determines which WIDE-N aliases a channel is allowed to service.
type Role int

const (
	RoleFillIn Role = iota
	RoleWide
)

// Config holds the per-channel digipeat policy from spec.md section 4.4.
type Config struct {
	ID              string
	Mode            Mode
	Role            Role
	Callsign        ax25.Callsign
	PersonalAliases []ax25.Callsign
	MaxWideN        int // default 2, valid range [1,7]
	AppendCallsign  bool
	IDOnRepeat      bool
	IGateForward    bool
	// PersonalAliasPrecedence names the resolution of the Open Question in
	// spec.md section 9: leftmost match wins, and at the same index the
	// personal alias takes precedence over WIDE1. The engine always applies
	// that precedence and does not read this field, so setting it to false
	// does not change the outcome.
	PersonalAliasPrecedence bool
	// RouteTo lists other channel IDs this channel's digipeated output
	// should also be emitted on (digipeater.routes in the config doc).
	RouteTo []string
}

// DefaultMaxWideN is applied when Config.MaxWideN is zero.
const DefaultMaxWideN = 2

func (c Config) effectiveMaxWideN() int {
	if c.MaxWideN <= 0 {
		return DefaultMaxWideN
	}
	return c.MaxWideN
}

func (c Config) matchesOwnOrAlias(base string) bool {
	if base == c.Callsign.Base {
		return true
	}
	for _, a := range c.PersonalAliases {
		if a.Base == base {
			return true
		}
	}
	return false
}
