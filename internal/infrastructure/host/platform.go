package host

import (
	"github.com/cassiomorais/paysheet/internal/domain/sheet"
)

// Platform answers capability probes for the web sheet from merchant
// configuration: whether payments are switched on and which networks the
// merchant is enrolled with.
type Platform struct {
	enabled  bool
	enrolled map[sheet.Network]bool
}

// NewPlatform creates a new Platform.
func NewPlatform(enabled bool, enrolled []sheet.Network) *Platform {
	p := &Platform{
		enabled:  enabled,
		enrolled: make(map[sheet.Network]bool, len(enrolled)),
	}
	for _, n := range enrolled {
		p.enrolled[n] = true
	}
	return p
}

func (p *Platform) CanMakePayments() bool {
	return p.enabled
}

// CanMakePaymentsUsingNetworks is true when at least one of networks is enrolled.
func (p *Platform) CanMakePaymentsUsingNetworks(networks []sheet.Network) bool {
	if !p.enabled {
		return false
	}
	for _, n := range networks {
		if p.enrolled[n] {
			return true
		}
	}
	return false
}
