package theme

import (
	"fmt"
	"strings"
	"sync"
)

// Preference is the notebook theme setting
type Preference string

const (
	// Same follows the host's interface theme
	Same  Preference = "same"
	Light Preference = "light"
	Dark  Preference = "dark"
)

// Parse reads a preference. Empty input means Same.
func Parse(s string) (Preference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "same", "same as host", "same as griffin":
		return Same, nil
	case "light":
		return Light, nil
	case "dark":
		return Dark, nil
	default:
		return "", fmt.Errorf("unknown theme %q (want same, light or dark)", s)
	}
}

// IsDark resolves p against the host's current interface theme
func (p Preference) IsDark(hostDark bool) bool {
	switch p {
	case Dark:
		return true
	case Light:
		return false
	default:
		return hostDark
	}
}

// Provider resolves the dark_theme flag for new notebook servers
type Provider struct {
	mu         sync.RWMutex
	preference Preference
	hostDark   bool
}

// NewProvider creates a provider with the configured default preference
func NewProvider(pref Preference) *Provider {
	if pref == "" {
		pref = Same
	}
	return &Provider{preference: pref}
}

// Preference returns the default preference
func (p *Provider) Preference() Preference {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.preference
}

// SetPreference changes the default preference. Running servers keep
// their theme until restarted.
func (p *Provider) SetPreference(pref Preference) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preference = pref
}

// SetHostDark records whether the host interface is dark
func (p *Provider) SetHostDark(dark bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hostDark = dark
}

// HostDark reports the last recorded host theme
func (p *Provider) HostDark() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hostDark
}

// Resolve returns the dark_theme flag. override, when non-empty, replaces
// the default preference for this call.
func (p *Provider) Resolve(override string) (bool, error) {
	p.mu.RLock()
	pref, hostDark := p.preference, p.hostDark
	p.mu.RUnlock()

	if strings.TrimSpace(override) != "" {
		o, err := Parse(override)
		if err != nil {
			return false, err
		}
		pref = o
	}
	return pref.IsDark(hostDark), nil
}
