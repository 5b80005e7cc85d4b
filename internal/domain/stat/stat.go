// Package stat resolves a challenge's rule text to the statistic it is scored by.
package stat

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKey is returned by Parse for keys outside the canonical set.
var ErrUnknownKey = errors.New("unknown stat key")

// Key is the canonical identifier of a scoring category. Its value is the key
// used in Player.Stats.
type Key string

// Canonical stat keys.
const (
	HomeRuns    Key = "hrs"
	RBIs        Key = "rbis"
	StolenBases Key = "sb"
)

// phrases is checked in order; the first match wins regardless of where the
// phrase appears in the rule.
var phrases = []struct {
	needle string
	key    Key
}{
	{"rbi", RBIs},
	{"stolen base", StolenBases},
	{"home run", HomeRuns},
}

// Default is used when a rule mentions none of the known phrases.
const Default = HomeRuns

// Resolve returns the stat key named by rule. Rules that match nothing fall
// back to Default.
func Resolve(rule string) Key {
	k, _ := ResolveStrict(rule)
	return k
}

// ResolveStrict is Resolve that also reports whether a phrase matched.
func ResolveStrict(rule string) (Key, bool) {
	lower := strings.ToLower(rule)
	for _, p := range phrases {
		if strings.Contains(lower, p.needle) {
			return p.key, true
		}
	}
	return Default, false
}

// Parse converts a canonical key string into a Key.
func Parse(s string) (Key, error) {
	k := Key(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
	}
	return k, nil
}

// Valid reports whether k is one of the canonical keys.
func (k Key) Valid() bool {
	switch k {
	case HomeRuns, RBIs, StolenBases:
		return true
	}
	return false
}

// DisplayName returns the label shown to players.
func (k Key) DisplayName() string {
	switch k {
	case HomeRuns:
		return "Home Runs"
	case RBIs:
		return "RBIs"
	case StolenBases:
		return "Stolen Bases"
	default:
		return strings.ToUpper(string(k))
	}
}

func (k Key) String() string { return string(k) }
