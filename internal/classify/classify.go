package classify

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/coherence/internal/version"
)

// Class is the outcome of classifying one key.
type Class int

const (
	// Unclassified keys match no rule and are left alone.
	Unclassified Class = iota
	// Preserve keys are snapshot before a purge and restored after it.
	Preserve
	// Purge keys are deleted by a migration pass.
	Purge
	// Reserved keys belong to the version registry or the migration lock.
	Reserved
)

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case Preserve:
		return "preserve"
	case Purge:
		return "purge"
	case Reserved:
		return "reserved"
	default:
		return "unclassified"
	}
}

// MarshalText renders the class name in JSON output.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// MatchKind says how a Rule's pattern is compared with a key.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchContains MatchKind = "contains"
	MatchPrefix   MatchKind = "prefix"
)

// Rule is one row of the classification table.
type Rule struct {
	Kind    MatchKind `json:"kind"`
	Pattern string    `json:"pattern"`
	Class   Class     `json:"class"`
}

func (r Rule) matches(key string) bool {
	switch r.Kind {
	case MatchExact:
		return key == r.Pattern
	case MatchContains:
		return strings.Contains(key, r.Pattern)
	case MatchPrefix:
		return strings.HasPrefix(key, r.Pattern)
	}
	return false
}

// registryKeys are the marker and lock keys, reserved regardless of policy.
var registryKeys = []string{
	version.KeyAppVersion,
	version.KeySchemaVersion,
	version.KeyLastUpdate,
	version.KeyMigrationLock,
}

// ConflictError reports a policy where a preserve or reserved key is also
// matched by a purge rule.
type ConflictError struct {
	Key   string
	Class Class
	Rule  Rule
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s key %q is also matched by purge rule %s %q", e.Class, e.Key, e.Rule.Kind, e.Rule.Pattern)
}

// Classifier applies a validated Policy. Safe for concurrent use; it is
// never mutated after New.
type Classifier struct {
	reserved    map[string]struct{}
	preserve    map[string]struct{}
	purge       []Rule
	sessionKeep []string
	caches      []Rule
	policy      Policy
}

// New validates p and builds a Classifier.
func New(p Policy) (*Classifier, error) {
	c := &Classifier{
		reserved: make(map[string]struct{}),
		preserve: make(map[string]struct{}),
		policy:   p,
	}

	var errs []error
	addKeys := func(dst map[string]struct{}, keys []string, section string) {
		for _, k := range keys {
			if k == "" {
				errs = append(errs, fmt.Errorf("%s: empty key", section))
				continue
			}
			dst[norm.NFC.String(k)] = struct{}{}
		}
	}
	addKeys(c.reserved, registryKeys, "reserved")
	addKeys(c.reserved, p.Reserved, "reserved")
	addKeys(c.preserve, p.Preserve, "preserve")

	// Purge rules are case-sensitive; cache rules are caseless.
	addRules := func(kind MatchKind, patterns []string, caseless bool, section string) []Rule {
		var rules []Rule
		for _, pat := range patterns {
			if pat == "" {
				errs = append(errs, fmt.Errorf("%s: empty pattern", section))
				continue
			}
			if caseless {
				pat = fold(pat)
			} else {
				pat = norm.NFC.String(pat)
			}
			rules = append(rules, Rule{Kind: kind, Pattern: pat, Class: Purge})
		}
		return rules
	}
	c.purge = append(c.purge, addRules(MatchExact, p.Purge.Exact, false, "purge.exact")...)
	c.purge = append(c.purge, addRules(MatchContains, p.Purge.Contains, false, "purge.contains")...)
	c.purge = append(c.purge, addRules(MatchPrefix, p.Purge.Prefixes, false, "purge.prefixes")...)
	c.caches = append(c.caches, addRules(MatchContains, p.Caches.Contains, true, "caches.contains")...)
	c.caches = append(c.caches, addRules(MatchPrefix, p.Caches.Prefixes, true, "caches.prefixes")...)

	for _, s := range p.SessionKeep {
		if s == "" {
			errs = append(errs, errors.New("session_keep: empty pattern"))
			continue
		}
		c.sessionKeep = append(c.sessionKeep, fold(s))
	}

	for _, k := range sortedKeys(c.preserve) {
		if _, ok := c.reserved[k]; ok {
			errs = append(errs, fmt.Errorf("key %q is both preserve and reserved", k))
		}
	}
	for _, class := range []Class{Reserved, Preserve} {
		set := c.reserved
		if class == Preserve {
			set = c.preserve
		}
		for _, k := range sortedKeys(set) {
			for _, r := range c.purge {
				if r.matches(k) {
					errs = append(errs, &ConflictError{Key: k, Class: class, Rule: r})
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid classification policy: %w", errors.Join(errs...))
	}
	return c, nil
}

// MustNew is New for policies known to be valid, such as DefaultPolicy.
func MustNew(p Policy) *Classifier {
	c, err := New(p)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the class of a durable-store key.
// Reserved wins over preserve, preserve over purge.
func (c *Classifier) Classify(key string) Class {
	k := norm.NFC.String(key)
	if _, ok := c.reserved[k]; ok {
		return Reserved
	}
	if _, ok := c.preserve[k]; ok {
		return Preserve
	}
	for _, r := range c.purge {
		if r.matches(k) {
			return Purge
		}
	}
	return Unclassified
}

// KeepSession reports whether a session-scoped key survives a migration.
// This is deliberately coarser than Classify: anything that looks related
// to authentication, the session, or the user is kept, the rest goes.
func (c *Classifier) KeepSession(key string) bool {
	k := fold(key)
	for _, s := range c.sessionKeep {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// DisposableCache reports whether a named content cache holds dynamic data
// and may be deleted.
func (c *Classifier) DisposableCache(name string) bool {
	n := fold(name)
	for _, r := range c.caches {
		if r.matches(n) {
			return true
		}
	}
	return false
}

// Rules returns the durable-store table in evaluation order.
func (c *Classifier) Rules() []Rule {
	var rules []Rule
	for _, k := range sortedKeys(c.reserved) {
		rules = append(rules, Rule{Kind: MatchExact, Pattern: k, Class: Reserved})
	}
	for _, k := range sortedKeys(c.preserve) {
		rules = append(rules, Rule{Kind: MatchExact, Pattern: k, Class: Preserve})
	}
	return append(rules, c.purge...)
}

// fold normalizes s for caseless matching. A Caser is stateful, so each
// call gets its own.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Policy returns the policy the classifier was built from.
func (c *Classifier) Policy() Policy {
	return c.policy
}
