// Package routes maps request paths to logical panel names.
package routes

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/report-zone/mfe-demo-sub000/internal/config"
)

// Unknown is the panel name resolved for a path no rule matches.
const Unknown = "unknown"

// Access is the admission level a route requires.
type Access string

const (
	Public    Access = "public"
	Protected Access = "protected"
	Elevated  Access = "elevated"
)

// ParseAccess parses an access level; the empty string means public.
func ParseAccess(s string) (Access, error) {
	switch Access(strings.ToLower(strings.TrimSpace(s))) {
	case "", Public:
		return Public, nil
	case Protected:
		return Protected, nil
	case Elevated:
		return Elevated, nil
	default:
		return "", fmt.Errorf("unknown access level %q", s)
	}
}

// Rule maps a pattern to a panel. Exactly one of Pattern or Regexp is set.
type Rule struct {
	Pattern string
	Regexp  *regexp.Regexp
	Panel   string
	Exact   bool
	Access  Access
}

// Matches reports whether the rule matches path.
// A string pattern matches exactly, or also its subtree when Exact is false.
func (r Rule) Matches(path string) bool {
	if r.Regexp != nil {
		return r.Regexp.MatchString(path)
	}
	if path == r.Pattern {
		return true
	}
	if r.Exact {
		return false
	}
	prefix := r.Pattern
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.HasPrefix(path, prefix)
}

func (r Rule) String() string {
	if r.Regexp != nil {
		return fmt.Sprintf("regex %s -> %s", r.Regexp, r.Panel)
	}
	if r.Exact {
		return fmt.Sprintf("exact %s -> %s", r.Pattern, r.Panel)
	}
	return fmt.Sprintf("prefix %s -> %s", r.Pattern, r.Panel)
}

// Resolver evaluates an ordered rule list. It holds no mutable state.
type Resolver struct {
	rules []Rule
}

// NewResolver creates a resolver over a copy of rules.
func NewResolver(rules []Rule) *Resolver {
	return &Resolver{rules: append([]Rule(nil), rules...)}
}

// Match returns the first rule matching path.
func (r *Resolver) Match(path string) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.Matches(path) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Resolve returns the panel of the first rule matching path, or Unknown.
func (r *Resolver) Resolve(path string) string {
	if rule, ok := r.Match(path); ok {
		return rule.Panel
	}
	return Unknown
}

// Rules returns a copy of the rule list.
func (r *Resolver) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// DefaultRules is the rule set used when the configuration declares none.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "/", Panel: "home", Exact: true, Access: Public},
		{Pattern: "/home", Panel: "home", Access: Public},
		{Pattern: "/preferences", Panel: "preferences", Access: Public},
		{Pattern: "/account", Panel: "account", Access: Protected},
		{Pattern: "/admin", Panel: "admin", Access: Elevated},
	}
}

// FromConfig compiles configured rules, falling back to DefaultRules.
func FromConfig(cfg []config.RouteConfig) (*Resolver, error) {
	if len(cfg) == 0 {
		return NewResolver(DefaultRules()), nil
	}

	rules := make([]Rule, 0, len(cfg))
	for i, rc := range cfg {
		if rc.Panel == "" {
			return nil, fmt.Errorf("routes[%d]: panel is required", i)
		}
		if rc.Pattern == "" && rc.Regex == "" {
			return nil, fmt.Errorf("routes[%d]: pattern or regex is required", i)
		}
		access, err := ParseAccess(rc.Access)
		if err != nil {
			return nil, fmt.Errorf("routes[%d]: %w", i, err)
		}
		rule := Rule{Pattern: rc.Pattern, Panel: rc.Panel, Exact: rc.Exact, Access: access}
		if rc.Regex != "" {
			re, err := regexp.Compile(rc.Regex)
			if err != nil {
				return nil, fmt.Errorf("routes[%d]: compile %q: %w", i, rc.Regex, err)
			}
			rule.Regexp = re
		}
		rules = append(rules, rule)
	}
	return NewResolver(rules), nil
}
