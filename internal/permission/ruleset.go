package permission

import (
	"os"
	"strings"
)

// Rule is a single permission rule: a query on (permission, pattern) resolves
// to an action. Rules are immutable values; a Ruleset is just an ordered
// sequence of them.
type Rule struct {
	Permission string
	Pattern    string
	Action     PermissionAction
}

// Ruleset is an ordered sequence of rules, evaluated last-match-wins.
type Ruleset []Rule

// ConfigValue is either a plain action ("allow") or a pattern->action map
// ({"git *": "allow"}), matching the duck-typed shape of opencode.json's
// permission fields.
type ConfigValue struct {
	Action   PermissionAction
	Patterns map[string]PermissionAction
}

// ConfigPermission is a permission-name -> ConfigValue mapping, as loaded
// from configuration.
type ConfigPermission map[string]ConfigValue

// WildcardMatch implements the grammar from spec.md section 6.3 / 4.1:
//
//	"*"    matches everything
//	"*X*"  true when X is a substring of text
//	"*X"   true when text ends with X
//	"X*"   true when text starts with X
//	else   exact equality
func WildcardMatch(text, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) >= 2 {
		middle := pattern[1 : len(pattern)-1]
		return strings.Contains(text, middle)
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(text, pattern[1:])
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(text, pattern[:len(pattern)-1])
	}
	return text == pattern
}

// expandPattern expands a leading "~/", "$HOME/" or bare "~" against the
// user's home directory before the rule is stored.
func expandPattern(pattern string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return pattern
	}
	switch {
	case pattern == "~":
		return home
	case strings.HasPrefix(pattern, "~/"):
		return home + pattern[1:]
	case strings.HasPrefix(pattern, "$HOME/"):
		return home + pattern[5:]
	default:
		return pattern
	}
}

// FromConfig flattens a configuration mapping into a ruleset: a plain action
// becomes a rule with pattern "*"; a nested pattern->action map becomes one
// rule per entry, with each pattern run through expandPattern.
func FromConfig(config ConfigPermission) Ruleset {
	var rules Ruleset
	for permission, value := range config {
		if value.Patterns == nil {
			rules = append(rules, Rule{Permission: permission, Pattern: "*", Action: value.Action})
			continue
		}
		for pattern, action := range value.Patterns {
			rules = append(rules, Rule{Permission: permission, Pattern: expandPattern(pattern), Action: action})
		}
	}
	return rules
}

// Merge concatenates rulesets in order; later entries take priority under
// last-match-wins evaluation.
func Merge(rulesets ...Ruleset) Ruleset {
	var merged Ruleset
	for _, rs := range rulesets {
		merged = append(merged, rs...)
	}
	return merged
}

// Evaluate flattens the given rulesets and returns the last rule whose
// permission and pattern both wildcard-match the query. If none match, it
// synthesizes {permission, "*", ask}.
func Evaluate(permission, pattern string, rulesets ...Ruleset) Rule {
	merged := Merge(rulesets...)
	for i := len(merged) - 1; i >= 0; i-- {
		rule := merged[i]
		if WildcardMatch(permission, rule.Permission) && WildcardMatch(pattern, rule.Pattern) {
			return rule
		}
	}
	return Rule{Permission: permission, Pattern: "*", Action: ActionAsk}
}

// editTools maps the edit-family tool ids onto the "edit" permission used by
// the ruleset (write/patch/multiedit are all gated the same way as edit).
var editTools = map[string]bool{
	"edit": true, "write": true, "patch": true, "multiedit": true,
}

// Disabled computes the set of tool ids hidden from the model under the
// given ruleset: a tool is disabled when the last rule matching its
// permission has pattern "*" and action deny.
func Disabled(tools []string, ruleset Ruleset) map[string]bool {
	result := make(map[string]bool)
	for _, tool := range tools {
		perm := tool
		if editTools[tool] {
			perm = "edit"
		}
		var matched *Rule
		for i := len(ruleset) - 1; i >= 0; i-- {
			if WildcardMatch(perm, ruleset[i].Permission) {
				r := ruleset[i]
				matched = &r
				break
			}
		}
		if matched != nil && matched.Pattern == "*" && matched.Action == ActionDeny {
			result[tool] = true
		}
	}
	return result
}

// DefaultRuleset is the baseline ruleset applied before any agent-specific
// or user overrides: allow everything by default, ask for doom-loop and
// external-directory, deny the question/plan transition permissions unless
// overridden, and gate dotenv files.
func DefaultRuleset() Ruleset {
	return Ruleset{
		{Permission: "*", Pattern: "*", Action: ActionAllow},
		{Permission: "doom_loop", Pattern: "*", Action: ActionAsk},
		{Permission: "external_directory", Pattern: "*", Action: ActionAsk},
		{Permission: "question", Pattern: "*", Action: ActionDeny},
		{Permission: "plan_enter", Pattern: "*", Action: ActionDeny},
		{Permission: "plan_exit", Pattern: "*", Action: ActionDeny},
		{Permission: "read", Pattern: "*.env", Action: ActionAsk},
		{Permission: "read", Pattern: "*.env.*", Action: ActionAsk},
		{Permission: "read", Pattern: "*.env.example", Action: ActionAllow},
	}
}

// BuildAgentRuleset composes the ruleset an agent runs under: defaults (or,
// for explore, a deny-everything base) plus the agent's specific appended
// rules plus the caller-supplied user rules, in that order so that user
// rules win last-match-wins ties.
func BuildAgentRuleset(agentName string, userRules Ruleset) Ruleset {
	defaults := DefaultRuleset()

	switch agentName {
	case "build":
		return Merge(defaults, Ruleset{
			{Permission: "question", Pattern: "*", Action: ActionAllow},
			{Permission: "plan_enter", Pattern: "*", Action: ActionAllow},
		}, userRules)
	case "plan":
		return Merge(defaults, Ruleset{
			{Permission: "question", Pattern: "*", Action: ActionAllow},
			{Permission: "plan_exit", Pattern: "*", Action: ActionAllow},
			{Permission: "edit", Pattern: "*", Action: ActionDeny},
		}, userRules)
	case "explore":
		return Merge(Ruleset{
			{Permission: "*", Pattern: "*", Action: ActionDeny},
			{Permission: "grep", Pattern: "*", Action: ActionAllow},
			{Permission: "glob", Pattern: "*", Action: ActionAllow},
			{Permission: "list", Pattern: "*", Action: ActionAllow},
			{Permission: "bash", Pattern: "*", Action: ActionAllow},
			{Permission: "webfetch", Pattern: "*", Action: ActionAllow},
			{Permission: "websearch", Pattern: "*", Action: ActionAllow},
			{Permission: "codesearch", Pattern: "*", Action: ActionAllow},
			{Permission: "read", Pattern: "*", Action: ActionAllow},
		}, userRules)
	default:
		return Merge(defaults, userRules)
	}
}
