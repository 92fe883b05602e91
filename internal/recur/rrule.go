// Package recur owns recurring-event mutations: the ordered RRULE
// parse/serialize pair, scope resolution, and the series split that rewrites
// a rule's termination clause without corrupting the rest of it.
package recur

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// untilLayout is the RRULE UNTIL timestamp format (basic UTC form).
const untilLayout = "20060102T150405Z"

// Rule is a parsed recurrence rule held as an ordered list of KEY=VALUE
// fields. Serialization preserves the original field order and passes
// through keys this package does not interpret, so a rewrite touches only
// the fields it means to touch.
type Rule struct {
	fields []ruleField
}

type ruleField struct {
	key   string
	value string
}

// ParseRule parses one rule line. A leading "RRULE:" marker is accepted and
// implied on re-serialization. Keys are normalized to upper case.
func ParseRule(line string) (*Rule, error) {
	body := line
	if idx := strings.Index(body, ":"); idx >= 0 && strings.EqualFold(body[:idx], "RRULE") {
		body = body[idx+1:]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("empty recurrence rule")
	}

	r := &Rule{}
	for _, part := range strings.Split(body, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.Index(part, "=")
		if eq <= 0 {
			return nil, fmt.Errorf("malformed recurrence rule field %q", part)
		}
		r.fields = append(r.fields, ruleField{
			key:   strings.ToUpper(part[:eq]),
			value: part[eq+1:],
		})
	}
	if _, ok := r.Get("FREQ"); !ok {
		return nil, fmt.Errorf("recurrence rule %q has no FREQ", line)
	}
	return r, nil
}

// Get returns the value of key if present.
func (r *Rule) Get(key string) (string, bool) {
	key = strings.ToUpper(key)
	for _, f := range r.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return "", false
}

// Set overwrites key in place, or appends it if absent.
func (r *Rule) Set(key, value string) {
	key = strings.ToUpper(key)
	for i, f := range r.fields {
		if f.key == key {
			r.fields[i].value = value
			return
		}
	}
	r.fields = append(r.fields, ruleField{key: key, value: value})
}

// Delete removes key if present.
func (r *Rule) Delete(key string) {
	key = strings.ToUpper(key)
	out := r.fields[:0]
	for _, f := range r.fields {
		if f.key != key {
			out = append(out, f)
		}
	}
	r.fields = out
}

// String serializes the rule with the RRULE: marker, preserving field order.
func (r *Rule) String() string {
	parts := make([]string, 0, len(r.fields))
	for _, f := range r.fields {
		parts = append(parts, f.key+"="+f.value)
	}
	return "RRULE:" + strings.Join(parts, ";")
}

// Validate confirms the serialized rule still parses under the full RRULE
// grammar.
func (r *Rule) Validate() error {
	body := strings.TrimPrefix(r.String(), "RRULE:")
	if _, err := rrule.StrToRRule(body); err != nil {
		return fmt.Errorf("rewritten rule %q is invalid: %w", r.String(), err)
	}
	return nil
}

// UntilValue renders t as an UNTIL timestamp.
func UntilValue(t time.Time) string { return t.Format(untilLayout) }

// EndOfDayBefore computes 23:59:59 on the calendar day preceding t, in t's
// own location, carried as a UTC-tagged RRULE timestamp. The termination
// clause is a bare date boundary; only the calendar day matters.
func EndOfDayBefore(t time.Time) time.Time {
	prev := t.AddDate(0, 0, -1)
	y, m, d := prev.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

// isRRuleLine reports whether a recurrence list entry is an RRULE (as
// opposed to EXDATE/RDATE/EXRULE lines, which rewrites pass through).
func isRRuleLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if idx := strings.Index(trimmed, ":"); idx >= 0 {
		return strings.EqualFold(trimmed[:idx], "RRULE")
	}
	// Bare "FREQ=..." rules have no marker.
	return strings.HasPrefix(strings.ToUpper(trimmed), "FREQ=")
}

// TruncateRules rewrites every RRULE line so the series ends at until:
// COUNT is dropped (mutually exclusive with UNTIL) and UNTIL is set or
// overwritten. Non-RRULE lines pass through untouched.
func TruncateRules(recurrence []string, until time.Time) ([]string, error) {
	out := make([]string, 0, len(recurrence))
	for _, line := range recurrence {
		if !isRRuleLine(line) {
			out = append(out, line)
			continue
		}
		rule, err := ParseRule(line)
		if err != nil {
			return nil, err
		}
		rule.Delete("COUNT")
		rule.Set("UNTIL", UntilValue(until))
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		out = append(out, rule.String())
	}
	return out, nil
}

// StripUntil rewrites every RRULE line with its UNTIL clause removed, for
// the continuation series created by a split. Other fields pass through.
func StripUntil(recurrence []string) ([]string, error) {
	out := make([]string, 0, len(recurrence))
	for _, line := range recurrence {
		if !isRRuleLine(line) {
			out = append(out, line)
			continue
		}
		rule, err := ParseRule(line)
		if err != nil {
			return nil, err
		}
		rule.Delete("UNTIL")
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		out = append(out, rule.String())
	}
	return out, nil
}
