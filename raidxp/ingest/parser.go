package ingest

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Event is one extracted gameplay occurrence. Immutable once built.
// Identity for dedup purposes is (Type, Timestamp, Actor, key attributes),
// so two rules matching overlapping spans of the same line cannot emit the
// same logical event twice.
type Event struct {
	Timestamp time.Time
	Type      string
	Actor     string
	Attrs     map[string]string
}

// Parser evaluates every compiled rule against a line and derives zero or
// more events from the matches.
type Parser struct {
	rules *RuleSet
}

func NewParser(rules *RuleSet) *Parser {
	return &Parser{rules: rules}
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTimestamp turns a captured timestamp into a UTC instant. Accepts the
// full date+time layouts first, then time-only merged with today's UTC date.
// Anything unparseable falls back to processing time; that is a best-effort
// policy, not a silent failure.
func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}

	if t, err := time.Parse("15:04:05", raw); err == nil {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	}

	return time.Now().UTC()
}

// Parse maps one raw log line to the events it carries. It never fails:
// unmatched or malformed lines yield an empty slice. Events with a blank
// actor are dropped here — this is the only validity gate ahead of the
// progression engine.
func (p *Parser) Parse(line string) []Event {
	var events []Event
	seen := make(map[string]struct{})

	emit := func(ev Event, keyAttr string) {
		if ev.Actor == "" {
			return
		}
		key := identityKey(ev.Type, ev.Timestamp, ev.Actor, keyAttr)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		events = append(events, ev)
	}

	for _, rule := range p.rules.Rules {
		caps, ok := captures(rule.Pattern, line)
		if !ok {
			continue
		}

		ts := parseTimestamp(caps["ts"])

		killer := strings.TrimSpace(caps["killer"])
		victim := strings.TrimSpace(caps["victim"])
		name := strings.TrimSpace(caps["name"])

		switch rule.Type {
		case "KILL":
			emit(Event{
				Timestamp: ts,
				Type:      "KILL",
				Actor:     killer,
				Attrs:     map[string]string{"victim": victim},
			}, victim)

			if p.containsHeadshot(line, caps) {
				emit(Event{
					Timestamp: ts,
					Type:      "HEADSHOT",
					Actor:     killer,
					Attrs:     map[string]string{"victim": victim},
				}, victim)
			}

		case "DEATH":
			// The victim owns the death; the killer is context.
			emit(Event{
				Timestamp: ts,
				Type:      "DEATH",
				Actor:     victim,
				Attrs:     map[string]string{"killer": killer},
			}, killer)

		case "SURVIVE", "EXTRACT":
			emit(Event{
				Timestamp: ts,
				Type:      rule.Type,
				Actor:     name,
				Attrs:     map[string]string{},
			}, "")

			// Extracting implies surviving.
			if rule.Type == "EXTRACT" {
				emit(Event{
					Timestamp: ts,
					Type:      "SURVIVE",
					Actor:     name,
					Attrs:     map[string]string{"from": "EXTRACT"},
				}, "EXTRACT")
			}

		case "DOGTAG":
			attrs := make(map[string]string)
			for _, k := range []string{"victim", "level", "side", "weapon", "status"} {
				if v, present := caps[k]; present && strings.TrimSpace(v) != "" {
					attrs[k] = v
				}
			}
			emit(Event{
				Timestamp: ts,
				Type:      "DOGTAG",
				Actor:     firstNonEmpty(name, killer, victim),
				Attrs:     attrs,
			}, attrs["victim"])

		default:
			attrs := make(map[string]string)
			for k, v := range caps {
				if v != "" {
					attrs[k] = v
				}
			}
			emit(Event{
				Timestamp: ts,
				Type:      rule.Type,
				Actor:     firstNonEmpty(name, killer, victim),
				Attrs:     attrs,
			}, flattenAttrs(attrs))
		}
	}

	return events
}

// containsHeadshot reports whether the line indicates a headshot, either via
// an explicit named capture or any configured keyword as a case-insensitive
// substring of the whole line.
func (p *Parser) containsHeadshot(line string, caps map[string]string) bool {
	if strings.TrimSpace(caps["headshot"]) != "" || strings.TrimSpace(caps["hs"]) != "" {
		return true
	}
	upper := strings.ToUpper(line)
	for _, kw := range p.rules.HeadshotKeywords {
		if strings.Contains(upper, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}

func captures(pattern *regexp.Regexp, line string) (map[string]string, bool) {
	m := pattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	caps := make(map[string]string)
	for i, name := range pattern.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		caps[name] = m[i]
	}
	return caps, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func identityKey(eventType string, ts time.Time, actor, keyAttr string) string {
	return eventType + "\x00" + ts.UTC().Format(time.RFC3339) + "\x00" + actor + "\x00" + keyAttr
}

func flattenAttrs(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+attrs[k])
	}
	return strings.Join(parts, ";")
}
