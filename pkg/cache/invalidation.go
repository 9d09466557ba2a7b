package cache

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// MatchType selects how an invalidation pattern is matched against
// cache keys.
type MatchType string

const (
	// MatchExact removes the key equal to the pattern.
	MatchExact MatchType = "exact"

	// MatchPrefix removes keys starting with the pattern.
	MatchPrefix MatchType = "prefix"

	// MatchSuffix removes keys ending with the pattern.
	MatchSuffix MatchType = "suffix"

	// MatchRegex removes keys matching the compiled pattern.
	MatchRegex MatchType = "regex"
)

// Pattern is a registered invalidation rule. The registry keeps
// patterns sorted by descending priority; the ordering matters when
// patterns are applied in sequence, the matcher itself is stateless.
type Pattern struct {
	Pattern  string    `json:"pattern"`
	Type     MatchType `json:"type"`
	Priority int       `json:"priority"`
}

// Invalidate removes every entry whose key matches the pattern and
// returns the count. A bad regex returns a *PatternError and removes
// nothing. The scan is O(n); invalidation is a rare, deliberate
// operation, not a hot path.
func (s *Store[V]) Invalidate(pattern string, typ MatchType) (int, error) {
	match, err := matcher(pattern, typ)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if match(key) {
			delete(s.entries, key)
			s.memBytes -= e.sizeBytes
			removed++
		}
	}
	if removed > 0 {
		Invalidations.WithLabelValues(string(typ)).Add(float64(removed))
		s.syncGauges()
	}
	s.logger.Debug().
		Str("pattern", pattern).
		Str("type", string(typ)).
		Int("removed", removed).
		Msg("invalidation")
	return removed, nil
}

// matcher builds the key predicate for a pattern, validating it.
func matcher(pattern string, typ MatchType) (func(string) bool, error) {
	switch typ {
	case MatchExact:
		return func(key string) bool { return key == pattern }, nil
	case MatchPrefix:
		return func(key string) bool { return strings.HasPrefix(key, pattern) }, nil
	case MatchSuffix:
		return func(key string) bool { return strings.HasSuffix(key, pattern) }, nil
	case MatchRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &PatternError{Pattern: pattern, Err: err}
		}
		return re.MatchString, nil
	default:
		return nil, &PatternError{Pattern: pattern, Err: fmt.Errorf("unknown match type %q", typ)}
	}
}

// AddPattern registers an invalidation pattern. Regex patterns are
// validated here so that later applications cannot fail.
func (s *Store[V]) AddPattern(p Pattern) error {
	if _, err := matcher(p.Pattern, p.Type); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.patterns = append(s.patterns, p)
	sortPatterns(s.patterns)
	return nil
}

// RemovePattern drops every registered pattern with the given pattern
// string, reporting whether any was removed.
func (s *Store[V]) RemovePattern(pattern string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.patterns[:0]
	removed := false
	for _, p := range s.patterns {
		if p.Pattern == pattern {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	s.patterns = kept
	return removed
}

// Patterns returns the registered patterns in descending priority
// order.
func (s *Store[V]) Patterns() []Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Pattern, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// ApplyPatterns runs every registered pattern in priority order and
// returns the total number of entries removed.
func (s *Store[V]) ApplyPatterns() int {
	total := 0
	for _, p := range s.Patterns() {
		// Patterns were validated at registration.
		n, _ := s.Invalidate(p.Pattern, p.Type)
		total += n
	}
	return total
}

// RegisterTrigger binds an event name to a set of patterns applied
// when the event fires. Registering an event again replaces its
// patterns.
func (s *Store[V]) RegisterTrigger(event string, patterns ...Pattern) error {
	for _, p := range patterns {
		if _, err := matcher(p.Pattern, p.Type); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bound := make([]Pattern, len(patterns))
	copy(bound, patterns)
	sortPatterns(bound)
	s.triggers[event] = bound
	return nil
}

// UnregisterTrigger removes an event binding, reporting whether it
// existed.
func (s *Store[V]) UnregisterTrigger(event string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.triggers[event]
	delete(s.triggers, event)
	return ok
}

// FireTrigger applies the patterns bound to event in priority order and
// returns the total number of entries removed.
func (s *Store[V]) FireTrigger(event string) (int, error) {
	s.mu.RLock()
	patterns, ok := s.triggers[event]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("unknown invalidation trigger %q", event)
	}

	total := 0
	for _, p := range patterns {
		n, _ := s.Invalidate(p.Pattern, p.Type)
		total += n
	}
	s.logger.Debug().Str("event", event).Int("removed", total).Msg("invalidation trigger fired")
	return total, nil
}

// sortPatterns orders by descending priority, keeping the insertion
// order of equal priorities.
func sortPatterns(patterns []Pattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].Priority > patterns[j].Priority
	})
}
