// Package variables implements the workflow variable store: named scalar
// values and ${name} substitution in action strings.
package variables

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// refPattern matches ${name}, ${name || default}, and credential refs of the
// form ${credential_id.username} / ${credential_id.password} — the latter
// are left untouched by Store.Substitute and resolved upstream by a
// CredentialResolver (see workflow.CredentialResolver), since credential
// storage/decryption is explicitly out of scope here.
var refPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Store holds named scalar values (string, number, or bool) and performs
// ${name}/${name || default} substitution in strings.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// New returns an empty Store.
func New() *Store {
	return &Store{values: map[string]any{}}
}

// NewWithValues returns a Store pre-populated with initial values, as used
// when an AutomationConfig declares a "variables" map.
func NewWithValues(initial map[string]any) *Store {
	s := New()
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

// Get returns the named value and whether it is present.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Set assigns a value, creating the name if absent.
func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Increment adds delta to the named numeric variable, creating it at 0 if
// absent, per spec §4.1 ("INCREMENT_VARIABLE adds a number to an existing
// numeric variable, creates with 0 if absent").
func (s *Store) Increment(name string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := 0.0
	if existing, ok := s.values[name]; ok {
		n, err := toFloat(existing)
		if err != nil {
			return 0, fmt.Errorf("variable %q is not numeric: %w", name, err)
		}
		current = n
	}
	current += delta
	s.values[name] = current
	return current, nil
}

// Snapshot returns a copy of all values, suitable for embedding in a
// Checkpoint.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Restore replaces the store's contents wholesale, as done when resuming
// from a Checkpoint.
func (s *Store) Restore(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]any, len(values))
	for k, v := range values {
		s.values[k] = v
	}
}

// SubstituteResult reports whether any referenced name was missing, so
// callers can log the warning spec §4.1 calls for.
type SubstituteResult struct {
	Text    string
	Missing []string
}

// Substitute replaces every ${name} in s with the string form of its value.
// ${name || default} substitutes default when name is missing. A bare
// missing ${name} is left as the literal placeholder text and reported in
// Missing. Credential references (${id.username}, ${id.password}) are left
// untouched — they are not names in this store.
func (s *Store) Substitute(text string) SubstituteResult {
	var missing []string

	out := refPattern.ReplaceAllStringFunc(text, func(match string) string {
		inner := match[2 : len(match)-1] // strip ${ and }

		if isCredentialRef(inner) {
			return match
		}

		name := inner
		defaultVal, hasDefault := "", false
		if idx := strings.Index(inner, "||"); idx >= 0 {
			name = strings.TrimSpace(inner[:idx])
			defaultVal = strings.TrimSpace(inner[idx+2:])
			hasDefault = true
		}

		s.mu.RLock()
		v, ok := s.values[name]
		s.mu.RUnlock()

		if ok {
			return stringify(v)
		}
		if hasDefault {
			return defaultVal
		}
		missing = append(missing, name)
		return match
	})

	return SubstituteResult{Text: out, Missing: missing}
}

// isCredentialRef reports whether a ${...} body is of the form
// "identifier.username" or "identifier.password" — the credential-reference
// syntax spec §6 reserves for an external, unimplemented CredentialResolver.
func isCredentialRef(inner string) bool {
	dot := strings.LastIndex(inner, ".")
	if dot <= 0 || dot == len(inner)-1 {
		return false
	}
	field := inner[dot+1:]
	return field == "username" || field == "password"
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
