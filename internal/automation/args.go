package automation

import "fmt"

// Args are the configuration arguments of one app, as decoded from YAML.
// Accessors return ErrMissingArg or ErrInvalidArg so factories can fail
// fast on incomplete configuration.
type Args map[string]any

// String returns a required string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingArg, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidArg, key)
	}
	return s, nil
}

// StringDefault returns a string argument, or def when absent.
func (a Args) StringDefault(key, def string) (string, error) {
	if _, ok := a[key]; !ok {
		return def, nil
	}
	return a.String(key)
}

// Strings returns a required list of strings. A single string is
// accepted as a one-element list.
func (a Args) Strings(key string) ([]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingArg, key)
	}

	switch val := v.(type) {
	case string:
		if val == "" {
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalidArg, key)
		}
		return []string{val}, nil
	case []string:
		if len(val) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalidArg, key)
		}
		return val, nil
	case []any:
		if len(val) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalidArg, key)
		}
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("%w: %s[%d] must be a non-empty string", ErrInvalidArg, key, i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of strings", ErrInvalidArg, key)
	}
}

// TimeOfDayDefault returns an "HH:MM[:SS]" argument, or def when absent.
func (a Args) TimeOfDayDefault(key string, def TimeOfDay) (TimeOfDay, error) {
	if _, ok := a[key]; !ok {
		return def, nil
	}
	s, err := a.String(key)
	if err != nil {
		return 0, err
	}
	t, err := ParseTimeOfDay(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidArg, key, err)
	}
	return t, nil
}

// List returns a required list of nested argument maps.
func (a Args) List(key string) ([]Args, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingArg, key)
	}
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: %s must be a non-empty list", ErrInvalidArg, key)
	}

	out := make([]Args, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] must be a mapping", ErrInvalidArg, key, i)
		}
		out = append(out, Args(m))
	}
	return out, nil
}

// ArgReader collects the first error across several reads so factories
// can read every key and check once.
type ArgReader struct {
	args Args
	err  error
}

// Reader returns an ArgReader over a.
func (a Args) Reader() *ArgReader {
	return &ArgReader{args: a}
}

// String reads a required string.
func (r *ArgReader) String(key string) string {
	if r.err != nil {
		return ""
	}
	s, err := r.args.String(key)
	r.err = err
	return s
}

// StringDefault reads an optional string.
func (r *ArgReader) StringDefault(key, def string) string {
	if r.err != nil {
		return ""
	}
	s, err := r.args.StringDefault(key, def)
	r.err = err
	return s
}

// Strings reads a required string list.
func (r *ArgReader) Strings(key string) []string {
	if r.err != nil {
		return nil
	}
	s, err := r.args.Strings(key)
	r.err = err
	return s
}

// TimeOfDayDefault reads an optional time of day.
func (r *ArgReader) TimeOfDayDefault(key string, def TimeOfDay) TimeOfDay {
	if r.err != nil {
		return 0
	}
	t, err := r.args.TimeOfDayDefault(key, def)
	r.err = err
	return t
}

// Err returns the first error encountered.
func (r *ArgReader) Err() error {
	return r.err
}
