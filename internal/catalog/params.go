package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Templates are SELECT-only. Write verbs are rejected on word
// boundaries so column names like "updated_at" do not trip the check.
var forbiddenOps = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate|grant|revoke|exec|execute)\b`)

// A placeholder colon must not follow another colon, so Postgres casts
// ("::numeric") are not read as parameters.
var namedParamRe = regexp.MustCompile(`(?:^|[^:]):([a-z_][a-z0-9_]*)`)

// validateTemplate enforces the allowlist safety rules at load time:
// SELECT-only, no write operations, no statement chaining, and every
// :name placeholder declared in the parameter schema.
func validateTemplate(e *Entry) error {
	tmpl := strings.TrimSpace(e.Template)
	if tmpl == "" {
		return fmt.Errorf("empty template")
	}
	if !strings.HasPrefix(strings.ToUpper(tmpl), "SELECT") {
		return fmt.Errorf("template must start with SELECT")
	}
	if strings.Contains(tmpl, ";") {
		return fmt.Errorf("template must not chain statements")
	}
	if m := forbiddenOps.FindString(tmpl); m != "" {
		return fmt.Errorf("template contains forbidden operation %q", m)
	}
	for _, match := range namedParamRe.FindAllStringSubmatch(tmpl, -1) {
		if _, ok := e.Param(match[1]); !ok {
			return fmt.Errorf("template references undeclared param %q", match[1])
		}
	}
	return nil
}

// BuildParams produces the final bind map for an entry: defaults first,
// then user-supplied values on top, then required-param and type
// checks. Unknown user params are dropped and returned so the caller
// can log a warning. The result is canonical: dates are ISO-8601 and
// values carry their declared Go types.
func BuildParams(e *Entry, user map[string]interface{}) (map[string]interface{}, []string, error) {
	params := make(map[string]interface{}, len(e.Params))

	for _, p := range e.Params {
		if p.Default == nil {
			continue
		}
		v, err := coerceValue(p, p.Default())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: default for %q: %v", ErrInvalidParams, p.Name, err)
		}
		params[p.Name] = v
	}

	var dropped []string
	for name, raw := range user {
		if raw == nil {
			continue
		}
		p, ok := e.Param(name)
		if !ok {
			dropped = append(dropped, name)
			continue
		}
		v, err := coerceValue(p, raw)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: param %q: %v", ErrInvalidParams, name, err)
		}
		params[name] = v
	}

	for _, p := range e.Params {
		if p.Required {
			if _, ok := params[p.Name]; !ok {
				return nil, nil, fmt.Errorf("%w: missing required param %q", ErrInvalidParams, p.Name)
			}
		}
	}
	sort.Strings(dropped)
	return params, dropped, nil
}

// coerceValue converts a raw value into the parameter's declared type
// and checks it against the allowed-values list when one is set.
func coerceValue(p Param, raw interface{}) (interface{}, error) {
	var out interface{}
	switch p.Type {
	case ParamString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", raw)
		}
		out = s
	case ParamInteger:
		switch v := raw.(type) {
		case int:
			out = v
		case int64:
			out = int(v)
		case float64:
			if v != float64(int(v)) {
				return nil, fmt.Errorf("want integer, got %v", v)
			}
			out = int(v)
		case string:
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("want integer, got %q", v)
			}
			out = n
		default:
			return nil, fmt.Errorf("want integer, got %T", raw)
		}
	case ParamDate:
		s, err := normalizeDate(raw)
		if err != nil {
			return nil, err
		}
		out = s
	default:
		return nil, fmt.Errorf("unknown param type %q", p.Type)
	}

	if len(p.Allowed) > 0 {
		s := fmt.Sprintf("%v", out)
		found := false
		for _, a := range p.Allowed {
			if a == s {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("value %q not in allowed set %v", s, p.Allowed)
		}
	}
	return out, nil
}

// normalizeDate accepts time.Time values and a handful of common date
// layouts, and always yields the ISO-8601 date form.
func normalizeDate(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case time.Time:
		return v.Format("2006-01-02"), nil
	case string:
		for _, layout := range []string{"2006-01-02", time.RFC3339, "02/01/2006"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.Format("2006-01-02"), nil
			}
		}
		return "", fmt.Errorf("unparseable date %q", v)
	default:
		return "", fmt.Errorf("want date, got %T", raw)
	}
}

// CacheKey derives a deterministic cache key from a query id and its
// canonical params. Keys are sorted so logically-equal maps always
// serialize identically.
func CacheKey(id string, params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(id)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		enc, err := json.Marshal(params[k])
		if err != nil {
			b.WriteString(fmt.Sprintf("%v", params[k]))
			continue
		}
		b.Write(enc)
	}
	return b.String()
}
