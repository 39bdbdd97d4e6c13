package domain

import (
	"encoding/json"
	"strings"
)

// ParseCompletion converts a loosely typed completion flag into a bool.
// Accepted: booleans, the numbers 1 and 0, and the strings 1/0, true/false,
// yes/no, y/n in any case. Everything else is rejected.
func ParseCompletion(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int:
		return numericCompletion(float64(v))
	case int64:
		return numericCompletion(float64(v))
	case float64:
		return numericCompletion(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return false, invalid("is_completed", "is_completed has unrecognised value %q", v.String())
		}
		return numericCompletion(f)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y":
			return true, nil
		case "0", "false", "no", "n":
			return false, nil
		}
		return false, invalid("is_completed", "is_completed has unrecognised value %q", v)
	case nil:
		return false, invalid("is_completed", "Missing required field: is_completed")
	}
	return false, invalid("is_completed", "is_completed has unsupported type %T", raw)
}

func numericCompletion(v float64) (bool, error) {
	switch v {
	case 1:
		return true, nil
	case 0:
		return false, nil
	}
	return false, invalid("is_completed", "is_completed must be 0 or 1")
}
