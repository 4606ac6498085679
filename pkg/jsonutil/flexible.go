package jsonutil

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexibleStringValue converts a json.RawMessage to a string, accepting model output
// that puts numbers or booleans where a string belongs. Returns "" for null or empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n == float64(int64(n)) {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}

	return string(raw)
}

// FlexString is a string field that also decodes from JSON numbers and booleans.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		return fmt.Errorf("expected a scalar, got %.40s", data)
	}
	*f = FlexString(FlexibleStringValue(data))
	return nil
}

// FlexStrings decodes a list whose items may be strings, numbers or booleans.
// A single scalar decodes as a one-element list.
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s := FlexibleStringValue(item); s != "" {
				out = append(out, s)
			}
		}
		*f = out
		return nil
	}
	if s := FlexibleStringValue(data); s != "" {
		*f = FlexStrings{s}
	} else {
		*f = nil
	}
	return nil
}
