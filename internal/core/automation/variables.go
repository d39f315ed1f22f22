package automation

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/SophieEDesign/marketinghub-sub008/internal/core/formula"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}]*?)\s*\}\}`)

// Substitute replaces {{path}} placeholders in strings, recursively through
// slices and maps. Inputs are not modified.
func Substitute(v interface{}, actx Context) interface{} {
	switch t := v.(type) {
	case string:
		return SubstituteString(t, actx)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = Substitute(item, actx)
		}
		return out
	case []string:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = SubstituteString(item, actx)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = Substitute(item, actx)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, item := range t {
			out[k] = SubstituteString(item, actx)
		}
		return out
	}
	return v
}

// SubstituteString resolves each placeholder in order: trigger data,
// record_id, then variables. Unresolved placeholders become "".
func SubstituteString(s string, actx Context) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		path := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := Resolve(path, actx); ok {
			return stringify(v)
		}
		return ""
	})
}

// Resolve looks up a dotted path in the context
func Resolve(path string, actx Context) (interface{}, bool) {
	if path == "" {
		return nil, false
	}
	if v, ok := lookupPath(actx.TriggerData, path); ok {
		return v, true
	}
	if path == "record_id" && actx.RecordID != "" {
		return actx.RecordID, true
	}
	return lookupPath(actx.Variables, path)
}

// lookupPath tries the whole key first so field names containing dots still resolve
func lookupPath(data map[string]interface{}, path string) (interface{}, bool) {
	if data == nil {
		return nil, false
	}
	if v, ok := data[path]; ok {
		return v, true
	}

	parts := strings.Split(path, ".")
	var cur interface{} = data
	for _, part := range parts {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case formula.Row:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case map[string]interface{}, formula.Row:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return formula.ToString(formula.Normalize(v, ""))
}
