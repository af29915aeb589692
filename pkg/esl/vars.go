package esl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BuildVariableString serializes channel variables into the `{a=1,b='x'}`
// block prepended to dialstrings. Booleans and numbers render bare (floats
// always keep a decimal part), strings already wrapped in quotes pass
// through, every other string is single-quoted. An empty map renders as "".
func BuildVariableString(vars map[string]any) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+formatVariable(vars[k]))
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

func formatVariable(v any) string {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case float32:
		return formatFloatVariable(float64(t))
	case float64:
		return formatFloatVariable(t)
	case string:
		if isQuoted(t) {
			return t
		}
		return "'" + t + "'"
	default:
		return fmt.Sprintf("'%v'", t)
	}
}

// formatFloatVariable keeps a decimal part so integral floats stay
// distinguishable from ints (0.0 renders as "0.0", not "0").
func formatFloatVariable(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	first, last := s[0], s[len(s)-1]
	return (first == '\'' && last == '\'') || (first == '"' && last == '"')
}
