package generictest

import (
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// Compiled names double as file names, so they must stay under this bound.
const maxNameLen = 64

// When a full name exceeds the bound, the short name keeps this many
// identifying characters followed by a fingerprint of the full name.
const truncIdentLen = 30

// nonIdentRun matches a maximal run of characters outside [0-9a-zA-Z_].
var nonIdentRun = regexp.MustCompile(`[^0-9a-zA-Z_]+`)

// fingerprint returns the 32-character hex md5 digest of s.
func fingerprint(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec // see above
	return hex.EncodeToString(sum[:])
}

// SynthesizeNames derives the short (compiled) and full (FQN) names for a
// generic test from its type label, its test/target name, and its argument
// mapping. The result is deterministic for equal inputs regardless of map
// construction order: top-level keys and nested map values are both walked
// in sorted key order. The "model" argument is excluded because the target
// is already embedded in the name.
//
// The full name is "{type}_{name}_{cleaned args joined by __}". When it
// reaches 64 characters the short name falls back to the first 30 characters
// of "{type}_{name}" plus a fingerprint of the full name, keeping it under
// the 64-character bound while remaining collision resistant.
func SynthesizeNames(testType, testName string, args map[string]any) (short, full string) {
	var flat []string
	for _, key := range slices.Sorted(maps.Keys(args)) {
		if key == "model" {
			continue
		}
		switch val := args[key].(type) {
		case map[string]any:
			for _, nested := range slices.Sorted(maps.Keys(val)) {
				flat = append(flat, stringify(val[nested]))
			}
		case []any:
			for _, elem := range val {
				flat = append(flat, stringify(elem))
			}
		case []string:
			flat = append(flat, val...)
		default:
			flat = append(flat, stringify(val))
		}
	}

	clean := make([]string, len(flat))
	for i, arg := range flat {
		clean[i] = nonIdentRun.ReplaceAllString(arg, "_")
	}
	unique := strings.Join(clean, "__")

	identifier := fmt.Sprintf("%s_%s", testType, testName)
	full = fmt.Sprintf("%s_%s", identifier, unique)

	if len(full) >= maxNameLen {
		trunc := identifier
		if len(trunc) > truncIdentLen {
			trunc = trunc[:truncIdentLen]
		}
		short = fmt.Sprintf("%s_%s", trunc, fingerprint(full))
	} else {
		short = full
	}
	return short, full
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
