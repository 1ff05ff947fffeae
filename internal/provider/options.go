package provider

import "maps"

// MergeOptions overlays call overrides on provider defaults. The merge is
// shallow and right-biased: a key present in overrides replaces the same
// key in defaults wholesale, including nested option groups. Nested maps
// are never deep-merged; override a group and you own all of it.
func MergeOptions(defaults, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(overrides))
	maps.Copy(merged, defaults)
	maps.Copy(merged, overrides)
	return merged
}
