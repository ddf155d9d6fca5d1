package process

import (
	"os"
	"sort"
	"strings"
)

// MergeEnv returns a fresh map holding base overlaid with overrides. Neither
// input is modified.
func MergeEnv(base, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(overrides))

	for k, v := range base {
		merged[k] = v
	}

	for k, v := range overrides {
		merged[k] = v
	}

	return merged
}

// Environ renders env as sorted KEY=VALUE pairs. With inherit set, the
// supervisor's own environment is included underneath env.
func Environ(env map[string]string, inherit bool) []string {
	all := make(map[string]string, len(env))

	if inherit {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
				all[k] = v
			}
		}
	}

	for k, v := range env {
		all[k] = v
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+all[k])
	}

	return out
}
