// Package selector formats label selectors the same way the cluster does;
// the version resolver parses its output to build the Pod list selector.
package selector

import (
	"sort"
	"strings"
)

// Format renders a label map as a comma-separated "k=v" list with keys in
// lexicographic order, matching the display form Kubernetes itself uses for
// selectors. An empty or nil map renders as "".
func Format(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}
