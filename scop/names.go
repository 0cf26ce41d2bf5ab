package scop

import "strings"

var nameReplacer = strings.NewReplacer(".", "_", "\"", "_")

// sanitize turns a value or block identifier into a name safe for set and
// relation tuples: the leading SSA marker is stripped and characters the
// printer syntax reserves are replaced.
func sanitize(name string) string {
	if len(name) > 0 && (name[0] == '%' || name[0] == '@') {
		name = name[1:]
	}
	return nameReplacer.Replace(name)
}
