package emit

import (
	"path"
	"strings"
)

// NormalizePath derives the logical path emitted into the output stream
// from an RCS file's on-disk path: strip the CVS-root prefix, strip the
// trailing ",v", and elide a leaf "Attic" directory component (CVS
// stores dead-on-trunk files under Attic/ but their logical path never
// shows it).
func NormalizePath(rcsPath, cvsRoot string) string {
	p := strings.TrimPrefix(rcsPath, cvsRoot)
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, ",v")

	dir, base := path.Split(p)
	dir = strings.TrimSuffix(dir, "/")
	if path.Base(dir) == "Attic" {
		dir = path.Dir(dir)
		if dir == "." {
			return base
		}
		return dir + "/" + base
	}
	return p
}
