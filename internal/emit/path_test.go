package emit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePathStripsRootAndSuffix(t *testing.T) {
	assert.Equal(t, "src/file.txt", NormalizePath("/cvsroot/src/file.txt,v", "/cvsroot"))
}

func TestNormalizePathElidesAtticLeaf(t *testing.T) {
	assert.Equal(t, "src/file.txt", NormalizePath("/cvsroot/src/Attic/file.txt,v", "/cvsroot"))
}

func TestNormalizePathElidesTopLevelAttic(t *testing.T) {
	assert.Equal(t, "file.txt", NormalizePath("/cvsroot/Attic/file.txt,v", "/cvsroot"))
}

func TestNormalizePathNoDirectory(t *testing.T) {
	assert.Equal(t, "file.txt", NormalizePath("/cvsroot/file.txt,v", "/cvsroot"))
}
