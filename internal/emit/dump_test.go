package emit

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDumpWriterAddThenChange(t *testing.T) {
	var buf bytes.Buffer
	dw := NewDumpWriter(&buf, "trunk")

	dw.WriteFile("trunk/src/file.txt", []byte("hello"), false)
	out1 := buf.String()
	// "trunk" is the dump root, assumed pre-existing (the usage comment in
	// cvs2svndump.py notes the caller runs `svn mkdir --parents` for it
	// ahead of the dump), so only the intermediate "trunk/src" directory
	// gets an explicit add record.
	assert.Contains(t, out1, "Node-path: trunk/src\nNode-kind: dir\nNode-action: add")
	assert.NotContains(t, out1, "Node-path: trunk\nNode-kind: dir")
	assert.Contains(t, out1, "Node-action: add\nProp-content-length")
	assert.NotContains(t, out1, "svn:executable")

	buf.Reset()
	dw.WriteFile("trunk/src/file.txt", []byte("hello2"), true)
	out2 := buf.String()
	assert.Contains(t, out2, "Node-action: change")
	assert.Contains(t, out2, "svn:executable")
	// parent dirs aren't re-created on the second write.
	assert.NotContains(t, out2, "Node-kind: dir")
}

func TestDumpWriterDeleteThenRmdirCascade(t *testing.T) {
	var buf bytes.Buffer
	dw := NewDumpWriter(&buf, "")

	dw.WriteFile("src/only.txt", []byte("x"), false)
	buf.Reset()

	wrote := dw.WriteFileDelete("src/only.txt")
	assert.True(t, wrote)
	out := buf.String()
	assert.Contains(t, out, "Node-path: src/only.txt\nNode-kind: file\nNode-action: delete")
	// removing the file empties src/, which is then removed too.
	assert.Contains(t, out, "Node-path: src\nNode-kind: dir\nNode-action: delete")
}

func TestDumpWriterDeleteMissingPathIsNoop(t *testing.T) {
	var buf bytes.Buffer
	dw := NewDumpWriter(&buf, "")
	wrote := dw.WriteFileDelete("never/added.txt")
	assert.False(t, wrote)
	assert.Empty(t, buf.String())
}

func TestWriteFormatHeaderOnlyOnce(t *testing.T) {
	var buf bytes.Buffer
	dw := NewDumpWriter(&buf, "")
	dw.WriteFormatHeader()
	dw.WriteFormatHeader()
	assert.Equal(t, 1, strings.Count(buf.String(), "SVN-fs-dump-format-version"))
}

func TestNodePathJoinsSvnSubPath(t *testing.T) {
	assert.Equal(t, "trunk/src/file.txt", NodePath("/cvsroot", "trunk", "/cvsroot/src/file.txt,v"))
	assert.Equal(t, "src/file.txt", NodePath("/cvsroot", "", "/cvsroot/src/file.txt,v"))
}
