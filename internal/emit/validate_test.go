package emit

import (
	"bytes"
	"testing"
)

func TestValidateFastImportStreamAcceptsWellFormedStream(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFastImportWriter(&buf)
	fw.WriteBlob(1, []byte("hello"))
	fw.WriteCommit(CommitOptions{
		Branch:       "master",
		Mark:         2,
		Author:       "alice",
		Email:        "alice@example.com",
		TimestampUTC: 1000,
		Log:          []byte("msg"),
		Ops:          []FileOp{{Path: "a.txt", Mode: "100644", Mark: 1}},
	})

	if err := ValidateFastImportStream(&buf); err != nil {
		t.Fatalf("expected valid stream, got %v", err)
	}
}

func TestValidateFastImportStreamRejectsDuplicateMark(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFastImportWriter(&buf)
	fw.WriteBlob(1, []byte("hello"))
	fw.WriteBlob(1, []byte("world"))

	if err := ValidateFastImportStream(&buf); err == nil {
		t.Fatal("expected duplicate-mark error")
	}
}
