package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rcowham/cvs2git/internal/keyword"
)

const fixture = `head	1.1;
access;
symbols;
locks; strict;
comment	@# @;


1.1
date	2024.05.06.12.30.00;	author carol;	state Exp;
branches;
next	;


desc
@@


1.1
log
@initial import@
text
@$Id$
line one
@
`

func TestLoadExpandsKeywordsAndReportsExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.txt,v")
	if err := os.WriteFile(path, []byte(fixture), 0755); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path, "1.1", keyword.New())
	if !assert.NoError(t, err) {
		return
	}
	assert.Contains(t, string(loaded.Data), "example.txt,v")
	assert.True(t, loaded.Executable)
}

func TestLoadLogReturnsRawMessage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.txt,v")
	if err := os.WriteFile(path, []byte(fixture), 0644); err != nil {
		t.Fatal(err)
	}

	log, err := LoadLog(path, "1.1")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "initial import", string(log))
}

func TestLoadUnknownRevisionErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.txt,v")
	if err := os.WriteFile(path, []byte(fixture), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path, "9.9", keyword.New())
	assert.Error(t, err)
}
