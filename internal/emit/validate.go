package emit

import (
	"fmt"
	"io"

	libfastimport "github.com/rcowham/go-libgitfastimport"
)

// ValidateFastImportStream re-parses an already-buffered fast-import
// stream with the same library the teacher uses to consume one, as a
// belt-and-braces check before the buffered stream is released to the
// real output: every blob mark must be unique and every command must
// parse. This mirrors the teacher's own CmdBlob/CmdCommit/CmdReset
// switch in main.go, redirected at our own output instead of an
// externally supplied stream.
func ValidateFastImportStream(r io.Reader) error {
	seenMarks := map[int]bool{}
	f := libfastimport.NewFrontend(r, nil, nil)
	for {
		cmd, err := f.ReadCmd()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("emit: invalid fast-import stream: %w", err)
		}
		switch c := cmd.(type) {
		case libfastimport.CmdBlob:
			if seenMarks[c.Mark] {
				return fmt.Errorf("emit: duplicate mark :%d", c.Mark)
			}
			seenMarks[c.Mark] = true
		case libfastimport.CmdCommit:
			if seenMarks[c.Mark] {
				return fmt.Errorf("emit: duplicate mark :%d", c.Mark)
			}
			seenMarks[c.Mark] = true
		}
	}
}
