package emit

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// DecodeLog runs the candidate-encoding cascade over a raw log message:
// strict decode attempts through every encoding but the last, which
// falls back to lossy decoding, then
// re-encodes the result as UTF-8. Mirrors main()'s own
// `log.decode(e, how)` loop in original_source/cvs2gitdump.py, except
// named encodings are resolved via golang.org/x/text/encoding/htmlindex
// rather than Python's codecs registry — the one ecosystem library in
// the retrieval pack (gitlab.com/esr/reposurgeon's go.mod, a fellow
// VCS-history-conversion tool) that knows how to look an encoding name
// up by its IANA/common alias.
func DecodeLog(raw []byte, encodings []string) []byte {
	if len(encodings) == 0 {
		encodings = []string{"utf-8"}
	}
	for i, name := range encodings {
		lossy := i == len(encodings)-1

		// htmlindex resolves "utf-8" to a no-op passthrough transformer
		// that never rejects invalid byte sequences, so UTF-8 needs its
		// own strict check here rather than falling through to tryDecode.
		if strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
			if lossy || utf8.Valid(raw) {
				return sanitizeUTF8(raw, lossy)
			}
			continue
		}

		enc, err := htmlindex.Get(name)
		if err != nil {
			if lossy {
				return sanitizeUTF8(raw, true)
			}
			continue
		}
		decoded, ok := tryDecode(enc, raw, lossy)
		if ok {
			return decoded
		}
	}
	return sanitizeUTF8(raw, true)
}

func tryDecode(enc encoding.Encoding, raw []byte, lossy bool) ([]byte, bool) {
	decoder := enc.NewDecoder()
	out, err := decoder.Bytes(raw)
	if err != nil && !lossy {
		return nil, false
	}
	if err != nil {
		return sanitizeUTF8(out, true), true
	}
	if !lossy && !utf8.Valid(out) {
		return nil, false
	}
	return out, true
}

// sanitizeUTF8 drops invalid UTF-8 sequences when lossy is set, the
// equivalent of Python's `str.encode('utf-8', 'ignore')` final step.
func sanitizeUTF8(b []byte, lossy bool) []byte {
	if utf8.Valid(b) {
		return b
	}
	if !lossy {
		return b
	}
	var out bytes.Buffer
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != utf8.RuneError || size != 1 {
			out.Write(b[:size])
		}
		b = b[size:]
	}
	return out.Bytes()
}
