package devserve

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// TokenRewriter is the attribute-aware counterpart of PatternRewriter. It
// walks the document with the html tokenizer and only touches the src value
// of a <script> start tag whose type="module" attribute appears before a src
// naming Script. Other attributes may sit anywhere in the tag and keep their
// exact bytes; everything outside the rewritten value is copied verbatim.
type TokenRewriter struct {
	Script string
}

func (t *TokenRewriter) Rewrite(doc []byte, token int64) []byte {
	z := html.NewTokenizer(bytes.NewReader(doc))
	var out bytes.Buffer
	out.Grow(len(doc) + 16)
	consumed := 0
	changed := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		// TagName and TagAttr lower-case and unescape the tokenizer buffer
		// in place, so the raw bytes are copied first.
		raw := append([]byte(nil), z.Raw()...)
		consumed += len(raw)

		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			if t.match(z) {
				if rewritten, ok := replaceSrc(raw, bustedSrc(t.Script, token)); ok {
					out.Write(rewritten)
					changed = true
					continue
				}
			}
		}
		out.Write(raw)
	}

	if !changed {
		return doc
	}
	// Bytes the tokenizer gave up on (a truncated trailing tag) are kept.
	out.Write(doc[consumed:])
	return out.Bytes()
}

// match reports whether the current token is the module script tag.
func (t *TokenRewriter) match(z *html.Tokenizer) bool {
	name, hasAttr := z.TagName()
	if string(name) != "script" || !hasAttr {
		return false
	}
	sawModule := false
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "type":
			sawModule = string(val) == "module"
		case "src":
			path, _, _ := strings.Cut(string(val), "?")
			return sawModule && path == t.Script
		}
		if !more {
			return false
		}
	}
}

// replaceSrc swaps the value of the first src attribute of a raw start tag,
// keeping the original quoting style. An unquoted value gets double quotes.
func replaceSrc(raw []byte, value string) ([]byte, bool) {
	start, end, quoted, ok := srcValueSpan(raw)
	if !ok {
		return nil, false
	}
	out := make([]byte, 0, len(raw)+len(value)+2)
	out = append(out, raw[:start]...)
	if quoted {
		out = append(out, value...)
	} else {
		out = append(out, '"')
		out = append(out, value...)
		out = append(out, '"')
	}
	out = append(out, raw[end:]...)
	return out, true
}

// srcValueSpan walks a raw start tag attribute by attribute, the way the
// html tokenizer splits it, and returns the byte range of the first src
// value. Quoted values are skipped whole, so text inside another
// attribute's value is never taken for an attribute.
func srcValueSpan(raw []byte) (start, end int, quoted, ok bool) {
	n := len(raw)
	nameEnd := func(c byte) bool { return isTagSpace(c) || c == '/' || c == '>' }

	i := 1 // past '<'
	for i < n && !nameEnd(raw[i]) {
		i++
	}
	for i < n {
		for i < n && (isTagSpace(raw[i]) || raw[i] == '/') {
			i++
		}
		if i >= n || raw[i] == '>' {
			return 0, 0, false, false
		}
		// The first byte always belongs to the key, even a stray '='.
		ks := i
		i++
		for i < n && !nameEnd(raw[i]) && raw[i] != '=' {
			i++
		}
		key := raw[ks:i]
		for i < n && isTagSpace(raw[i]) {
			i++
		}
		if i >= n || raw[i] != '=' {
			continue
		}
		i++
		for i < n && isTagSpace(raw[i]) {
			i++
		}
		if i >= n {
			return 0, 0, false, false
		}

		var vs, ve int
		q := raw[i] == '"' || raw[i] == '\''
		if q {
			vs = i + 1
			j := bytes.IndexByte(raw[vs:], raw[i])
			if j < 0 {
				return 0, 0, false, false
			}
			ve = vs + j
			i = ve + 1
		} else {
			vs = i
			for i < n && !isTagSpace(raw[i]) && raw[i] != '>' {
				i++
			}
			ve = i
		}
		if bytes.EqualFold(key, []byte("src")) {
			return vs, ve, q, true
		}
	}
	return 0, 0, false, false
}

func isTagSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
