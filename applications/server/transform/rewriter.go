package transform

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/donmikel/formproxy/applications/server/domain"
)

const rewriteOp = "rewrite html"

// Attributes holding resource locations, on any element.
var urlAttributes = map[string]bool{
	"href":       true,
	"src":        true,
	"action":     true,
	"poster":     true,
	"background": true,
	"data":       true,
}

// span is a byte range of the output holding an inline script element.
type span struct {
	start, end int
}

var noSpan = span{start: -1, end: -1}

func (s span) closed() bool {
	return s.start >= 0 && s.end > s.start
}

// Rewrite resolves relative resource references in doc against baseURL.
// Tags without rewritten attributes are copied byte for byte. With
// removeTrailingScript set, the last inline script element is dropped when
// nothing but whitespace, comments and end tags follow it.
func Rewrite(doc, baseURL string, removeTrailingScript bool) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", domain.NewError(domain.TransformFailed, rewriteOp, fmt.Errorf("parse base url: %w", err))
	}
	if !base.IsAbs() {
		return "", domain.NewError(domain.TransformFailed, rewriteOp, fmt.Errorf("base url %q is not absolute", baseURL))
	}

	var out bytes.Buffer
	out.Grow(len(doc))

	z := html.NewTokenizer(strings.NewReader(doc))
	trailing := noSpan
	inInlineScript := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				// an unfinished tag at the end of input is kept as is
				out.Write(z.Raw())
				break
			}
			return "", domain.NewError(domain.TransformFailed, rewriteOp, z.Err())
		}

		raw := append([]byte(nil), z.Raw()...)

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if rewriteAttributes(&tok, base) {
				raw = []byte(tok.String())
			}

			if tt == html.StartTagToken && tok.Data == "script" && !hasAttribute(tok, "src") {
				trailing = span{start: out.Len(), end: -1}
				inInlineScript = true
			} else {
				trailing = noSpan
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if inInlineScript && string(name) == "script" {
				trailing.end = out.Len() + len(raw)
				inInlineScript = false
			}
		case html.TextToken:
			if !inInlineScript && len(bytes.TrimSpace(raw)) > 0 {
				trailing = noSpan
			}
		}

		out.Write(raw)
	}

	result := out.Bytes()
	if removeTrailingScript && trailing.closed() {
		trimmed := make([]byte, 0, len(result)-(trailing.end-trailing.start))
		trimmed = append(trimmed, result[:trailing.start]...)
		trimmed = append(trimmed, result[trailing.end:]...)
		result = trimmed
	}

	return string(result), nil
}

func rewriteAttributes(tok *html.Token, base *url.URL) bool {
	changed := false
	for i, attr := range tok.Attr {
		if attr.Namespace != "" || !urlAttributes[attr.Key] {
			continue
		}
		if abs, ok := resolveReference(base, attr.Val); ok {
			tok.Attr[i].Val = abs
			changed = true
		}
	}
	return changed
}

// resolveReference returns the absolute form of ref, or false when ref is
// already absolute, protocol-relative, fragment-only, empty or unparsable.
func resolveReference(base *url.URL, ref string) (string, bool) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
		return "", false
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme != "" {
		return "", false
	}

	return base.ResolveReference(u).String(), true
}

func hasAttribute(tok html.Token, key string) bool {
	for _, attr := range tok.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}
