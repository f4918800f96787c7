// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package threatscan

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// minTagLikeRuns is how many "<x" sequences the window needs before the
// markup pass runs at all. Binary formats routinely contain a stray angle
// bracket; three tag-like runs is the cheap gate the scanner uses.
const minTagLikeRuns = 3

// eventHandlerAttrs are inline handler attributes that execute script.
var eventHandlerAttrs = map[string]bool{
	"onclick":     true,
	"ondblclick":  true,
	"onload":      true,
	"onunload":    true,
	"onerror":     true,
	"onmouseover": true,
	"onmouseout":  true,
	"onfocus":     true,
	"onblur":      true,
	"onsubmit":    true,
	"onkeydown":   true,
	"onkeyup":     true,
	"onkeypress":  true,
}

// externalRefTags maps element names to the attribute that can reference an
// external resource.
var externalRefTags = map[string]string{
	"script": "src",
	"img":    "src",
	"link":   "href",
	"iframe": "src",
}

// looksLikeMarkup reports whether the window contains enough tag-like
// substrings to be worth a parse.
func looksLikeMarkup(window []byte) bool {
	runs := 0
	for i := 0; i+1 < len(window); i++ {
		if window[i] != '<' {
			continue
		}
		c := window[i+1]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '/' || c == '!' {
			runs++
			if runs >= minTagLikeRuns {
				return true
			}
		}
	}
	return false
}

// analyzeMarkup tokenizes the window as HTML and flags script elements,
// inline event handlers and protocol-qualified external references.
//
// The x/net/html tokenizer is permissive and never fails on malformed input;
// it simply stops at io.EOF. That is exactly the swallow-all-errors contract
// this pass needs: anything unparseable is treated as "not markup".
func analyzeMarkup(window []byte) []Evidence {
	if !looksLikeMarkup(window) {
		return nil
	}

	var out []Evidence
	z := html.NewTokenizer(bytes.NewReader(window))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or any tokenizer error: stop, keep what we have.
			return out
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		tok := z.Token()
		name := strings.ToLower(tok.Data)

		if name == "script" {
			out = append(out, Evidence{
				Kind:        KindScriptElement,
				Confidence:  0.95,
				Offset:      -1,
				Description: "script element in markup",
			})
		}

		for _, attr := range tok.Attr {
			key := strings.ToLower(attr.Key)
			if eventHandlerAttrs[key] {
				out = append(out, Evidence{
					Kind:        KindEventHandler,
					Confidence:  0.85,
					Offset:      -1,
					Description: "inline event handler " + key,
				})
			}
			if refAttr, ok := externalRefTags[name]; ok && key == refAttr {
				if hasProtocol(attr.Val) {
					out = append(out, Evidence{
						Kind:        KindExternalResource,
						Confidence:  0.6,
						Offset:      -1,
						Description: name + " references external resource",
					})
				}
			}
		}
	}
}

// hasProtocol reports whether a reference is protocol-qualified.
func hasProtocol(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "//")
}
