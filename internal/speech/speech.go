// Package speech turns markdown assistant replies into plain sentences
// suitable for text-to-speech.
package speech

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CodePlaceholder is spoken in place of a code block.
const CodePlaceholder = "(code omitted)"

var urlRe = regexp.MustCompile(`https?://[^\s)]+`)

// Plain renders md as speakable text. Markup is dropped, links keep
// their text, code blocks become CodePlaceholder, bare URLs become
// "the link", and each block or list item ends as its own sentence.
func Plain(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return sentences(urlRe.ReplaceAllString(md, "the link"))
	}

	doc, err := html.Parse(&buf)
	if err != nil {
		return sentences(urlRe.ReplaceAllString(md, "the link"))
	}

	var w strings.Builder
	extractText(doc, &w)
	return sentences(urlRe.ReplaceAllString(w.String(), "the link"))
}

// extractText writes the visible text of n, with a newline around each
// block element.
func extractText(n *html.Node, w *strings.Builder) {
	if n.Type == html.ElementNode {
		switch {
		case n.DataAtom == atom.Pre:
			w.WriteString("\n" + CodePlaceholder + "\n")
			return
		case n.DataAtom == atom.Img:
			if alt := attr(n, "alt"); alt != "" {
				w.WriteString(alt)
			}
			return
		case isBlockElement(n.DataAtom):
			w.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		w.WriteString(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, w)
	}

	if n.Type == html.ElementNode && (isBlockElement(n.DataAtom) || n.DataAtom == atom.Br) {
		w.WriteString("\n")
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// isBlockElement returns true for elements that render as blocks.
func isBlockElement(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Blockquote,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Ul, atom.Ol, atom.Table, atom.Tr, atom.Hr:
		return true
	}
	return false
}

// sentences collapses whitespace and joins non-empty lines, closing
// each with a period unless it already ends in punctuation.
func sentences(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if !strings.ContainsAny(line[len(line)-1:], ".!?:;,") {
			line += "."
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}
