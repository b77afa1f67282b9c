package page

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute text
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Form:     true,
	atom.Svg:      true,
	atom.Template: true,
	atom.Button:   true,
}

// blocks end a line of text
var blocks = map[atom.Atom]bool{
	atom.P:          true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Blockquote: true,
	atom.Div:        true,
	atom.Section:    true,
	atom.Article:    true,
	atom.Br:         true,
	atom.Tr:         true,
	atom.Td:         true,
	atom.Figcaption: true,
}

// ExtractText returns the page title and its visible text, one block per line
func ExtractText(htmlContent string) (string, string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", "", err
	}

	var title string
	var lines []string
	var current strings.Builder

	flush := func() {
		line := strings.Join(strings.Fields(current.String()), " ")
		if line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inBody bool) {
		if n.Type == html.ElementNode {
			if skipped[n.DataAtom] || n.DataAtom == atom.Head || n.DataAtom == atom.Title {
				return
			}
			if hidden(n) {
				return
			}
			if n.DataAtom == atom.Body {
				inBody = true
			}
		}

		if n.Type == html.TextNode && inBody {
			current.WriteString(n.Data)
			current.WriteString(" ")
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inBody)
		}

		if n.Type == html.ElementNode && blocks[n.DataAtom] {
			flush()
		}
	}

	// <title> lives in <head>, which the text walk skips
	if head := find(doc, atom.Head); head != nil {
		if t := find(head, atom.Title); t != nil && t.FirstChild != nil {
			title = strings.Join(strings.Fields(t.FirstChild.Data), " ")
		}
	}

	walk(doc, false)
	flush()

	return title, strings.Join(lines, "\n"), nil
}

func hidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch attr.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if attr.Val == "true" {
				return true
			}
		case "style":
			style := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

func find(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, a); found != nil {
			return found
		}
	}
	return nil
}
