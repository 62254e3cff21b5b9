package madara

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// elements returns every element below root with tag a, in document order.
func elements(root *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			out = append(out, n)
		}
	})
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClasses(n *html.Node, classes ...string) bool {
	have := strings.Fields(attr(n, "class"))
	for _, want := range classes {
		found := false
		for _, c := range have {
			if c == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// text concatenates every text node below n.
func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

// firstText is the trimmed text of the first a element, or "".
func firstText(root *html.Node, a atom.Atom) string {
	if els := elements(root, a); len(els) > 0 {
		return strings.TrimSpace(text(els[0]))
	}
	return ""
}

// paragraphsIn collects the p elements inside every div carrying all of
// classes, each p once.
func paragraphsIn(root *html.Node, classes ...string) []*html.Node {
	var out []*html.Node
	seen := make(map[*html.Node]bool)
	for _, div := range elements(root, atom.Div) {
		if !hasClasses(div, classes...) {
			continue
		}
		for _, p := range elements(div, atom.P) {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
