package fragment

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Lines flattens a fragment into display lines. Block elements and list items
// start a new line; links keep their href so the caller can act on them.
func Lines(src string) ([]string, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	var (
		lines   []string
		current strings.Builder
	)
	flush := func() {
		if line := collapse(current.String()); line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			current.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.Br:
				flush()
				return
			case atom.Button:
				label := collapse(textOf(n))
				if label != "" {
					current.WriteString(" [" + label + "]")
				}
				return
			case atom.Input:
				return
			}
		}
		block := isBlock(n)
		if block {
			flush()
		}
		if n.DataAtom == atom.Li {
			current.WriteString("• ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if block {
			flush()
		}
	}
	visit(root)
	flush()
	return lines, nil
}

// Link is an anchor found in a fragment.
type Link struct {
	Text string
	Href string
}

// Links returns every anchor with an href, in document order.
func Links(src string) ([]Link, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	var links []Link
	walk(root, func(n *html.Node) bool {
		if n.DataAtom == atom.A {
			if href := attr(n, "href"); href != "" {
				links = append(links, Link{Text: collapse(textOf(n)), Href: href})
			}
			return false
		}
		return true
	})
	return links, nil
}

// FormActions returns the action attribute of every form matching class.
func FormActions(src, class string) ([]string, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	var actions []string
	walk(root, func(n *html.Node) bool {
		if n.DataAtom == atom.Form && hasClass(n, class) {
			actions = append(actions, attr(n, "action"))
			return false
		}
		return true
	})
	return actions, nil
}

func isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Table,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Section, atom.Form:
		return true
	}
	return false
}

// AttrValues returns every non-empty value of the attribute name, in
// document order. Buttons carry their target in data-* attributes.
func AttrValues(src, name string) ([]string, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	var values []string
	walk(root, func(n *html.Node) bool {
		if v := attr(n, name); v != "" {
			values = append(values, v)
		}
		return true
	})
	return values, nil
}

// Item is one <li> of a list fragment: its own text and every URL reachable
// from it through links, form actions or data-*-url attributes.
type Item struct {
	Text    string
	Targets []string
}

// ListItems returns the items of every list in src. Text inside links,
// buttons and forms is left out of Item.Text.
func ListItems(src string) ([]Item, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	var items []Item
	walk(root, func(n *html.Node) bool {
		if n.DataAtom != atom.Li {
			return true
		}
		items = append(items, listItem(n))
		return false
	})
	return items, nil
}

func listItem(li *html.Node) Item {
	var (
		item Item
		text strings.Builder
	)
	var visit func(n *html.Node, quiet bool)
	visit = func(n *html.Node, quiet bool) {
		if n.Type == html.TextNode {
			if !quiet {
				text.WriteString(n.Data)
				text.WriteString(" ")
			}
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.A:
				if href := attr(n, "href"); href != "" && href != "#" {
					item.Targets = append(item.Targets, href)
				}
				quiet = true
			case atom.Form:
				if action := attr(n, "action"); action != "" {
					item.Targets = append(item.Targets, action)
				}
				quiet = true
			case atom.Button, atom.Script, atom.Style:
				quiet = true
			}
			for _, a := range n.Attr {
				if strings.HasPrefix(a.Key, "data-") && strings.HasSuffix(a.Key, "-url") && a.Val != "" {
					item.Targets = append(item.Targets, a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c, quiet)
		}
	}
	visit(li, false)
	item.Text = collapse(text.String())
	return item
}
