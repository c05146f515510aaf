// Package quiz parses the backend's rendered quiz HTML fragments into
// structured questions and grades answers against them. The backend owns
// question generation; this package only makes the delivered fragments
// interactive.
package quiz

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Option is one selectable answer of a question.
type Option struct {
	Value string
	Label string
}

// Question is one quiz-question block: a prompt, its radio options, and
// the correct option's value from the block's data-correct attribute.
type Question struct {
	Prompt     string
	CodeBlocks []string
	Options    []Option
	Correct    string
}

// Parse extracts all quiz-question blocks from a quiz HTML fragment.
// Fragments with no recognizable questions yield an empty slice, not an
// error; the raw HTML can still be shown as-is.
func Parse(fragment string) ([]Question, error) {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parsing quiz fragment: %w", err)
	}

	var questions []Question
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasClass(n, "quiz-question") {
			questions = append(questions, parseQuestion(n))
			return false
		}
		return true
	})
	return questions, nil
}

func parseQuestion(block *html.Node) Question {
	q := Question{Correct: attr(block, "data-correct")}

	walk(block, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.Data {
		case "input":
			// A radio outside any label; look for the text beside it.
			if attr(n, "type") == "radio" {
				q.Options = append(q.Options, Option{
					Value: attr(n, "value"),
					Label: optionLabel(n),
				})
			}
		case "label":
			if input := findRadio(n); input != nil {
				q.Options = append(q.Options, Option{
					Value: attr(input, "value"),
					Label: strings.TrimSpace(textContent(n)),
				})
			}
			return false
		case "pre":
			if code := strings.TrimRight(textContent(n), "\n"); code != "" {
				q.CodeBlocks = append(q.CodeBlocks, code)
			}
			return false
		case "p", "h1", "h2", "h3", "h4":
			if q.Prompt == "" {
				q.Prompt = strings.TrimSpace(textContent(n))
			}
			return false
		}
		return true
	})

	// Some templates put data-correct on the inner form instead of the
	// question block.
	if q.Correct == "" {
		walk(block, func(n *html.Node) bool {
			if n.Type == html.ElementNode && attr(n, "data-correct") != "" {
				q.Correct = attr(n, "data-correct")
				return false
			}
			return true
		})
	}

	return q
}

// findRadio returns the first radio input under n, if any.
func findRadio(n *html.Node) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && c.Data == "input" && attr(c, "type") == "radio" {
			found = c
			return false
		}
		return true
	})
	return found
}

// optionLabel finds the human text for a bare radio input: the text or
// label element following it.
func optionLabel(input *html.Node) string {
	for sib := input.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.TextNode && strings.TrimSpace(sib.Data) != "" {
			return strings.TrimSpace(sib.Data)
		}
		if sib.Type == html.ElementNode && sib.Data == "label" {
			return strings.TrimSpace(textContent(sib))
		}
		if sib.Type == html.ElementNode {
			break
		}
	}
	return ""
}

// walk visits nodes depth-first. Returning false from fn prunes descent
// into the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
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

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}
