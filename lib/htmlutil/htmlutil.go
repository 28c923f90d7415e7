package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var tracer = otel.Tracer("visabulletin.lib.htmlutil")

// GetText returns the text content of a node without any separators, the same
// as goquery's Selection.Text for a single node.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode && (node.DataAtom == atom.Script || node.DataAtom == atom.Style) {
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true,
	atom.Ol: true, atom.Tr: true, atom.Table: true, atom.Tbody: true, atom.Thead: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true,
	atom.H6: true, atom.Section: true, atom.Article: true, atom.Dl: true, atom.Dt: true,
	atom.Dd: true, atom.Header: true, atom.Footer: true, atom.Pre: true, atom.Blockquote: true,
}

// GetBlockText returns the text content of a node where every block level
// element starts and ends a line and table cells are separated by tabs.
// Lines are returned with their whitespace collapsed, empty lines are dropped.
func GetBlockText(node *html.Node) []string {
	var buffer bytes.Buffer
	getBlockTextRecursive(node, &buffer, false)

	var lines []string
	for _, line := range strings.Split(buffer.String(), "\n") {
		cells := strings.Split(line, "\t")
		kept := cells[:0]
		for _, c := range cells {
			c = strings.TrimSpace(innerWhitespace.ReplaceAllString(c, " "))
			if c != "" {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			continue
		}
		lines = append(lines, strings.Join(kept, "\t"))
	}
	return lines
}

// text inside <pre> keeps its line breaks and tabs, everywhere else any
// whitespace run is a single space.
func getBlockTextRecursive(node *html.Node, buffer *bytes.Buffer, pre bool) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		if pre {
			buffer.WriteString(node.Data)
			return
		}
		buffer.WriteString(innerWhitespace.ReplaceAllString(node.Data, " "))
		return
	case html.ElementNode:
		if node.DataAtom == atom.Script || node.DataAtom == atom.Style {
			return
		}
	}

	block := node.Type == html.ElementNode && blockElements[node.DataAtom]
	cell := node.Type == html.ElementNode && (node.DataAtom == atom.Td || node.DataAtom == atom.Th)
	if block {
		buffer.WriteByte('\n')
	}
	pre = pre || (node.Type == html.ElementNode && node.DataAtom == atom.Pre)
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getBlockTextRecursive(child, buffer, pre)
	}
	if cell {
		buffer.WriteByte('\t')
	}
	if block {
		buffer.WriteByte('\n')
	}
}

type Anchor struct {
	Name string
	Href string
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// GetAnchors returns the name and href of every node in the selection, hrefs
// are resolved against `base` when it is not nil.
func GetAnchors(ctx context.Context, base *url.URL, sel *goquery.Selection) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = strings.TrimSpace(a.Val)
				break
			}
		}
		if href == "" {
			continue
		}

		link, err := url.Parse(href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			continue
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		name := innerWhitespace.ReplaceAllString(GetText(n), " ")
		name = strings.TrimSpace(removeNonPrintable(name))

		linkStr := link.String()
		anchors = append(anchors, Anchor{
			Name: name,
			Href: linkStr,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", linkStr),
		))
	}

	return anchors
}
