package htmlutil

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("feedcloud.lib.htmlutil")

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
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanLabel turns the raw text of a label element into a single line, newlines
// are dropped rather than replaced so that labels split across lines are joined.
func CleanLabel(text string) string {
	text = strings.ReplaceAll(text, "\n", "")
	text = innerWhitespace.ReplaceAllString(text, " ")
	text = removeNonPrintable(text)
	return strings.TrimSpace(text)
}

// SelectLabels returns the cleaned text of every element matching selector,
// in document order. empty labels are skipped.
func SelectLabels(ctx context.Context, doc *goquery.Document, selector string) []string {
	_, span := tracer.Start(ctx, "SelectLabels")
	defer span.End()

	labels := []string{}
	for _, n := range doc.Find(selector).Nodes {
		label := CleanLabel(GetText(n))
		if label == "" {
			continue
		}
		labels = append(labels, label)
	}

	span.SetAttributes(
		attribute.String("selector", selector),
		attribute.Int("count", len(labels)),
	)
	return labels
}
