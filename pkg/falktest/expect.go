package falktest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/vango-dev/falk/pkg/dom"
)

// Component returns markup for a component root carrying id and, if
// non-empty, token.
//
// Example:
//
//	falktest.Component("div", "counter", "t1", "<span>0</span>")
func Component(tag, id, token, inner string) string {
	attrs := fmt.Sprintf(` %s="%s"`, dom.AttrNodeID, id)
	if token != "" {
		attrs += fmt.Sprintf(` %s="%s"`, dom.AttrToken, token)
	}
	return "<" + tag + attrs + ">" + inner + "</" + tag + ">"
}

// Page wraps body markup in a document.
func Page(title, body string) string {
	return "<!DOCTYPE html><html><head><title>" + title + "</title></head><body>" +
		body + "</body></html>"
}

// ExpectContains asserts that markup contains expected.
//
// Example:
//
//	falktest.ExpectContains(t, rt.HTML(), "Saved")
func ExpectContains(t testing.TB, markup, expected string) {
	t.Helper()
	if !strings.Contains(markup, expected) {
		t.Errorf("expected markup to contain %q, got:\n%s", expected, truncate(markup, 500))
	}
}

// ExpectNotContains asserts that markup does not contain unexpected.
func ExpectNotContains(t testing.TB, markup, unexpected string) {
	t.Helper()
	if strings.Contains(markup, unexpected) {
		t.Errorf("expected markup to NOT contain %q, got:\n%s", unexpected, truncate(markup, 500))
	}
}

// ExpectSelector asserts that markup has exactly count nodes matching
// selector.
//
// Example:
//
//	falktest.ExpectSelector(t, rt.HTML(), "li.item", 3)
func ExpectSelector(t testing.TB, markup, selector string, count int) {
	t.Helper()
	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatalf("parse markup: %v", err)
	}
	nodes, err := dom.QueryAll(doc, selector)
	if err != nil {
		t.Fatalf("selector %q: %v", selector, err)
	}
	if len(nodes) != count {
		t.Errorf("expected %d nodes matching %q, found %d in:\n%s", count, selector, len(nodes), truncate(markup, 500))
	}
}

// ExpectAttribute asserts that the first node matching selector carries
// attr with value.
func ExpectAttribute(t testing.TB, markup, selector, attr, value string) {
	t.Helper()
	doc, err := dom.ParseString(markup)
	if err != nil {
		t.Fatalf("parse markup: %v", err)
	}
	n, err := dom.Query(doc, selector)
	if err != nil {
		t.Fatalf("selector %q: %v", selector, err)
	}
	if n == nil {
		t.Errorf("no node matches %q in:\n%s", selector, truncate(markup, 500))
		return
	}
	if got, ok := dom.GetAttr(n, attr); !ok || got != value {
		t.Errorf("%s %s = %q, want %q", selector, attr, got, value)
	}
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
