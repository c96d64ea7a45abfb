package content

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

const (
	ExtractionSelector = "selector"
	ExtractionMarkup   = "markup"
	ExtractionRender   = "render"
)

// ExtractionError reports that comparable content could not be derived from
// a page. Kind is one of the Extraction* constants.
type ExtractionError struct {
	Kind     string
	Selector string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s %q: %v", e.Kind, e.Selector, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Result is the comparable content for one run. Matched is false only when
// a selector was given and no element matched it, which yields empty Text.
type Result struct {
	Text    string
	Matched bool
}

// Extract derives the comparable content from raw page markup. An empty
// selector returns raw unmodified; otherwise the inner HTML of the first
// element matching the CSS selector is returned.
func Extract(raw, selector string) (Result, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return Result{Text: raw, Matched: true}, nil
	}

	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return Result{}, &ExtractionError{Kind: ExtractionSelector, Selector: selector, Err: err}
	}

	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return Result{}, &ExtractionError{Kind: ExtractionMarkup, Selector: selector, Err: err}
	}

	first := goquery.NewDocumentFromNode(root).FindMatcher(matcher).First()
	if first.Length() == 0 {
		return Result{Text: "", Matched: false}, nil
	}

	inner, err := first.Html()
	if err != nil {
		return Result{}, &ExtractionError{Kind: ExtractionRender, Selector: selector, Err: err}
	}
	return Result{Text: inner, Matched: true}, nil
}

// ValidateSelector reports whether selector compiles, so a bad rule can be
// rejected before any network traffic.
func ValidateSelector(selector string) error {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil
	}
	if _, err := cascadia.Compile(selector); err != nil {
		return &ExtractionError{Kind: ExtractionSelector, Selector: selector, Err: err}
	}
	return nil
}
