package parser

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"go-soft404/internal/models"
)

// Parser turns raw response bodies into comparable text.
type Parser struct {
	stripMarkup bool
}

type Option func(*Parser)

// WithMarkup keeps HTML tags in the normalized text instead of reducing
// a page to its visible words.
func WithMarkup() Option {
	return func(p *Parser) { p.stripMarkup = false }
}

func New(opts ...Option) *Parser {
	p := &Parser{stripMarkup: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	digitsRe     = regexp.MustCompile(`[0-9]+`)
)

// Extract decodes r to UTF-8 and returns the page title and visible text.
func (p *Parser) Extract(r io.Reader, contentType string) (models.Page, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return models.Page{}, err
	}
	return p.extract(decode(buf.Bytes(), contentType))
}

func (p *Parser) extract(utf8data []byte) (models.Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
	if err != nil {
		return models.Page{}, err
	}

	// Remove script & style
	doc.Find("script,noscript,style,template").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	title := strings.TrimSpace(doc.Find("title").First().Text())

	var parts []string
	for _, n := range doc.Find("body").Nodes {
		collectText(n, &parts)
	}
	text := strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.Join(parts, " "), " "))
	wordCount := 0
	if text != "" {
		wordCount = len(strings.Fields(text))
	}
	return models.Page{Title: title, Text: text, WordCount: wordCount}, nil
}

// collectText gathers text nodes separately so that adjacent elements
// like <li>a</li><li>b</li> do not fuse into one word.
func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// Normalize returns the lower-cased, whitespace-collapsed text of body
// with volatile tokens (numbers, timestamps, long ids) masked, so two
// renders of the same template compare equal.
func (p *Parser) Normalize(body []byte, contentType string) string {
	return strings.Join(p.Tokens(body, contentType), " ")
}

// Tokens is Normalize split on whitespace.
func (p *Parser) Tokens(body []byte, contentType string) []string {
	if len(body) == 0 {
		return nil
	}
	data := decode(body, contentType)
	text := string(data)
	if p.stripMarkup && isHTML(contentType, data) {
		if page, err := p.extract(data); err == nil {
			text = page.Title + " " + page.Text
		}
	}

	fields := strings.Fields(strings.ToLower(text))
	for i, f := range fields {
		fields[i] = mask(f)
	}
	return fields
}

func mask(tok string) string {
	var hasDigit, hasLetter bool
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		}
	}
	if !hasDigit {
		return tok
	}
	// session ids, hashes, cache busters
	if hasLetter && len(tok) >= 16 {
		return "~"
	}
	return digitsRe.ReplaceAllString(tok, "0")
}

func decode(data []byte, contentType string) []byte {
	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		// fallback: keep the raw bytes, invalid sequences are tolerated downstream
		if !utf8.Valid(data) {
			return bytes.ToValidUTF8(data, []byte("\uFFFD"))
		}
		return data
	}
	return utf8data
}

func isHTML(contentType string, data []byte) bool {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case strings.Contains(mediaType, "html"):
		return true
	case mediaType == "" || mediaType == "application/octet-stream":
		return strings.HasPrefix(http.DetectContentType(data), "text/html")
	}
	return false
}
