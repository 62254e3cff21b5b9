// Package madara parses pages of sites built on the Madara WordPress theme.
package madara

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/silaprtnw01/webtoon-be-normal-design/internal/crawler"
)

// readLabel is the "read this story" button text on listing cards.
const readLabel = "อ่านเรื่องนี้"

var (
	ErrNoChapterNumber = errors.New("madara: no chapter number in url")

	absURL         = regexp.MustCompile(`(?i)^https?://`)
	absOrRooted    = regexp.MustCompile(`^https?://|^/`)
	chapterHref    = regexp.MustCompile(`-\d+/$`)
	chapterTail    = regexp.MustCompile(`-\d+(?:\.\d+)?/?$`)
	chapterNumber  = regexp.MustCompile(`-(\d+(?:\.\d+)?)/?$`)
	chapterSuffix  = regexp.MustCompile(`-\d+(?:\.\d+)?$`)
	imageExtension = regexp.MustCompile(`(?i)\.(webp|jpg|jpeg|png)(\?.*)?$`)
)

// Image attributes in order of preference. Lazy loaders keep the real
// source in a data attribute.
var imageAttrs = []string{"data-src", "data-lazy-src", "src", "data-original"}

type Adapter struct {
	base string
}

var _ crawler.Parser = (*Adapter)(nil)

// New returns an adapter for the site at base, e.g. https://one-manga.com.
func New(base string) *Adapter {
	return &Adapter{base: strings.TrimRight(base, "/")}
}

func (a *Adapter) ListingURL(page int) string {
	if page > 1 {
		return fmt.Sprintf("%s/manga/page/%d/", a.base, page)
	}
	return a.base + "/manga/"
}

// ParseListing returns the series URLs linked from a listing page.
func (a *Adapter) ParseListing(page string) []string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, el := range elements(doc, atom.A) {
		href := strings.TrimSpace(attr(el, "href"))
		if href == "" {
			continue
		}
		byText := strings.Contains(strings.TrimSpace(text(el)), readLabel)
		byHref := absOrRooted.MatchString(href) &&
			strings.Contains(href, "/manga/") &&
			!strings.Contains(href, "/manga/page/") &&
			!chapterHref.MatchString(href)
		if !byText && !byHref {
			continue
		}

		u := a.abs(href)
		if chapterTail.MatchString(u) {
			continue
		}
		u = clean(u)
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}

func (a *Adapter) ParseSeries(pageURL, page string) (crawler.SeriesPage, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return crawler.SeriesPage{}, fmt.Errorf("parse series page: %w", err)
	}
	slug, err := seriesSlug(pageURL)
	if err != nil {
		return crawler.SeriesPage{}, err
	}

	title := firstText(doc, atom.H1)
	if title == "" {
		title = "untitled"
	}

	out := crawler.SeriesPage{
		Slug:        slug,
		Title:       title,
		Description: description(doc),
	}

	link := regexp.MustCompile(`/manga/` + regexp.QuoteMeta(slug) + `-\d`)
	byNumber := make(map[float64]string)
	for _, el := range elements(doc, atom.A) {
		href := strings.TrimSpace(attr(el, "href"))
		if href == "" {
			continue
		}
		u := a.abs(href)
		if !link.MatchString(u) {
			continue
		}
		u = clean(u)
		n, err := numberFromURL(u)
		if err != nil {
			continue
		}
		if _, dup := byNumber[n]; !dup {
			byNumber[n] = u
		}
	}

	numbers := make([]float64, 0, len(byNumber))
	for n := range byNumber {
		numbers = append(numbers, n)
	}
	sort.Float64s(numbers)
	out.ChapterURLs = make([]string, 0, len(numbers))
	for _, n := range numbers {
		out.ChapterURLs = append(out.ChapterURLs, byNumber[n])
	}
	return out, nil
}

// description joins the synopsis paragraphs. Short fragments are dropped
// and a synopsis under 20 characters counts as none.
func description(doc *html.Node) *string {
	collect := func(ps []*html.Node) []string {
		var out []string
		for _, p := range ps {
			t := strings.TrimSpace(text(p))
			if utf8.RuneCountInString(t) > 10 {
				out = append(out, t)
			}
		}
		return out
	}

	paragraphs := collect(paragraphsIn(doc, "entry-content", "entry-content-single"))
	if len(paragraphs) == 0 {
		paragraphs = collect(paragraphsIn(doc, "entry-content"))
	}

	d := strings.Join(paragraphs, "\n\n")
	if utf8.RuneCountInString(d) < 20 {
		return nil
	}
	return &d
}

func (a *Adapter) ParseChapter(pageURL, page string) (crawler.ChapterPage, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return crawler.ChapterPage{}, fmt.Errorf("parse chapter page: %w", err)
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return crawler.ChapterPage{}, fmt.Errorf("chapter url: %w", err)
	}
	number, err := numberFromURL(pageURL)
	if err != nil {
		return crawler.ChapterPage{}, err
	}

	segments := strings.FieldsFunc(u.EscapedPath(), func(r rune) bool { return r == '/' })
	last := ""
	if len(segments) > 0 {
		last = segments[len(segments)-1]
	}

	out := crawler.ChapterPage{
		SeriesSlug: chapterSuffix.ReplaceAllString(last, ""),
		Number:     number,
		Title:      firstText(doc, atom.H1),
	}

	seen := make(map[string]bool)
	for _, img := range elements(doc, atom.Img) {
		for _, k := range imageAttrs {
			v := strings.TrimSpace(attr(img, k))
			if v == "" {
				continue
			}
			src := a.abs(v)
			if imageExtension.MatchString(src) {
				src = clean(src)
				if !seen[src] {
					seen[src] = true
					out.Images = append(out.Images, src)
				}
			}
			break
		}
	}
	return out, nil
}

func (a *Adapter) abs(href string) string {
	if absURL.MatchString(href) {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return a.base + href
	}
	return a.base + "/" + href
}

// clean drops the fragment.
func clean(u string) string {
	if i := strings.IndexByte(u, '#'); i >= 0 {
		return u[:i]
	}
	return u
}

// seriesSlug is the last path segment that is not "manga".
func seriesSlug(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("series url: %w", err)
	}
	parts := strings.FieldsFunc(u.EscapedPath(), func(r rune) bool { return r == '/' })
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "manga" {
			return parts[i], nil
		}
	}
	return "series", nil
}

func numberFromURL(raw string) (float64, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("chapter url: %w", err)
	}
	m := chapterNumber.FindStringSubmatch(u.EscapedPath())
	if m == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoChapterNumber, raw)
	}
	return strconv.ParseFloat(m[1], 64)
}
