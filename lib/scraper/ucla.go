// Package scraper extracts enrollment figures from the UCLA Schedule of
// Classes results page. It makes no promises about staleness or transient
// failures; callers validate the snapshot before acting on it.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/YGao2005/ucla-class-tracker/lib/models"
	"github.com/antchfx/htmlquery"
	"github.com/carlmjohnson/requests"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const baseURL = "https://sa.ucla.edu/ro/public/soc/Results"

var (
	// "Class Full (50)"
	classFullPattern = regexp.MustCompile(`Class Full\s*\((\d+)\)`)
	// "45 of 50 Enrolled", "9 of 10 Taken"
	countsPattern = regexp.MustCompile(`(\d+)\s+of\s+(\d+)`)

	ErrCourseNotFound = errors.New("course not listed for this term")
	ErrStatusUnknown  = errors.New("could not determine class status")
)

type UCLA struct {
	log       *zap.Logger
	transport http.RoundTripper
}

func NewUCLA(log *zap.Logger, transport http.RoundTripper) *UCLA {
	return &UCLA{log, transport}
}

// FetchSnapshot loads the subject's results page and reads the status and
// waitlist columns of the requested course.
func (u *UCLA) FetchSnapshot(ctx context.Context, subject, catalogNumber, term string) (models.Snapshot, error) {
	var page string
	err := requests.URL(resultsURL(subject, term)).
		Transport(u.transport).
		ToString(&page).
		Fetch(ctx)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("fetching schedule for %s %s: %w", subject, term, err)
	}

	doc, err := htmlquery.Parse(strings.NewReader(page))
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("parsing schedule page: %w", err)
	}
	return parseSnapshot(doc, subject, catalogNumber, term, time.Now().UTC())
}

// resultsURL builds the Schedule of Classes query for one subject. UCLA
// expects the subject code padded to 6 characters.
func resultsURL(subject, term string) string {
	params := url.Values{}
	params.Set("t", term)
	params.Set("sBy", "subject")
	params.Set("subj", padSubject(subject))
	params.Set("catlg", "")
	params.Set("cls_no", "")
	params.Set("s_g_cd", "%")
	return baseURL + "?" + params.Encode()
}

func padSubject(subject string) string {
	subject = strings.ToUpper(strings.TrimSpace(subject))
	for len(subject) < 6 {
		subject += " "
	}
	return subject
}

func parseSnapshot(doc *html.Node, subject, catalogNumber, term string, observedAt time.Time) (models.Snapshot, error) {
	section := findCourseSection(doc, catalogNumber)
	if section == nil {
		return models.Snapshot{}, fmt.Errorf("%s %s (%s): %w", subject, catalogNumber, term, ErrCourseNotFound)
	}

	snap := models.Snapshot{
		Subject:       strings.ToUpper(strings.TrimSpace(subject)),
		CatalogNumber: strings.ToUpper(strings.TrimSpace(catalogNumber)),
		Term:          term,
		ObservedAt:    observedAt,
	}

	status, enrolled, capacity, err := readStatusColumns(section)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%s %s: %w", subject, catalogNumber, err)
	}
	snap.Status = status
	snap.Enrolled = enrolled
	snap.Capacity = capacity

	snap.WaitlistCount, snap.WaitlistCapacity = readWaitlistColumns(section)

	// A full class whose waitlist still has room is effectively waitlistable.
	if snap.Status == models.StatusFull && snap.WaitlistCapacity > 0 && snap.WaitlistCount < snap.WaitlistCapacity {
		snap.Status = models.StatusWaitlisted
	}
	return snap, nil
}

// findCourseSection locates the expanded record for one catalog number. The
// results page lists every course of the subject; each record wraps its own
// status and waitlist columns.
func findCourseSection(doc *html.Node, catalogNumber string) *html.Node {
	xpath := fmt.Sprintf(
		"//div[contains(@class, 'class-record')][.//text()[contains(., %s)]]",
		xpathLiteral(strings.ToUpper(strings.TrimSpace(catalogNumber))),
	)
	if section := htmlquery.FindOne(doc, xpath); section != nil {
		return section
	}
	// Single-course pages have no record wrapper; fall back to the document
	// only when no records are present but status columns are.
	if htmlquery.FindOne(doc, "//div[contains(@class, 'class-record')]") == nil &&
		htmlquery.FindOne(doc, "//div[contains(@class, 'statusColumn')]") != nil {
		return doc
	}
	return nil
}

func readStatusColumns(section *html.Node) (models.Status, int, int, error) {
	var status models.Status
	var enrolled, capacity int

	for _, node := range htmlquery.Find(section, ".//div[contains(@class, 'statusColumn')]") {
		text := collectText(node)
		if text == "" || text == "Status" {
			continue
		}

		switch {
		case strings.Contains(text, "Open"):
			status = models.StatusOpen
		case strings.Contains(text, "Closed"):
			status = models.StatusClosed
		}

		if m := classFullPattern.FindStringSubmatch(text); m != nil {
			capacity = mustAtoi(m[1])
			enrolled = capacity
			status = models.StatusFull
		}
		if m := countsPattern.FindStringSubmatch(text); m != nil {
			enrolled = mustAtoi(m[1])
			capacity = mustAtoi(m[2])
		}
	}

	if status == "" {
		return "", 0, 0, ErrStatusUnknown
	}
	return status, enrolled, capacity, nil
}

func readWaitlistColumns(section *html.Node) (count, capacity int) {
	for _, node := range htmlquery.Find(section, ".//div[contains(@class, 'waitlistColumn')]") {
		if m := countsPattern.FindStringSubmatch(collectText(node)); m != nil {
			return mustAtoi(m[1]), mustAtoi(m[2])
		}
	}
	return 0, 0
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// xpathLiteral quotes a string for use inside an xpath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	return `concat('` + strings.ReplaceAll(s, `'`, `', "'", '`) + `')`
}
