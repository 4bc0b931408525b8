package validate

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-consolidator/internal/profile"
)

// Website verdict confidences. Reachability alone is weak evidence; a
// title that names the company is stronger.
const (
	websiteTitleMatchConfidence  = 0.8
	websiteNoMatchConfidence     = 0.6
	websiteUnreachableConfidence = 0.2
)

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// WebsiteValidator fetches the profile's website and checks the page title
// against the company name.
type WebsiteValidator struct {
	httpClient *http.Client
}

// NewWebsiteValidator creates a website validator. A nil client gets a
// 10 second default.
func NewWebsiteValidator(httpClient *http.Client) *WebsiteValidator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebsiteValidator{httpClient: httpClient}
}

func (v *WebsiteValidator) Name() string { return "company_website" }

func (v *WebsiteValidator) Categories() []string {
	return []string{CategoryBasicInfo}
}

func (v *WebsiteValidator) Validate(ctx context.Context, p *profile.MasterProfile) ([]Verdict, error) {
	if p.WebsiteURL == "" {
		return nil, nil
	}

	verdict := Verdict{
		FieldName:     "website_url",
		OriginalValue: p.WebsiteURL,
		Method:        "website_fetch",
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.WebsiteURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "validate: build website request")
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "validate: fetch website")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		verdict.IsValid = false
		verdict.Confidence = websiteUnreachableConfidence
		verdict.DiscrepancyReason = "website returned status " + resp.Status
		return []Verdict{verdict}, nil
	}

	// Titles live in the first few KB; don't read arbitrary page sizes.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, eris.Wrap(err, "validate: read website body")
	}

	verdict.IsValid = true
	if titleMatches(body, p) {
		verdict.Confidence = websiteTitleMatchConfidence
		verdict.ValidatedValue = p.WebsiteURL
	} else {
		verdict.Confidence = websiteNoMatchConfidence
		verdict.DiscrepancyReason = "page title does not mention company name"
	}
	return []Verdict{verdict}, nil
}

func titleMatches(body []byte, p *profile.MasterProfile) bool {
	m := titleRe.FindSubmatch(body)
	if m == nil {
		return false
	}
	title := profile.Normalize(string(m[1]))
	if title == "" {
		return false
	}
	return strings.Contains(title, p.NormalizedName) ||
		strings.Contains(p.NormalizedName, title)
}
