package panel

import (
	"html"
	"net/url"
	"regexp"
)

// EntryEditTemplate is the host template whose redirect input is patched.
const EntryEditTemplate = "entries/_edit"

// RedirectTargetVar is the render variable holding the redirect target.
const RedirectTargetVar = "redirectTarget"

var redirectInputPattern = regexp.MustCompile(`<input type="hidden" name="redirect" value=".*">`)

// Pages that send editors to an entry and expect them back afterwards.
var returnPages = []string{"broken-links", "mixed-content"}

// RedirectTarget returns the panel path the entry editor should return to:
// the referring page when template is the entry editor and the referrer is
// one of the return pages.
func RedirectTarget(cpTrigger, template, referrer string) (string, bool) {
	if template != EntryEditTemplate || referrer == "" {
		return "", false
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return "", false
	}
	for _, page := range returnPages {
		target := "/" + cpTrigger + "/" + Handle + "/" + page
		if u.Path == target {
			return target, true
		}
	}
	return "", false
}

// RedirectInput renders a hidden redirect input pointing at target.
func RedirectInput(target string) string {
	return `<input type="hidden" name="redirect" value="` + html.EscapeString(target) + `">`
}

// PatchRedirectInput replaces the first hidden redirect input in output.
func PatchRedirectInput(output, target string) string {
	loc := redirectInputPattern.FindStringIndex(output)
	if loc == nil {
		return output
	}
	return output[:loc[0]] + RedirectInput(target) + output[loc[1]:]
}
