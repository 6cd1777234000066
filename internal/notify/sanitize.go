package notify

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	bodyPolicy *bluemonday.Policy
)

// SanitizeBody reduces template body HTML to the formatting allow-list.
// Script-bearing content and event attributes are stripped unconditionally.
// Applied when a template is saved, before it can ever be rendered.
func SanitizeBody(body string) string {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("p", "br", "b", "strong", "i", "em", "u", "ul", "ol", "li", "h1", "h2", "h3", "span")
		p.AllowAttrs("href").OnElements("a")
		p.RequireNoFollowOnLinks(true)
		p.AllowURLSchemes("http", "https", "mailto")
		bodyPolicy = p
	})
	return bodyPolicy.Sanitize(body)
}
