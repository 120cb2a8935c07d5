package notify

import (
	"fmt"
	"net/url"
	"strings"

	"dunswatch/internal/scrape"
	"dunswatch/pkg/tghtml"
)

// FormatNewProducts builds the restock alert message.
//
// Layout (one numbered entry per product):
//
//	🆕 신상 입고 알림
//
//	1. <b>Radish Suit</b>
//	옵션: 86/92, 98/104
//	🔗 상품보기
func FormatNewProducts(baseURL string, products []scrape.Product) string {
	var b strings.Builder
	b.WriteString("🆕 " + tghtml.B("신상 입고 알림").String() + "\n")

	for i, p := range products {
		link := productURL(baseURL, p.URL)

		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, tghtml.B(p.Title)))
		if opts := p.OptionValues(); len(opts) > 0 {
			for j := range opts {
				opts[j] = strings.TrimSpace(opts[j])
			}
			b.WriteString("옵션: " + tghtml.Esc(strings.Join(opts, ", ")).String() + "\n")
		}
		if link != "" {
			b.WriteString("🔗 " + tghtml.Link("상품보기", link).String() + "\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func productURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Host == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
