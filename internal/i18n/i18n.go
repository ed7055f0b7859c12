// Package i18n holds the response messages of the API handlers in Traditional Chinese and English.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	MsgSitemapGenerated = "sitemap.generated"
	MsgSitemapFailed    = "sitemap.failed"
	MsgRoutesFailed     = "routes.failed"
	MsgSitemapSummary   = "sitemap.summary"
	MsgUnauthorized     = "auth.unauthorized"
)

var (
	Default   = language.TraditionalChinese
	supported = []language.Tag{language.TraditionalChinese, language.English}
	matcher   = language.NewMatcher(supported)
	messages  = newCatalog()
)

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(Default))
	set := func(tag language.Tag, key, msg string) {
		if err := b.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}
	zh, en := language.TraditionalChinese, language.English

	set(zh, MsgSitemapGenerated, "✅ sitemap.xml 已成功產生")
	set(en, MsgSitemapGenerated, "✅ sitemap.xml generated")
	set(zh, MsgSitemapFailed, "❌ sitemap 產生失敗")
	set(en, MsgSitemapFailed, "❌ sitemap generation failed")
	set(zh, MsgRoutesFailed, "取得文章路由失敗")
	set(en, MsgRoutesFailed, "failed to load post routes")
	set(zh, MsgSitemapSummary, "已寫入 %d 個網址到 %s")
	set(en, MsgSitemapSummary, "wrote %d URLs to %s")
	set(zh, MsgUnauthorized, "需要管理員權限")
	set(en, MsgUnauthorized, "admin credentials required")
	return b
}

// Match picks the best supported language for an Accept-Language header value.
// Unknown or empty values yield the default language.
func Match(acceptLanguage string) language.Tag {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	base, _ := tag.Base()
	if base.String() == "en" {
		return language.English
	}
	return Default
}

// PrinterFor returns a printer bound to the message catalog.
func PrinterFor(acceptLanguage string) *message.Printer {
	return message.NewPrinter(Match(acceptLanguage), message.Catalog(messages))
}

// Text formats the message key for the given Accept-Language value.
func Text(acceptLanguage, key string, args ...any) string {
	return PrinterFor(acceptLanguage).Sprintf(key, args...)
}
