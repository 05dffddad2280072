package botscore

import "regexp"

var automationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)headless`),
	regexp.MustCompile(`(?i)phantomjs`),
	regexp.MustCompile(`(?i)selenium`),
	regexp.MustCompile(`(?i)puppeteer`),
	regexp.MustCompile(`(?i)playwright`),
	regexp.MustCompile(`(?i)webdriver`),
	regexp.MustCompile(`(?i)\bbot\b`),
	regexp.MustCompile(`(?i)crawl`),
	regexp.MustCompile(`(?i)spider`),
	regexp.MustCompile(`(?i)scrapy`),
	regexp.MustCompile(`(?i)python-requests`),
	regexp.MustCompile(`(?i)go-http-client`),
	regexp.MustCompile(`(?i)okhttp`),
	regexp.MustCompile(`(?i)java/`),
}

var cliToolPattern = regexp.MustCompile(`(?i)^(curl|wget|httpie|lwp-request|powershell)`)

var scrapingProxyPattern = regexp.MustCompile(`(?i)(proxysite|croxyproxy|hidemyass|hide\.me|proxyium|translate\.googleusercontent|12ft\.io|webcache\.googleusercontent)`)
