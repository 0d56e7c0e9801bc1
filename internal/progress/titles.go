package progress

import (
	"fmt"
	"regexp"
)

// DefaultTicker stands in when a start notification names no ticker.
const DefaultTicker = "STOCK"

// UnknownToolTitle is used when no tool identifier can be extracted.
const UnknownToolTitle = "Running unknown tool..."

// CompletedSuffix is appended to a start title when its run ends.
const CompletedSuffix = " [완료]"

var (
	toolPattern   = regexp.MustCompile(`Running tool '([^']+)'`)
	tickerPattern = regexp.MustCompile(`'ticker':\s*'([^']+)'`)
)

// toolTitles maps tool identifiers to title templates; %s is the ticker.
var toolTitles = map[string]string{
	"get_financial_statement":            "%s 재무재표 분석",
	"financial_statements_from_polygon":  "%s 재무재표 불러오기",
	"simple_moving_average":              "%s 차트 기술적 분석",
	"stock_news":                         "%s 관련 뉴스 분석",
	"financial_statements_finnhub":       "%s 재무재표 분석",
	"get_basic_financials":               "%s 기본 정보 분석",
	"get_annual_financial_statements":    "%s 연간 재무재표 분석",
	"get_quarterly_financial_statements": "%s 분기 재무재표 분석",
	"stock_price_1m":                     "%s 1달간 주가 정보 분석",
	"stock_price_1y":                     "%s 1년간 주가 정보 분석",
	"relative_strength_index":            "%s 차트 기술 분석",
}

// ExtractTool pulls the tool identifier and ticker out of a start
// notification's free text. Either may be empty.
func ExtractTool(content string) (tool, ticker string) {
	if m := toolPattern.FindStringSubmatch(content); m != nil {
		tool = m[1]
	}
	if m := tickerPattern.FindStringSubmatch(content); m != nil {
		ticker = m[1]
	}
	return tool, ticker
}

// TitleFor returns the display title for tool, or false when the tool is not
// in the table.
func TitleFor(tool, ticker string) (string, bool) {
	tmpl, ok := toolTitles[tool]
	if !ok {
		return "", false
	}
	if ticker == "" {
		ticker = DefaultTicker
	}
	return fmt.Sprintf(tmpl, ticker), true
}

// DeriveTitle turns a start notification into a human-readable title.
// Extraction failure is not an error: it falls back to a synthesized title.
func DeriveTitle(content string) string {
	tool, ticker := ExtractTool(content)
	if tool == "" {
		return UnknownToolTitle
	}
	if title, ok := TitleFor(tool, ticker); ok {
		return title
	}
	return "Running " + tool + "..."
}
