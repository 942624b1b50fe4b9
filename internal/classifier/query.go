package classifier

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Product code shapes found in the catalogue: 9322-14, GPL-110GF, Y-9448HK.
var (
	dashCodePattern = regexp.MustCompile(`\d{4}-\d{2}`)
	gplCodePattern  = regexp.MustCompile(`(?i)GPL-?\d{3}[A-Z]*`)
	hkCodePattern   = regexp.MustCompile(`(?i)[A-Z]?-?9448[A-Z]*`)

	unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)
)

const (
	gplFamily = "GPL"
	hkFamily  = "9448HK"
)

// Keywords lists the words that switch on each intent. The categories are
// fixed; the words are configuration.
type Keywords struct {
	Visualization []string `yaml:"visualization"`
	Product       []string `yaml:"product"`
	Trend         []string `yaml:"trend"`
	Marketing     []string `yaml:"marketing"`
	Customer      []string `yaml:"customer"`
}

func DefaultKeywords() Keywords {
	return Keywords{
		Visualization: []string{"그래프", "차트", "표", "시각화", "보여", "그려", "도표", "막대", "파이", "라인"},
		Product:       []string{"제품", "판매량", "매출", "판매", "상품", "물건"},
		Trend:         []string{"증가", "감소", "늘어", "줄어", "휴면", "트렌드", "변화", "추이", "성장", "하락"},
		Marketing:     []string{"마케팅", "추천", "타겟", "대상", "영업"},
		Customer:      []string{"고객", "기업", "거래처"},
	}
}

// withDefaults fills any empty category from DefaultKeywords.
func (k Keywords) withDefaults() Keywords {
	d := DefaultKeywords()
	if len(k.Visualization) == 0 {
		k.Visualization = d.Visualization
	}
	if len(k.Product) == 0 {
		k.Product = d.Product
	}
	if len(k.Trend) == 0 {
		k.Trend = d.Trend
	}
	if len(k.Marketing) == 0 {
		k.Marketing = d.Marketing
	}
	if len(k.Customer) == 0 {
		k.Customer = d.Customer
	}
	return k
}

// Query is a parsed question: normalised text, candidate product codes and
// one flag per intent.
type Query struct {
	Text            string   `json:"text"`
	Codes           []string `json:"codes"`
	Visualization   bool     `json:"visualization"`
	ProductIntent   bool     `json:"product_intent"`
	TrendIntent     bool     `json:"trend_intent"`
	MarketingIntent bool     `json:"marketing_intent"`
	CustomerIntent  bool     `json:"customer_intent"`
}

func ParseQuery(text string, kw Keywords) Query {
	text = norm.NFC.String(text)
	return Query{
		Text:            text,
		Codes:           ExtractCodes(text),
		Visualization:   containsAny(text, kw.Visualization),
		ProductIntent:   containsAny(text, kw.Product),
		TrendIntent:     containsAny(text, kw.Trend),
		MarketingIntent: containsAny(text, kw.Marketing),
		CustomerIntent:  containsAny(text, kw.Customer),
	}
}

// ExtractCodes unions the three code families with the family boosts,
// keeping first-occurrence order and dropping duplicates.
func ExtractCodes(text string) []string {
	var codes []string
	codes = append(codes, dashCodePattern.FindAllString(text, -1)...)
	codes = append(codes, gplCodePattern.FindAllString(text, -1)...)
	codes = append(codes, hkCodePattern.FindAllString(text, -1)...)

	if strings.Contains(strings.ToUpper(text), gplFamily) {
		codes = append(codes, gplFamily)
	}
	if strings.Contains(text, "9448") {
		codes = append(codes, hkFamily)
	}

	out := codes[:0]
	for _, c := range codes {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

// SafeKey replaces every character outside [A-Za-z0-9_] with an underscore.
func SafeKey(code string) string {
	return unsafeKeyChars.ReplaceAllString(code, "_")
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, w) {
			return true
		}
	}
	return false
}
