package advisor

import (
	"regexp"
	"sort"
	"strings"

	"trendcast/internal/domain"
)

// companyTickers maps common company names to their listing.
var companyTickers = map[string]string{
	"APPLE":            "AAPL",
	"GOOGLE":           "GOOGL",
	"ALPHABET":         "GOOGL",
	"MICROSOFT":        "MSFT",
	"AMAZON":           "AMZN",
	"TESLA":            "TSLA",
	"FACEBOOK":         "META",
	"NETFLIX":          "NFLX",
	"NVIDIA":           "NVDA",
	"PAYPAL":           "PYPL",
	"ADOBE":            "ADBE",
	"INTEL":            "INTC",
	"CISCO":            "CSCO",
	"ORACLE":           "ORCL",
	"SALESFORCE":       "CRM",
	"WALMART":          "WMT",
	"COSTCO":           "COST",
	"NIKE":             "NKE",
	"COCA COLA":        "KO",
	"COCA-COLA":        "KO",
	"PEPSI":            "PEP",
	"PEPSICO":          "PEP",
	"MCDONALDS":        "MCD",
	"MCDONALD'S":       "MCD",
	"STARBUCKS":        "SBUX",
	"DISNEY":           "DIS",
	"WALT DISNEY":      "DIS",
	"BOEING":           "BA",
	"GENERAL ELECTRIC": "GE",
	"GENERAL MOTORS":   "GM",
	"EXXON":            "XOM",
	"EXXONMOBIL":       "XOM",
	"CHEVRON":          "CVX",
	"JPMORGAN":         "JPM",
	"JP MORGAN":        "JPM",
	"BANK OF AMERICA":  "BAC",
	"WELLS FARGO":      "WFC",
	"CITIGROUP":        "C",
	"GOLDMAN SACHS":    "GS",
	"MASTERCARD":       "MA",
	"META":             "META",
	"IBM":              "IBM",
	"TARGET":           "TGT",
	"FORD":             "F",
	"VISA":             "V",
	"CITI":             "C",
}

// Names that are also everyday words. They resolve when typed on their own
// but are not picked out of free text.
var ambiguousNames = map[string]bool{"TARGET": true, "FORD": true, "VISA": true, "META": true, "CITI": true, "IBM": true}

// companyNames is the map's keys, longest first, so matching is stable.
var companyNames = func() []string {
	names := make([]string, 0, len(companyTickers))
	for name := range companyTickers {
		if !ambiguousNames[name] {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

// Upper-case words that show up in chat but are not worth a quote lookup.
var notTickers = map[string]bool{
	"A": true, "I": true, "AM": true, "AN": true, "AND": true, "ARE": true, "AT": true,
	"BE": true, "BUY": true, "CAN": true, "DO": true, "FOR": true, "HOLD": true, "HOW": true,
	"IF": true, "IN": true, "IS": true, "IT": true, "ME": true, "MY": true, "NO": true,
	"NOW": true, "OF": true, "OK": true, "ON": true, "OR": true, "SELL": true, "SO": true,
	"THE": true, "TO": true, "UP": true, "US": true, "USA": true, "USD": true, "WE": true,
	"WHAT": true, "WHY": true, "AI": true, "CEO": true, "ETF": true, "IPO": true, "EPS": true,
	"RSI": true, "MACD": true, "TLDR": true,
}

var (
	cashtag   = regexp.MustCompile(`\$([A-Za-z][A-Za-z0-9.\-]{0,9})`)
	upperWord = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
)

// ResolveTicker maps a company name to its ticker and otherwise returns the
// normalized input.
func ResolveTicker(input string) string {
	norm := domain.NormalizeTicker(input)
	if t, ok := companyTickers[norm]; ok {
		return t
	}
	return norm
}

// ExtractTickers pulls candidate tickers from free text: cashtags first,
// then known company names, then bare upper-case words. The result is
// deduplicated and keeps first-seen order.
func ExtractTickers(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(t string) {
		t = domain.NormalizeTicker(t)
		if !seen[t] && domain.IsValidTicker(t) {
			seen[t] = true
			out = append(out, t)
		}
	}

	for _, m := range cashtag.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	text = cashtag.ReplaceAllString(text, " ")

	upper := " " + strings.Join(strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return !((r >= 'A' && r <= 'Z') || r == '\'' || r == '-')
	}), " ") + " "
	for _, name := range companyNames {
		if strings.Contains(upper, " "+name+" ") {
			add(companyTickers[name])
		}
	}

	for _, w := range upperWord.FindAllString(text, -1) {
		if !notTickers[w] {
			add(w)
		}
	}
	return out
}
