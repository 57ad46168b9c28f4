package classifier

import (
	"strings"
	"unicode"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// keywordFamily maps a set of keywords to the category they indicate.
type keywordFamily struct {
	category schemas.Category
	keywords []string
}

// keywordTable is evaluated in order; the first family with a matching
// keyword wins. Specific families precede the ones whose keywords they
// contain ("company name" is a company, not a name).
var keywordTable = []keywordFamily{
	{schemas.CategoryFileUpload, []string{"upload", "resume", "résumé", "cv", "curriculum", "attach", "file"}},
	{schemas.CategoryEmail, []string{"email", "e-mail"}},
	{schemas.CategoryPhone, []string{"phone", "telephone", "mobile", "tel", "cell"}},
	{schemas.CategoryLinkedIn, []string{"linkedin"}},
	{schemas.CategoryGitHub, []string{"github"}},
	{schemas.CategoryWebsite, []string{"portfolio", "website", "homepage", "url"}},
	{schemas.CategoryFirstName, []string{"first name", "firstname", "fname", "given"}},
	{schemas.CategoryLastName, []string{"last name", "lastname", "lname", "surname", "family name"}},
	{schemas.CategoryCompany, []string{"company", "organization", "organisation", "employer"}},
	{schemas.CategoryEducation, []string{"education", "degree", "university", "school"}},
	// Bare name parts, after the families whose labels can contain them
	// ("family business", "first school attended").
	{schemas.CategoryFirstName, []string{"first"}},
	{schemas.CategoryLastName, []string{"last", "family"}},
	{schemas.CategoryName, []string{"name", "fullname"}},
	{schemas.CategoryPosition, []string{"position", "title", "role", "job"}},
	{schemas.CategorySalary, []string{"salary", "compensation"}},
	{schemas.CategorySkills, []string{"skill", "technolog"}},
	{schemas.CategoryExperience, []string{"experience", "years"}},
	{schemas.CategoryAddress, []string{"city", "location", "address", "country", "zip", "postal"}},
	{schemas.CategorySummary, []string{"summary", "about", "cover letter", "motivation", "bio"}},
}

// minPrefixLen is the shortest keyword allowed to match as a token prefix
// ("skill" matches "skills"). Shorter keywords must match a whole token so
// "cv" does not match "cvv".
const minPrefixLen = 5

// Tokenize splits text into lower-case word tokens on any non letter or
// digit and on camelCase boundaries.
func Tokenize(text string) []string {
	return tokenize(text, true)
}

func tokenize(text string, splitCamel bool) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(text)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if splitCamel && unicode.IsUpper(r) && len(cur) > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return tokens
}

// MatchKeywords returns the category of the first keyword family matching
// text, and false when none does. Brand spellings such as "LinkedIn" are
// matched both whole and split at the case change.
func MatchKeywords(text string) (schemas.Category, bool) {
	split := tokenize(text, true)
	if len(split) == 0 {
		return "", false
	}
	whole := tokenize(text, false)
	for _, family := range keywordTable {
		for _, kw := range family.keywords {
			kwTokens := tokenize(kw, false)
			if containsKeyword(split, kwTokens) || containsKeyword(whole, kwTokens) {
				return family.category, true
			}
		}
	}
	return "", false
}

// containsKeyword reports whether the keyword tokens occur contiguously in
// tokens. The last keyword token may match as a prefix when long enough.
func containsKeyword(tokens, kw []string) bool {
	if len(kw) == 0 || len(kw) > len(tokens) {
		return false
	}
	for start := 0; start+len(kw) <= len(tokens); start++ {
		matched := true
		for j, k := range kw {
			if !tokenMatches(tokens[start+j], k, j == len(kw)-1) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func tokenMatches(token, kw string, allowPrefix bool) bool {
	if token == kw {
		return true
	}
	return allowPrefix && len([]rune(kw)) >= minPrefixLen && strings.HasPrefix(token, kw)
}
