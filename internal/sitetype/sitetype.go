// Package sitetype implements the business site-type detector (C3): a
// hybrid phrase/keyword lexicon scored against a page's URL, title, and
// content, with a domain-extension fallback cascade when the lexicon score
// is too weak to trust.
package sitetype

import (
	"strings"

	"github.com/demomirror/crawler/internal/model"
)

// pattern holds one site type's lexicon: high-confidence phrases (worth 5
// points) and supporting keywords (worth 1 point). A match in the URL scores
// 3x, in the title 2x, in the content 1x — first match wins per term, URL
// checked before title before content.
type pattern struct {
	phrases  []string
	keywords []string
}

var patterns = map[model.SiteType]pattern{
	model.SiteBanking: {
		phrases: []string{
			"online banking", "mobile banking", "account balance", "wire transfer",
			"loan application", "mortgage calculator", "investment banking",
			"wealth management", "checking account", "savings account",
			"credit score", "financial planning", "personal banking",
			"business banking", "commercial lending", "atm locator",
		},
		keywords: []string{
			"bank", "banking", "financial", "loan", "mortgage", "credit",
			"investment", "finance", "funds", "account", "lending", "wealth",
			"treasury",
		},
	},
	model.SiteEcommerce: {
		phrases: []string{
			"add to cart", "shopping cart", "checkout process", "product catalog",
			"customer reviews", "payment gateway", "shipping information",
			"return policy", "product details", "wishlist", "compare products",
			"order tracking", "online store", "product search",
			"shopping experience", "secure checkout",
		},
		keywords: []string{
			"shop", "store", "cart", "checkout", "product", "buy", "marketplace",
			"retail", "purchase", "order", "shipping", "payment", "catalog",
			"inventory",
		},
	},
	model.SiteNews: {
		phrases: []string{
			"breaking news", "news headlines", "current events", "news article",
			"press release", "editorial content", "investigative journalism",
			"news feed", "local news", "world news", "news archive",
			"news categories", "live updates", "news analysis", "reporter byline",
			"news coverage",
		},
		keywords: []string{
			"news", "article", "journalism", "reporter", "editorial", "headline",
			"story", "press", "media", "coverage", "update", "breaking",
		},
	},
	model.SiteHealthcare: {
		phrases: []string{
			"medical services", "patient care", "health information",
			"medical practice", "healthcare provider", "patient portal",
			"appointment scheduling", "health records", "medical specialties",
			"treatment options", "health insurance", "wellness programs",
			"medical equipment", "clinical services", "health screening",
			"patient resources",
		},
		keywords: []string{
			"health", "medical", "doctor", "clinic", "hospital", "dentist",
			"pharmacy", "patient", "treatment", "care", "wellness", "medicine",
			"healthcare",
		},
	},
	model.SiteEducational: {
		phrases: []string{
			"course catalog", "academic programs", "student services",
			"faculty profiles", "admission requirements", "online learning",
			"educational resources", "degree programs", "class schedule",
			"student portal", "academic calendar", "learning management",
			"continuing education", "professional development",
			"certification programs", "campus life",
		},
		keywords: []string{
			"school", "university", "course", "learning", "education", "training",
			"student", "academic", "program", "degree", "certification", "campus",
		},
	},
	model.SiteGovernment: {
		phrases: []string{
			"government services", "public records", "citizen services",
			"government programs", "elected officials", "public information",
			"government forms", "tax information", "public safety",
			"community services", "government meetings", "policy information",
			"public resources", "government contact", "municipal services",
			"federal agency",
		},
		keywords: []string{
			"government", "gov", "federal", "state", "municipal", "council",
			"public", "citizen", "official", "agency", "department", "policy",
			"service",
		},
	},
	model.SiteLegal: {
		phrases: []string{
			"legal services", "law firm", "attorney profiles", "practice areas",
			"legal consultation", "case results", "legal resources",
			"legal expertise", "court representation", "legal advice",
			"law practice", "legal specialization", "client testimonials",
			"legal experience", "attorney credentials", "legal process",
		},
		keywords: []string{
			"law", "legal", "attorney", "lawyer", "court", "justice", "litigation",
			"counsel", "practice", "firm", "case", "representation", "advice",
		},
	},
	model.SiteRealEstate: {
		phrases: []string{
			"property listings", "real estate agent", "home search",
			"property management", "market analysis", "real estate services",
			"home valuation", "property details", "neighborhood information",
			"buying process", "selling process", "real estate expertise",
			"property investment", "home inspection", "mortgage assistance",
			"property photos",
		},
		keywords: []string{
			"property", "realestate", "homes", "rent", "housing", "agent",
			"listings", "market", "buy", "sell", "investment", "residential",
		},
	},
	model.SiteRestaurant: {
		phrases: []string{
			"restaurant menu", "dining experience", "food service",
			"chef specialties", "restaurant location", "table reservation",
			"catering services", "special events", "restaurant hours",
			"food ordering", "restaurant atmosphere", "culinary team",
			"private dining", "takeout menu", "restaurant reviews",
			"wine selection",
		},
		keywords: []string{
			"restaurant", "food", "dining", "menu", "cafe", "bar", "catering",
			"chef", "cuisine", "meal", "reservation", "takeout", "delivery",
		},
	},
	model.SiteTechnology: {
		phrases: []string{
			"software solutions", "technology platform", "cloud services",
			"api documentation", "technical support", "software development",
			"system integration", "enterprise software", "data analytics",
			"artificial intelligence", "machine learning",
			"cybersecurity solutions", "scientific instruments", "life sciences",
			"biotechnology solutions", "engineering services",
			"research development", "innovation center", "technology consulting",
			"digital transformation",
		},
		keywords: []string{
			"tech", "software", "saas", "api", "cloud", "app", "platform",
			"digital", "system", "solution", "data", "analytics", "ai", "ml",
			"cyber", "security", "scientific", "instruments", "diagnostics",
			"biotechnology", "engineering", "innovation",
		},
	},
	model.SiteNonProfit: {
		phrases: []string{
			"nonprofit organization", "charitable foundation",
			"volunteer opportunities", "donation process", "community programs",
			"social impact", "fundraising events", "nonprofit mission",
			"charitable giving", "volunteer services", "community outreach",
			"social cause", "nonprofit board", "impact stories",
			"charitable programs", "community support",
		},
		keywords: []string{
			"nonprofit", "charity", "foundation", "donate", "volunteer", "cause",
			"community", "impact", "mission", "giving", "support", "social",
		},
	},
	model.SiteEntertainment: {
		phrases: []string{
			"entertainment content", "streaming service", "movie catalog",
			"music platform", "gaming platform", "entertainment news",
			"artist profiles", "content library", "subscription service",
			"entertainment events", "live streaming", "digital content",
			"media platform", "entertainment industry", "content creation",
			"user experience",
		},
		keywords: []string{
			"entertainment", "movie", "music", "game", "streaming", "content",
			"artist", "show", "video", "audio", "platform", "digital", "media",
		},
	},
	model.SiteCorporate: {
		phrases: []string{
			"corporate services", "business solutions", "company overview",
			"corporate team", "business consulting", "enterprise solutions",
			"corporate clients", "professional services", "company leadership",
			"business strategy", "corporate culture", "industry expertise",
			"client success", "business process", "corporate responsibility",
			"company values",
		},
		keywords: []string{
			"corporate", "business", "company", "enterprise", "professional",
			"services", "solutions", "consulting", "strategy", "leadership",
			"team", "clients",
		},
	},
}

// orderedTypes fixes iteration order so tie resolution ("take the first
// winner") is deterministic across runs.
var orderedTypes = []model.SiteType{
	model.SiteBanking, model.SiteEcommerce, model.SiteNews, model.SiteCorporate,
	model.SiteEducational, model.SiteHealthcare, model.SiteGovernment,
	model.SiteNonProfit, model.SiteEntertainment, model.SiteRealEstate,
	model.SiteLegal, model.SiteRestaurant, model.SiteTechnology,
}

// Detection is the outcome of scoring one page against the lexicon.
type Detection struct {
	SiteType     model.SiteType
	Confidence   model.ConfidenceLabel
	Score        int
	PhraseMatches int
}

// DetectSiteType returns only the winning site type, per the same scoring
// rules as DetectSiteTypeWithConfidence.
func DetectSiteType(url, title, content string) model.SiteType {
	return DetectSiteTypeWithConfidence(url, title, content).SiteType
}

// DetectSiteTypeWithConfidence scores url/title/content against every
// lexicon entry. A phrase match scores 5 points (URL x3, title x2, content
// x1); a keyword match scores 1 point under the same multipliers. The
// highest-scoring type wins outright if score >= 3; ties are broken by
// phrase-match count, then by position in orderedTypes. Below that
// threshold a domain-extension and generic-business-term fallback applies.
func DetectSiteTypeWithConfidence(url, title, content string) Detection {
	urlLower := strings.ToLower(url)
	titleLower := strings.ToLower(title)
	contentLower := strings.ToLower(content)

	scores := make(map[model.SiteType]int, len(orderedTypes))
	phraseCounts := make(map[model.SiteType]int, len(orderedTypes))

	for _, st := range orderedTypes {
		p := patterns[st]
		for _, phrase := range p.phrases {
			switch {
			case strings.Contains(urlLower, phrase):
				scores[st] += 15
				phraseCounts[st]++
			case strings.Contains(titleLower, phrase):
				scores[st] += 10
				phraseCounts[st]++
			case strings.Contains(contentLower, phrase):
				scores[st] += 5
				phraseCounts[st]++
			}
		}
		for _, kw := range p.keywords {
			switch {
			case strings.Contains(urlLower, kw):
				scores[st] += 3
			case strings.Contains(titleLower, kw):
				scores[st] += 2
			case strings.Contains(contentLower, kw):
				scores[st] += 1
			}
		}
	}

	maxScore := 0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}

	var finalType model.SiteType
	if maxScore >= 3 {
		var winners []model.SiteType
		for _, st := range orderedTypes {
			if scores[st] == maxScore {
				winners = append(winners, st)
			}
		}
		if len(winners) == 1 {
			finalType = winners[0]
		} else {
			maxPhrases := 0
			for _, st := range winners {
				if phraseCounts[st] > maxPhrases {
					maxPhrases = phraseCounts[st]
				}
			}
			if maxPhrases > 0 {
				finalType = winners[0]
				for _, st := range winners {
					if phraseCounts[st] == maxPhrases {
						finalType = st
						break
					}
				}
			} else {
				finalType = winners[0]
			}
		}
	} else {
		finalType = fallback(url, title, content)
		if finalType != model.SiteUnknown {
			maxScore = max(1, maxScore)
		}
	}

	phraseMatchCount := phraseCounts[finalType]

	var confidence model.ConfidenceLabel
	switch {
	case maxScore >= 10 || phraseMatchCount >= 2:
		confidence = model.ConfidenceHigh
	case maxScore >= 5 || phraseMatchCount >= 1:
		confidence = model.ConfidenceMedium
	case maxScore >= 3:
		confidence = model.ConfidenceLow
	default:
		confidence = model.ConfidenceFallback
	}

	return Detection{
		SiteType:      finalType,
		Confidence:    confidence,
		Score:         maxScore,
		PhraseMatches: phraseMatchCount,
	}
}

// fallback applies the domain-extension and generic-business-term cascade
// used when the lexicon score is too weak (< 3) to trust.
func fallback(url, title, content string) model.SiteType {
	urlLower := strings.ToLower(url)
	titleLower := strings.ToLower(title)

	switch {
	case strings.HasSuffix(urlLower, ".edu") || strings.Contains(urlLower, ".edu/") || strings.Contains(titleLower, "university") || strings.Contains(titleLower, "college"):
		return model.SiteEducational
	case strings.HasSuffix(urlLower, ".gov") || strings.Contains(urlLower, ".gov/"):
		return model.SiteGovernment
	case strings.HasSuffix(urlLower, ".org") || strings.Contains(urlLower, ".org/") || strings.Contains(strings.ToLower(content), "nonprofit"):
		return model.SiteNonProfit
	}

	combined := urlLower + " " + titleLower + " " + strings.ToLower(content)
	for _, term := range []string{"company", "business", "services", "solutions", "corporate"} {
		if strings.Contains(combined, term) {
			return model.SiteCorporate
		}
	}
	return model.SiteUnknown
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
