package core

import "strings"

// BucketType is the top level of the budget taxonomy.
type BucketType string

const (
	BucketIncome BucketType = "income"
	BucketNeeds  BucketType = "needs"
	BucketWants  BucketType = "wants"

	// BucketSavings names the derived savings section. The classifier never
	// produces it; it exists so config and status code can address savings
	// alongside the spending buckets.
	BucketSavings BucketType = "savings"
)

// Classification is the result of classifying one transaction.
type Classification struct {
	Type        BucketType
	Subcategory string
}

// Needs and wants subcategory names. These are stable identifiers used in
// persisted reports, not display strings.
const (
	SubIncome         = "income"
	SubFoodDrink      = "food_drink"
	SubHealthcare     = "healthcare"
	SubTransportation = "transportation"
	SubHousing        = "housing"
	SubTaxes          = "taxes"
	SubInsurance      = "insurance"
	SubDining         = "dining"
	SubEntertainment  = "entertainment"
	SubTravel         = "travel"
	SubShopping       = "shopping"
	SubMiscellaneous  = "miscellaneous"
)

// Keyword sets used by the rule table. Matching is case-insensitive
// substring containment; the normalized name is already lowercased.
var (
	incomeKeywords        = []string{"direct deposit", "paycheck", "salary", "wage", "refund"}
	groceryKeywords       = []string{"grocery", "groceries", "supermarket", "trader joe", "whole foods", "kroger", "safeway", "aldi", "heb"}
	medicalKeywords       = []string{"pharmacy", "hospital", "clinic", "doctor", "dental", "cvs", "walgreens"}
	gasAutoKeywords       = []string{"gas station", "shell", "exxon", "chevron", "fuel", "auto loan", "car payment"}
	housingKeywords       = []string{"rent", "landlord", "mortgage", "utility", "utilities", "electric bill", "water bill", "internet bill", "university housing"}
	insuranceKeywords     = []string{"insurance"}
	diningKeywords        = []string{"restaurant", "cafe", "coffee", "pizza", "doordash", "uber eats", "grubhub", "mcdonald"}
	entertainmentKeywords = []string{"netflix", "spotify", "hulu", "steam", "cinema", "movie", "game", "concert"}
	travelKeywords        = []string{"hotel", "airline", "flight", "airbnb", "uber", "lyft"}
	shoppingKeywords      = []string{"amazon", "target", "walmart", "mall", "clothing", "shoes"}
)

// Detailed-category codes for essential transportation.
var essentialTransportDetails = map[string]bool{
	"transportation_gas":                  true,
	"transportation_public_transit":       true,
	"transportation_other_transportation": true,
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// rule is one entry of the ordered decision table. The table is evaluated
// top to bottom and the first match wins; ordering is the tie-break policy,
// reflecting decreasing specificity of evidence (explicit category codes
// are trusted over keyword heuristics).
type rule struct {
	name   string
	match  func(n NormalizedTransaction) bool
	result Classification
}

var classificationRules = []rule{
	{
		name: "income",
		match: func(n NormalizedTransaction) bool {
			switch n.category {
			case "income", "transfer_in":
				return true
			}
			switch n.detailed {
			case "income_wages", "income_salary", "transfer_in_savings":
				return true
			}
			return containsAny(n.name, incomeKeywords)
		},
		result: Classification{Type: BucketIncome, Subcategory: SubIncome},
	},
	{
		name: "needs/groceries",
		match: func(n NormalizedTransaction) bool {
			return n.category == "food_and_drink" &&
				(n.detailed == "food_and_drink_groceries" || containsAny(n.name, groceryKeywords))
		},
		result: Classification{Type: BucketNeeds, Subcategory: SubFoodDrink},
	},
	{
		name: "needs/medical",
		match: func(n NormalizedTransaction) bool {
			return n.category == "medical" || containsAny(n.name, medicalKeywords)
		},
		result: Classification{Type: BucketNeeds, Subcategory: SubHealthcare},
	},
	{
		name: "needs/transportation",
		match: func(n NormalizedTransaction) bool {
			return n.category == "transportation" &&
				(essentialTransportDetails[n.detailed] || containsAny(n.name, gasAutoKeywords))
		},
		result: Classification{Type: BucketNeeds, Subcategory: SubTransportation},
	},
	{
		name: "needs/housing",
		match: func(n NormalizedTransaction) bool {
			return n.category == "rent_and_utilities" || containsAny(n.name, housingKeywords)
		},
		result: Classification{Type: BucketNeeds, Subcategory: SubHousing},
	},
	{
		name: "needs/taxes",
		match: func(n NormalizedTransaction) bool {
			return n.category == "government_and_non_profit"
		},
		result: Classification{Type: BucketNeeds, Subcategory: SubTaxes},
	},
	{
		name: "needs/insurance",
		match: func(n NormalizedTransaction) bool {
			return containsAny(n.name, insuranceKeywords)
		},
		result: Classification{Type: BucketNeeds, Subcategory: SubInsurance},
	},
	{
		name: "wants/dining",
		match: func(n NormalizedTransaction) bool {
			return n.category == "food_and_drink" || containsAny(n.name, diningKeywords)
		},
		result: Classification{Type: BucketWants, Subcategory: SubDining},
	},
	{
		name: "wants/entertainment",
		match: func(n NormalizedTransaction) bool {
			return n.category == "entertainment" || containsAny(n.name, entertainmentKeywords)
		},
		result: Classification{Type: BucketWants, Subcategory: SubEntertainment},
	},
	{
		name: "wants/travel",
		match: func(n NormalizedTransaction) bool {
			return n.category == "travel" || containsAny(n.name, travelKeywords)
		},
		result: Classification{Type: BucketWants, Subcategory: SubTravel},
	},
	{
		name: "wants/shopping",
		match: func(n NormalizedTransaction) bool {
			return n.category == "general_merchandise" || containsAny(n.name, shoppingKeywords)
		},
		result: Classification{Type: BucketWants, Subcategory: SubShopping},
	},
}

// Classify assigns a transaction to a bucket and subcategory. It is total:
// every transaction, including an empty one, gets a classification. The
// fallback is wants/miscellaneous.
func Classify(n NormalizedTransaction) Classification {
	for _, r := range classificationRules {
		if r.match(n) {
			return r.result
		}
	}
	return Classification{Type: BucketWants, Subcategory: SubMiscellaneous}
}
