package models

import "fmt"

type Category string

const (
	CategoryGrocery     Category = "grocery"
	CategoryAuto        Category = "auto"
	CategoryRent        Category = "rent"
	CategoryBills       Category = "bills"
	CategoryInvestment  Category = "investment"
	CategorySupplements Category = "supplements"
	CategoryMiscShop    Category = "misc-shop"
	CategoryMiscHealth  Category = "misc-health"
	CategoryHomeGarden  Category = "home-garden"
)

// Template decides how downstream views track a category's items.
type Template string

const (
	TemplateMarket    Template = "market"
	TemplateCovenant  Template = "covenant"
	TemplateTreasury  Template = "treasury"
	TemplateChronicle Template = "chronicle"
)

// DefaultCategory is assigned when neither a rule nor the bank category matches.
const DefaultCategory = CategoryMiscShop

var AllCategories = []Category{
	CategoryGrocery,
	CategoryAuto,
	CategoryRent,
	CategoryBills,
	CategoryInvestment,
	CategorySupplements,
	CategoryMiscShop,
	CategoryMiscHealth,
	CategoryHomeGarden,
}

// TemplateFor returns the fixed template of a category. An empty Template means the
// category is not part of the taxonomy.
func TemplateFor(c Category) Template {
	switch c {
	case CategoryGrocery, CategoryAuto, CategorySupplements:
		return TemplateMarket
	case CategoryRent, CategoryBills:
		return TemplateCovenant
	case CategoryInvestment:
		return TemplateTreasury
	case CategoryMiscShop, CategoryMiscHealth, CategoryHomeGarden:
		return TemplateChronicle
	}
	return ""
}

func (c Category) Valid() bool {
	return TemplateFor(c) != ""
}

func (c Category) Template() Template {
	return TemplateFor(c)
}

func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}
