package model

// DefaultCategoryID is used when a user has no categories at all.
const DefaultCategoryID = "otros"

// Category is a top-level bucket in a user's taxonomy.
type Category struct {
	ID            string
	Name          string
	Subcategories []Subcategory
}

// Subcategory refines a category. Keywords are matched against expense
// descriptions during inference.
type Subcategory struct {
	ID       string
	Name     string
	Keywords []string
}

// PaymentMethod is a user-defined way of paying.
type PaymentMethod struct {
	ID   string
	Name string
}

// Taxonomy is everything inference needs to know about one user.
// Category and subcategory order is significant: the first match wins and
// the first entry is the fallback.
type Taxonomy struct {
	Categories     []Category
	PaymentMethods []PaymentMethod
}

// IsEmpty reports whether the user has no categories.
func (t Taxonomy) IsEmpty() bool {
	return len(t.Categories) == 0
}

// Category returns the category with the given ID.
func (t Taxonomy) Category(id string) (Category, bool) {
	for _, c := range t.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryName returns a display name for id, falling back to the ID itself.
func (t Taxonomy) CategoryName(id string) string {
	if c, ok := t.Category(id); ok && c.Name != "" {
		return c.Name
	}
	return id
}

// SubcategoryName returns a display name for a subcategory of categoryID.
func (t Taxonomy) SubcategoryName(categoryID, id string) string {
	if c, ok := t.Category(categoryID); ok {
		for _, s := range c.Subcategories {
			if s.ID == id && s.Name != "" {
				return s.Name
			}
		}
	}
	return id
}

// PaymentMethodName returns a display name for a payment method ID.
func (t Taxonomy) PaymentMethodName(id string) string {
	for _, pm := range t.PaymentMethods {
		if pm.ID == id && pm.Name != "" {
			return pm.Name
		}
	}
	return id
}
