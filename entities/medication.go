package entities

// Medication is one entry of the catalog. The JSON layout is also the
// persisted snapshot layout, so field names must stay stable.
type Medication struct {
	ID               string        `json:"id" validate:"required,max=64,catalogid"`
	Name             string        `json:"name" validate:"required,max=200"`
	ActiveIngredient string        `json:"activeIngredient" validate:"required,max=200"`
	Price            float64       `json:"price" validate:"gte=0,lte=100000"`
	Category         string        `json:"category" validate:"required,max=100"`
	IsAvailable      bool          `json:"isAvailable"`
	Description      string        `json:"description,omitempty" validate:"max=2000"`
	DosageInfo       string        `json:"dosageInfo,omitempty" validate:"max=2000"`
	SideEffects      []string      `json:"sideEffects,omitempty" validate:"max=50,dive,max=200"`
	Storage          string        `json:"storage,omitempty" validate:"max=500"`
	Warnings         []string      `json:"warnings,omitempty" validate:"max=50,dive,max=500"`
	Alternatives     []Alternative `json:"alternatives,omitempty" validate:"max=50,dive"`
}

type Alternative struct {
	ID    string  `json:"id" validate:"required,max=64,catalogid"`
	Name  string  `json:"name" validate:"required,max=200"`
	Price float64 `json:"price" validate:"gte=0"`
}

// FilterCriteria holds the token sets of each filter dimension.
// An empty set leaves that dimension unconstrained.
type FilterCriteria struct {
	Price        []string `json:"price"`
	Category     []string `json:"category"`
	Availability []string `json:"availability"`
}

// IsEmpty reports whether no dimension carries a constraint
func (c FilterCriteria) IsEmpty() bool {
	return len(c.Price) == 0 && len(c.Category) == 0 && len(c.Availability) == 0
}

// AddResult summarizes one append to the catalog
type AddResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}
