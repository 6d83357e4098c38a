package entities

type WeightUnit string

const (
	Kilograms WeightUnit = "kg"
	Pounds    WeightUnit = "lb"
)

// DosageRequest carries the inputs of a dosage calculation. Weight must
// already be validated by the caller.
type DosageRequest struct {
	MedicationName   string     `json:"medicationName"`
	ActiveIngredient string     `json:"activeIngredient,omitempty"`
	Weight           float64    `json:"weight"`
	Unit             WeightUnit `json:"unit"`
}

type DosageResult struct {
	DosageAmount int    `json:"dosage"`
	Unit         string `json:"unit"`
	Frequency    string `json:"frequency"`
	IsSafe       bool   `json:"isSafe"`
	Warning      string `json:"warningMessage,omitempty"`
	Rule         string `json:"rule"`
}
