package entity

// Company holds the company-wide reporting settings
type Company struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BaseCurrency string `json:"base_currency"`
}
