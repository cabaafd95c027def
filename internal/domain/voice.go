package domain

// Voice is one installed synthesis voice reported by the platform engine.
type Voice struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Gender    string `json:"gender"`
	Language  string `json:"language"`
	IsDefault bool   `json:"isDefault"`
}
