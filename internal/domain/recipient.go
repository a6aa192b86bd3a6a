package domain

// Recipient is a lead chosen for a dispatch. ID is unique within a selection.
type Recipient struct {
	ID         string `json:"id"`
	Phone      string `json:"phone"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status,omitempty"`
	Source     string `json:"source,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
}
