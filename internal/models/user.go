package models

// User is a raw user record. The same person may appear several times with
// differently cased or padded names (one record per sign-in session).
type User struct {
	ID   string `json:"_id" bson:"_id"`
	Name string `json:"name" bson:"name"`
	Type string `json:"type" bson:"type"`
}

// ConsolidatedUser merges every raw user sharing a normalized name.
// Value is the canonical key selectors address the identity by.
type ConsolidatedUser struct {
	IDs   []string `json:"ids"`
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Value string   `json:"value,omitempty"`
}

// HasID reports whether id belongs to the identity.
func (u *ConsolidatedUser) HasID(id string) bool {
	for _, v := range u.IDs {
		if v == id {
			return true
		}
	}
	return false
}
