package models

// Space is a node of a space tree. The root has a nil ParentID.
type Space struct {
	ID       string  `json:"id" bson:"_id"`
	Name     string  `json:"name,omitempty" bson:"name,omitempty"`
	ParentID *string `json:"parentId" bson:"parentId"`
}

// IsRoot reports whether the space has no parent.
func (s *Space) IsRoot() bool {
	return s.ParentID == nil
}
