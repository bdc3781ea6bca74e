package models

// Circular is a department notice.
type Circular struct {
	Base
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content" validate:"required"`
	Audience string `json:"audience,omitempty" validate:"omitempty,oneof=all faculty students"`
	Priority string `json:"priority,omitempty" validate:"omitempty,oneof=low normal high"`
	PostedBy string `json:"postedBy,omitempty"`
}
