package models

// Batch is an intake cohort, e.g. "2021-2025", holding its classes.
type Batch struct {
	Base
	Label      string `json:"label" validate:"required"`
	LegacyName string `json:"name,omitempty"`
	Department string `json:"department,omitempty"`
	StartYear  int    `json:"startYear,omitempty"`
	EndYear    int    `json:"endYear,omitempty"`
	// Sem8EndDate is the last day of the terminal semester (YYYY-MM-DD).
	Sem8EndDate string      `json:"sem8EndDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Classes     []ClassData `json:"classes,omitempty" validate:"dive"`
}

// ClassData is one academic year of a batch.
type ClassData struct {
	ID       string        `json:"id"`
	Year     int           `json:"year"`
	Name     string        `json:"name"`
	Sections []SectionData `json:"sections,omitempty"`
}

// SectionData is a division of a class.
type SectionData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
