package models

// LeaveStatus is the resolution state of a leave request.
type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

// LeaveRequest is a student's application for absence.
type LeaveRequest struct {
	Base
	StudentID     string      `json:"studentId" validate:"required"`
	StudentName   string      `json:"studentName,omitempty"`
	RollNumber    string      `json:"rollNumber,omitempty"`
	FromDate      string      `json:"fromDate" validate:"required,datetime=2006-01-02"`
	ToDate        string      `json:"toDate" validate:"required,datetime=2006-01-02"`
	Reason        string      `json:"reason" validate:"required"`
	Kind          string      `json:"kind,omitempty"`
	Status        LeaveStatus `json:"status"`
	ProcessedBy   string      `json:"processedBy,omitempty"`
	ProcessedDate string      `json:"processedDate,omitempty"`
}

// Resolution reports whether s is a terminal leave decision.
func (s LeaveStatus) Resolution() bool {
	return s == LeaveApproved || s == LeaveRejected
}
