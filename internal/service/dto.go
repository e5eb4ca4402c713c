package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

// Date is a calendar date exchanged as "2006-01-02". Full RFC 3339
// timestamps are accepted and truncated to their date.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected %s", s, DateLayout)
	}
	return NewDate(t), nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type TaskRequest struct {
	Title     string `json:"title"`
	StartDate *Date  `json:"startDate,omitempty"`
	EndDate   *Date  `json:"endDate,omitempty"`
}

type MemberRequest struct {
	UserID     uuid.UUID `json:"userId"`
	IsBillable bool      `json:"isBillable"`
}

type ProjectRequest struct {
	Title            string          `json:"title"`
	ClientName       string          `json:"clientName"`
	BillableHours    float64         `json:"billableHours"`
	NonBillableHours float64         `json:"nonBillableHours"`
	StartDate        Date            `json:"startDate"`
	EndDate          Date            `json:"endDate"`
	Tasks            []TaskRequest   `json:"tasks,omitempty"`
	Members          []MemberRequest `json:"members,omitempty"`
}

type TimesheetRequest struct {
	TaskID        uuid.UUID `json:"taskId"`
	TimesheetDate Date      `json:"timesheetDate"`
	Hours         float64   `json:"hours"`
}

type ReviewRequest struct {
	TimesheetIDs    []uuid.UUID `json:"timesheetIds"`
	ManagerComments string      `json:"managerComments"`
}

type MemberOverview struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"userId"`
	DisplayName       string    `json:"displayName"`
	UserPrincipalName string    `json:"userPrincipalName"`
	IsBillable        bool      `json:"isBillable"`
	TotalHours        float64   `json:"totalHours"`
}

type TaskOverview struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	IsAddedByMember bool      `json:"isAddedByMember"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	TotalHours      float64   `json:"totalHours"`
}

// SubmittedRequest is one contiguous run of submitted days.
type SubmittedRequest struct {
	Dates        []time.Time `json:"dates"`
	StartDate    time.Time   `json:"startDate"`
	EndDate      time.Time   `json:"endDate"`
	TotalHours   float64     `json:"totalHours"`
	TimesheetIDs []uuid.UUID `json:"timesheetIds"`
}

// PendingRequest summarises what one reportee is waiting on.
type PendingRequest struct {
	UserID            uuid.UUID     `json:"userId"`
	DisplayName       string        `json:"displayName"`
	UserPrincipalName string        `json:"userPrincipalName"`
	TotalHours        float64       `json:"totalHours"`
	RequestedDays     [][]time.Time `json:"requestedDays"`
}

type Profile struct {
	ID                uuid.UUID `json:"id"`
	DisplayName       string    `json:"displayName"`
	UserPrincipalName string    `json:"userPrincipalName"`
	IsManager         bool      `json:"isManager"`
	HasConversation   bool      `json:"hasConversation"`
}
