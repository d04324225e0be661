// Package model defines the core domain types for mentorship events.
package model

import (
	"fmt"
	"time"
)

// EventStatus is the publication state of an event.
type EventStatus string

const (
	StatusPublished EventStatus = "published"
	StatusCancelled EventStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	return s == StatusPublished || s == StatusCancelled
}

// Role is the caller role supplied by the identity layer.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMentor Role = "mentor"
)

// Event is a scheduled mentorship event with a fixed number of slots.
//
// AttendeesCount always equals the number of live registrations for the
// event and stays within [0, Capacity]. Only the capacity coordinator
// changes it.
type Event struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Location       string      `json:"location"`
	Campus         string      `json:"campus"`
	Date           string      `json:"date"`
	StartTime      string      `json:"startTime"`
	EndTime        string      `json:"endTime"`
	StartsAt       time.Time   `json:"startsAt"`
	EndsAt         time.Time   `json:"endsAt"`
	Capacity       int         `json:"capacity"`
	AttendeesCount int         `json:"attendeesCount"`
	Status         EventStatus `json:"status"`
	CreatedBy      string      `json:"createdBy,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Remaining returns the number of free slots.
func (e *Event) Remaining() int {
	return e.Capacity - e.AttendeesCount
}

// IsFull returns true when no slots remain.
func (e *Event) IsFull() bool {
	return e.AttendeesCount >= e.Capacity
}

// HasStarted reports whether now is at or past the start instant.
func (e *Event) HasStarted(now time.Time) bool {
	return !now.Before(e.StartsAt)
}

// Registration records that a registrant holds a slot in an event.
type Registration struct {
	EventID      string    `json:"eventId"`
	RegistrantID string    `json:"registrantId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Notification is a best-effort message to a set of registrants. It is
// written to the outbox inside the transaction that produced it and
// dispatched after commit.
type Notification struct {
	ID         string    `json:"id"`
	EventID    string    `json:"eventId"`
	Recipients []string  `json:"recipients"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ─── Requests and results ────────────────────────────────────────────────────

// CreateEventRequest is the payload for creating an event.
type CreateEventRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	Campus      string      `json:"campus"`
	Date        string      `json:"date"`
	StartTime   string      `json:"startTime"`
	EndTime     string      `json:"endTime"`
	Capacity    int         `json:"capacity"`
	Status      EventStatus `json:"status,omitempty"`
}

// UpdateEventRequest carries a partial update; nil fields are left as is.
type UpdateEventRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	Campus      *string `json:"campus,omitempty"`
	Date        *string `json:"date,omitempty"`
	StartTime   *string `json:"startTime,omitempty"`
	EndTime     *string `json:"endTime,omitempty"`
	Capacity    *int    `json:"capacity,omitempty"`
}

// TouchesSchedule reports whether the update changes date or times.
func (r UpdateEventRequest) TouchesSchedule() bool {
	return r.Date != nil || r.StartTime != nil || r.EndTime != nil
}

// ListEventsQuery selects a page of events ordered by start time.
type ListEventsQuery struct {
	Status       EventStatus
	UpcomingOnly bool
	Page         int
}

// ReminderRequest optionally overrides the reminder text.
type ReminderRequest struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// JoinResult is the outcome of a successful join.
type JoinResult struct {
	Joined  bool `json:"joined"`
	Already bool `json:"already"`
}

// LeaveResult is the outcome of a leave call.
type LeaveResult struct {
	Left bool `json:"left"`
}

// ReminderResult reports how many registrants a reminder was queued for.
type ReminderResult struct {
	Recipients int `json:"recipients"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ─── Schedule ────────────────────────────────────────────────────────────────

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ParseSchedule combines a calendar date with start and end clock times in
// loc and returns the absolute start and end instants.
func ParseSchedule(date, startTime, endTime string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := time.ParseInLocation(DateLayout, date, loc); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
	}
	startsAt, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+startTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("startTime must be HH:mm")
	}
	endsAt, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+endTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("endTime must be HH:mm")
	}
	return startsAt, endsAt, nil
}
