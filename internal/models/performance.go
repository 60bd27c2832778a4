package models

import (
	"encoding/json"
	"time"
)

// Performance is a single performance record, optionally linked to a remote folder holding its material
type Performance struct {
	// Unique ID assigned by the record store
	ID string `json:"id"`
	// Title of the performance - never empty
	Title string `json:"title"`
	// Free-text description
	Description *string `json:"description,omitempty"`
	// Location of the cover image
	CoverImage *string `json:"coverImage,omitempty"`
	// Start and end dates as provided by the client
	StartDate *string `json:"startDate,omitempty"`
	EndDate   *string `json:"endDate,omitempty"`
	// IDs of the users tagged as collaborators, in the order they were given
	TaggedUsers []string `json:"taggedUsers"`
	// ID of the user that created the record
	CreatedBy string `json:"createdBy"`
	// ID of the remote folder created together with this record, if any
	DriveFolderID *string `json:"driveFolderId,omitempty"`
	// Creation date of this entry
	CreatedAt time.Time `json:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `json:"updatedAt"`
}

// Column widths of the record store. Longer values are rejected before anything is written.
const (
	MaxTitleLength  = 255
	MaxDateLength   = 64
	MaxUserIDLength = 64
)

// PerformanceInput holds the data needed for creating a new performance
type PerformanceInput struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description *string  `json:"description,omitempty"`
	CoverImage  *string  `json:"coverImage,omitempty"`
	StartDate   *string  `json:"startDate,omitempty" validate:"omitempty,max=64"`
	EndDate     *string  `json:"endDate,omitempty" validate:"omitempty,max=64"`
	TaggedUsers []string `json:"taggedUsers,omitempty"`
	CreatedBy   string   `json:"createdBy" validate:"required,max=64"`
}

// PerformancePatch describes a partial update of a performance. Only the fields marked as set are written.
type PerformancePatch struct {
	ID          string         `json:"-"`
	Title       OptionalString `json:"title"`
	Description OptionalString `json:"description"`
	CoverImage  OptionalString `json:"coverImage"`
	StartDate   OptionalString `json:"startDate"`
	EndDate     OptionalString `json:"endDate"`
	TaggedUsers *[]string      `json:"taggedUsers"`
}

// Empty checks if the patch would not change anything
func (p *PerformancePatch) Empty() bool {
	return !p.Title.Set && !p.Description.Set && !p.CoverImage.Set && !p.StartDate.Set && !p.EndDate.Set &&
		p.TaggedUsers == nil
}

// OptionalString is a string field of an update request that can be missing, set to a value or set to null
type OptionalString struct {
	Set   bool
	Value *string
}

// Some creates an OptionalString that is set to the given value
func Some(s string) OptionalString {
	return OptionalString{Set: true, Value: &s}
}

// Null creates an OptionalString that is explicitly set to null
func Null() OptionalString {
	return OptionalString{Set: true}
}

// UnmarshalJSON marks the field as set - also for an explicit null
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// UserIDs returns a copy of the given IDs that is never nil
func UserIDs(ids []string) []string {
	ret := make([]string, len(ids))
	copy(ret, ids)
	return ret
}
