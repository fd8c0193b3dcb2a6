package domain

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// RecordStatusAvailable is the only status the pipeline processes.
const RecordStatusAvailable = "available"

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Record is a single catalog entry read from the warehouse. It is the work
// item every stage operates on and is never mutated once the source has
// returned it.
type Record struct {
	ID        string         `json:"id"                   validate:"required"`
	Name      string         `json:"name"                 validate:"required"`
	Category  string         `json:"category"             validate:"required"`
	Brand     string         `json:"brand"`
	ImageURL  string         `json:"image_url"            validate:"omitempty,url"`
	Status    string         `json:"status,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// Validate checks the structural fields of the record.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyRecordID
	}
	if err := recordValidator().Struct(r); err != nil {
		return fmt.Errorf("%w: record %s: %v", ErrValidation, r.ID, err)
	}
	return nil
}

// Eligible reports whether the record can enter the download stage. Records
// without a primary image URL, or with a status other than "available", are
// excluded before any work is scheduled. An empty status is treated as
// available since not every source carries one.
func (r *Record) Eligible() error {
	if strings.TrimSpace(r.ImageURL) == "" {
		return ErrMissingImageURL
	}
	if r.Status != "" && !strings.EqualFold(r.Status, RecordStatusAvailable) {
		return fmt.Errorf("%w: status %q", ErrRecordUnavailable, r.Status)
	}
	return nil
}

// MetadataString returns a metadata value rendered as a string, or fallback
// when the key is missing or empty.
func (r *Record) MetadataString(key, fallback string) string {
	v, ok := r.Metadata[key]
	if !ok || v == nil {
		return fallback
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return fallback
	}
	return s
}
