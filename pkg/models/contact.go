package models

import (
	"time"
)

// LinkPrecedence marks a contact as the canonical record of its cluster or as a member linked to it
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

// Contact is a single observed email/phone record.
// Secondary contacts always link directly to a primary contact.
type Contact struct {
	ID             int64          `json:"id" db:"id"`
	PhoneNumber    *string        `json:"phoneNumber" db:"phone_number"`
	Email          *string        `json:"email" db:"email"`
	LinkedID       *int64         `json:"linkedId" db:"linked_id"`
	LinkPrecedence LinkPrecedence `json:"linkPrecedence" db:"link_precedence"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
	DeletedAt      *time.Time     `json:"deletedAt" db:"deleted_at"`
}

// IsPrimary reports whether the contact is the canonical record of its cluster
func (c Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// IsDeleted reports whether the contact carries a tombstone
func (c Contact) IsDeleted() bool {
	return c.DeletedAt != nil
}

// HasEmail reports whether the contact's email equals the given value. Nil only matches nil.
func (c Contact) HasEmail(email *string) bool {
	return equalOptional(c.Email, email)
}

// HasPhoneNumber reports whether the contact's phone number equals the given value. Nil only matches nil.
func (c Contact) HasPhoneNumber(phone *string) bool {
	return equalOptional(c.PhoneNumber, phone)
}

// ContactDraft holds the caller-controlled fields of a contact about to be inserted.
// The store assigns the id and timestamps.
type ContactDraft struct {
	Email          *string
	PhoneNumber    *string
	LinkedID       *int64
	LinkPrecedence LinkPrecedence
}

// NewPrimaryDraft returns a draft for a brand-new canonical contact
func NewPrimaryDraft(email, phone *string) ContactDraft {
	return ContactDraft{
		Email:          email,
		PhoneNumber:    phone,
		LinkPrecedence: LinkPrecedencePrimary,
	}
}

// NewSecondaryDraft returns a draft for a contact linked to the given primary
func NewSecondaryDraft(email, phone *string, primaryID int64) ContactDraft {
	return ContactDraft{
		Email:          email,
		PhoneNumber:    phone,
		LinkedID:       &primaryID,
		LinkPrecedence: LinkPrecedenceSecondary,
	}
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// Int64Ptr returns a pointer to i
func Int64Ptr(i int64) *int64 {
	return &i
}
