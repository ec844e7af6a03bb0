package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// OptionalString is a JSON value that may be absent, null, a string or a number.
// Numbers are kept in their literal form, so a phone number sent as 123456 reads as "123456".
type OptionalString struct {
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		o.Value = &s
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string, number or null, got %s", string(data))
	}
	s := n.String()
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("invalid number %s", s)
	}
	o.Value = &s
	return nil
}

// MarshalJSON implements json.Marshaler
func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// Ptr returns the underlying optional value
func (o OptionalString) Ptr() *string {
	return o.Value
}

// Len returns the length of the value, or 0 when absent
func (o OptionalString) Len() int {
	if o.Value == nil {
		return 0
	}
	return len(*o.Value)
}

// IdentifyRequest is a single observation of an email and/or phone number
type IdentifyRequest struct {
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

// IdentifyResponse is the consolidated view of the cluster an observation resolved to.
// The primary contact's values come first in Emails and PhoneNumbers.
type IdentifyResponse struct {
	PrimaryID    int64    `json:"primaryId"`
	Emails       []string `json:"emails"`
	PhoneNumbers []string `json:"phoneNumbers"`
	SecondaryIDs []int64  `json:"secondaryIds"`
}

// IdentifyOutcome describes everything an Identify call changed, for listeners that run after it commits
type IdentifyOutcome struct {
	Request  IdentifyRequest   `json:"request"`
	Response *IdentifyResponse `json:"response"`
	Primary  Contact           `json:"primary"`
	Cluster  []Contact         `json:"cluster"`
	Created  *Contact          `json:"created,omitempty"`
	// Demoted holds the former primaries that were re-parented under Primary by this call
	Demoted []int64 `json:"demoted,omitempty"`
	// Relinked holds every contact whose linkedId changed, demoted primaries included
	Relinked []int64 `json:"relinked,omitempty"`
}

// Merged reports whether the call merged two or more clusters
func (o *IdentifyOutcome) Merged() bool {
	return len(o.Demoted) > 0
}
