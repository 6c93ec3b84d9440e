package domain

// IdentityKind is one of the fields a submission may be de-duplicated on.
type IdentityKind string

const (
	IdentityEmail      IdentityKind = "email"
	IdentityPhone      IdentityKind = "phone"
	IdentityNationalID IdentityKind = "national_id"
)

// IdentityFields holds the raw or resolved identity values of a submission.
// A nil pointer means absent.
type IdentityFields struct {
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	NationalID *string `json:"nationalId,omitempty"`
}

// Get returns the value for kind.
func (f IdentityFields) Get(kind IdentityKind) *string {
	switch kind {
	case IdentityEmail:
		return f.Email
	case IdentityPhone:
		return f.Phone
	case IdentityNationalID:
		return f.NationalID
	}
	return nil
}

// Set writes value for kind.
func (f *IdentityFields) Set(kind IdentityKind, value *string) {
	switch kind {
	case IdentityEmail:
		f.Email = value
	case IdentityPhone:
		f.Phone = value
	case IdentityNationalID:
		f.NationalID = value
	}
}

// Populated returns how many fields are non-nil.
func (f IdentityFields) Populated() int {
	n := 0
	for _, v := range []*string{f.Email, f.Phone, f.NationalID} {
		if v != nil {
			n++
		}
	}
	return n
}

// UniquenessMode selects which identity kinds may de-duplicate a form's submissions.
type UniquenessMode string

const (
	UniquenessNone                     UniquenessMode = "none"
	UniquenessEmail                    UniquenessMode = "email"
	UniquenessPhone                    UniquenessMode = "phone"
	UniquenessNationalID               UniquenessMode = "national_id"
	UniquenessEmailOrPhone             UniquenessMode = "email_or_phone"
	UniquenessEmailOrNationalID        UniquenessMode = "email_or_national_id"
	UniquenessPhoneOrNationalID        UniquenessMode = "phone_or_national_id"
	UniquenessEmailOrPhoneOrNationalID UniquenessMode = "email_or_phone_or_national_id"
)

// uniquenessPriority lists identity kinds in the order they are tried.
var uniquenessPriority = map[UniquenessMode][]IdentityKind{
	UniquenessNone:                     {},
	UniquenessEmail:                    {IdentityEmail},
	UniquenessPhone:                    {IdentityPhone},
	UniquenessNationalID:               {IdentityNationalID},
	UniquenessEmailOrPhone:             {IdentityEmail, IdentityPhone},
	UniquenessEmailOrNationalID:        {IdentityEmail, IdentityNationalID},
	UniquenessPhoneOrNationalID:        {IdentityPhone, IdentityNationalID},
	UniquenessEmailOrPhoneOrNationalID: {IdentityEmail, IdentityPhone, IdentityNationalID},
}

// Priority returns the mode's ordered identity kinds. ok is false for unknown modes.
func (m UniquenessMode) Priority() ([]IdentityKind, bool) {
	kinds, ok := uniquenessPriority[m]
	return kinds, ok
}

// IsValid checks if the mode is one of the defined constants
func (m UniquenessMode) IsValid() bool {
	_, ok := uniquenessPriority[m]
	return ok
}
