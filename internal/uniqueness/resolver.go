// Package uniqueness picks the single identity key a submission is
// de-duplicated on, according to the form's uniqueness mode.
package uniqueness

import (
	"forms-api/internal/domain"
	"forms-api/internal/identity"
)

// MissingIdentifierMessage is returned when none of the mode's kinds has a value.
const MissingIdentifierMessage = "missing required identifier for this form's uniqueness policy"

var normalizers = map[domain.IdentityKind]func(string) (string, bool){
	domain.IdentityEmail:      identity.NormalizeEmail,
	domain.IdentityPhone:      identity.NormalizePhone,
	domain.IdentityNationalID: identity.NormalizeNationalID,
}

// Resolve returns raw reduced to at most one normalized field: the first kind in
// mode's priority order whose normalized value is non-empty. Mode none yields
// all nil.
func Resolve(mode domain.UniquenessMode, raw domain.IdentityFields) (domain.IdentityFields, error) {
	kinds, ok := mode.Priority()
	if !ok {
		return domain.IdentityFields{}, &domain.ConfigurationError{Subject: "uniqueness mode", Value: string(mode)}
	}
	if len(kinds) == 0 {
		return domain.IdentityFields{}, nil
	}

	for _, kind := range kinds {
		v := raw.Get(kind)
		if v == nil {
			continue
		}
		normalized, ok := normalizers[kind](*v)
		if !ok {
			continue
		}
		var out domain.IdentityFields
		out.Set(kind, &normalized)
		return out, nil
	}

	return domain.IdentityFields{}, domain.NewValidationError("uniquenessMode", MissingIdentifierMessage)
}
