package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns the validator used for binding request payloads. Struct tags
// carry the field rules; anything beyond tag reach (amount arithmetic,
// signatures) is checked by the domain and the integrity signer.
func New() *validatorv10.Validate {
	return validatorv10.New(validatorv10.WithRequiredStructEnabled())
}
