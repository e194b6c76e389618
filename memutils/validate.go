package memutils

// Validatable is used by the DebugValidate method to allow it to act upon
// all types with a Validate method
type Validatable interface {
	Validate() error
}

// IsValid returns true if Validate reports no errors for the provided object
func IsValid(validatable Validatable) bool {
	return validatable.Validate() == nil
}
