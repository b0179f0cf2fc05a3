package utils

// Ptr returns a pointer to v. Handy for the optional fields in disgo's
// message builders.
func Ptr[T any](v T) *T {
	return &v
}
