//go:build !opencva

package opencva

// NewOCADriver returns ErrNoDriver as the program was built without the
// opencva build tag, use NopDriver instead
func NewOCADriver() (Driver, error) {
	return nil, ErrNoDriver
}
