package utils

// Error is a string-based error type, usable as a constant
type Error string

func (e Error) Error() string {
	return string(e)
}

func PanicOnError(err error) {
	if err != nil {
		panic(err)
	}
}
