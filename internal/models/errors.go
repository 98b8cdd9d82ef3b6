package models

import "fmt"

// InputError marks a source row that failed input validation during
// normalization. The row is skipped and reported; the run continues.
type InputError struct {
	CardCode string
	Field    string
	Message  string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input for card %q: %s: %s", e.CardCode, e.Field, e.Message)
}
