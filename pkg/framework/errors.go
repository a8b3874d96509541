package framework

import "strings"

// Errors collects errors from multiple runners.
type Errors []error

// Error implements error.
func (e Errors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	msg := make([]string, 0, len(e)+1)
	msg = append(msg, "Multiple errors:")
	for _, err := range e {
		msg = append(msg, err.Error())
	}
	return strings.Join(msg, "\n")
}

// Add appends errors, nil is skipped.
func (e *Errors) Add(errs ...error) {
	for _, err := range errs {
		if err != nil {
			*e = append(*e, err)
		}
	}
}

// Err returns nil when nothing was collected and the error itself when
// only one was.
func (e Errors) Err() error {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return e[0]
	}
	return e
}
