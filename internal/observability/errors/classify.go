package errors

import (
	goerrors "errors"
	"reflect"
	"strings"
)

// Classify returns a normalized error type name suitable for tagging metrics/logs,
// e.g. "pgconn_pgerror" or "errors_errorstring". It follows single-error
// unwrapping to the innermost cause; for joined errors the first member is used.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	err = innermost(err)

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}

func innermost(err error) error {
	for {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			errs := joined.Unwrap()
			if len(errs) == 0 {
				return err
			}
			err = errs[0]
			continue
		}
		next := goerrors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
