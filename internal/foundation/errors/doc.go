// Package errors provides classified errors for spectra.
//
// A ClassifiedError carries a category, a severity and a retry strategy. The
// CLI adapter turns the category into a process exit code and the HTTP adapter
// into a status code.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryAPI, "pdf upload failed").
//		Retryable().
//		WithContext("file", path).
//		Build()
package errors
