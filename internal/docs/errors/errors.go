// Package errors provides sentinel errors for document discovery.
package errors

import "errors"

var (
	// ErrDocsPathNotFound indicates the content root does not exist.
	ErrDocsPathNotFound = errors.New("content directory not found")

	// ErrNotADirectory indicates the content root is a file.
	ErrNotADirectory = errors.New("content path is not a directory")

	// ErrDocsDirWalkFailed indicates traversal of the content root failed.
	ErrDocsDirWalkFailed = errors.New("content directory walk failed")

	// ErrFileReadFailed indicates reading a discovered file failed.
	ErrFileReadFailed = errors.New("document file read failed")

	// ErrInvalidRelativePath indicates a file could not be made relative to the content root.
	ErrInvalidRelativePath = errors.New("invalid relative path calculation")

	// ErrPathCollision indicates two source files map to the same output path
	// after case folding.
	ErrPathCollision = errors.New("output path collision")
)
