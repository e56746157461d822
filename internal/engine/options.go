package engine

import (
	"github.com/go-playground/validator/v10"
)

const (
	// DefaultCompressionLevel is used when a request leaves the level unset.
	DefaultCompressionLevel = 6

	// DefaultPreviewLength caps list previews when a request leaves it unset.
	DefaultPreviewLength = 1000
)

var optionsValidator = validator.New(validator.WithRequiredStructEnabled())

// CompressionOptions configures a compress operation.
type CompressionOptions struct {
	// Level is the codec compression level, 1 (fastest) to 9 (smallest).
	Level int `validate:"min=1,max=9"`

	// OutputDirectory overrides the source's parent directory as destination.
	OutputDirectory string

	// OutputFileName overrides the derived "<base><ext>" name. Must be a bare
	// file name. An explicit name also bypasses the existing-output check.
	OutputFileName string
}

// ApplyDefaults fills unset fields and validates bounds.
func (o *CompressionOptions) ApplyDefaults() error {
	if o.Level == 0 {
		o.Level = DefaultCompressionLevel
	}
	if err := optionsValidator.Struct(o); err != nil {
		return &Error{Kind: KindValidation, Message: "invalid compression options", Err: err}
	}
	return nil
}

// DecompressionOptions configures a decompress operation.
type DecompressionOptions struct {
	// StripComponents discards this many leading path segments from archive
	// entries during extraction. Entries with fewer segments are skipped.
	StripComponents int `validate:"min=0"`

	OutputDirectory string
}

func (o *DecompressionOptions) ApplyDefaults() error {
	if err := optionsValidator.Struct(o); err != nil {
		return &Error{Kind: KindValidation, Message: "invalid decompression options", Err: err}
	}
	return nil
}

// ListOptions configures a list operation.
type ListOptions struct {
	// PreviewLength is the maximum number of decompressed bytes returned as a
	// preview for single-stream formats.
	PreviewLength int `validate:"min=1,max=10000"`
}

func (o *ListOptions) ApplyDefaults() error {
	if o.PreviewLength == 0 {
		o.PreviewLength = DefaultPreviewLength
	}
	if err := optionsValidator.Struct(o); err != nil {
		return &Error{Kind: KindValidation, Message: "invalid list options", Err: err}
	}
	return nil
}
