package v1

// Operation names accepted by the dispatcher.
const (
	OperationCompress   = "compress"
	OperationDecompress = "decompress"
	OperationList       = "list"
)

// Request is the operation-agnostic envelope consumed by the dispatcher.
// Format may be empty, in which case the dispatcher resolves the handler
// from the source path (extension first, then content sniffing).
type Request struct {
	Operation  string `yaml:"operation" json:"operation" validate:"required,oneof=compress decompress list"`
	Format     string `yaml:"format,omitempty" json:"format,omitempty"`
	SourcePath string `yaml:"sourcePath" json:"sourcePath" validate:"required"`

	OutputDirectory string `yaml:"outputDirectory,omitempty" json:"outputDirectory,omitempty"`

	// OutputFileName applies to compress only and must not contain path separators.
	OutputFileName string `yaml:"outputFileName,omitempty" json:"outputFileName,omitempty"`

	// CompressionLevel applies to compress only. Zero means the default (6).
	CompressionLevel int `yaml:"compressionLevel,omitempty" json:"compressionLevel,omitempty" validate:"omitempty,min=1,max=9"`

	// StripComponents applies to decompress only.
	StripComponents int `yaml:"stripComponents,omitempty" json:"stripComponents,omitempty" validate:"min=0"`

	// PreviewLength applies to list only. Zero means the default (1000).
	PreviewLength int `yaml:"previewLength,omitempty" json:"previewLength,omitempty" validate:"omitempty,min=1,max=10000"`
}
