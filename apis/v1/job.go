package v1

// Job is a batch of archive operations executed in order by the runner.
type Job struct {
	Kind     string   `yaml:"kind" json:"kind" validate:"required,eq=ArchiveJob"`
	Metadata Metadata `yaml:"metadata" json:"metadata" validate:"required"`
	Spec     JobSpec  `yaml:"spec" json:"spec" validate:"required"`
}

type Metadata struct {
	Name string `yaml:"name" json:"name" validate:"required"`
}

type JobSpec struct {
	// ContinueOnError keeps the runner going after a failed request.
	ContinueOnError bool `yaml:"continueOnError,omitempty" json:"continueOnError,omitempty"`

	Requests []Request `yaml:"requests" json:"requests" validate:"required,min=1,dive"`
}
