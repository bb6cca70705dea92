package utils

// BatchEntry is one link in a batch file section.
type BatchEntry struct {
	OutputPath string   `yaml:"op,omitempty"`
	Link       string   `yaml:"link"`
	Payload    string   `yaml:"payload,omitempty"`
	File       string   `yaml:"file,omitempty"`
	Direct     bool     `yaml:"direct,omitempty"`
	Headers    []string `yaml:"headers,omitempty"`
}

// BatchFile maps an operation name (get, post, download, ...) to its entries.
type BatchFile map[string][]BatchEntry

// BatchJob is a batch entry resolved to a normalized operation.
type BatchJob struct {
	Op string
	BatchEntry
}
