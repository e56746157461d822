package engine

// Summary is the success payload a handler returns for one operation.
// Data carries operation-specific fields (sizes, ratios, entries, previews).
type Summary struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// ArchiveEntry describes one logical entry of an archive in a list result.
type ArchiveEntry struct {
	Name        string `json:"name"`
	Size        uint64 `json:"size,omitempty"`
	IsDirectory bool   `json:"isDirectory,omitempty"`
}
