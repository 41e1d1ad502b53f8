// Package metadata resolves application identifiers to display metadata
// (name, publisher, icon, store links, description), caching every result
// for the lifetime of one run.
package metadata

// Field values substituted when resolution fails or returns nothing usable.
const (
	UnknownName      = "Unknown"
	UnknownPublisher = "Unknown"
)

// AppMetadata is the resolved display record for one application. Records
// are immutable once cached for a run.
type AppMetadata struct {
	Name            string
	IconURL         string
	Publisher       string
	Description     string
	IOSStoreURL     string
	AndroidStoreURL string
}

// Sentinel returns the record substituted for identifiers that could not be
// resolved.
func Sentinel() AppMetadata {
	return AppMetadata{Name: UnknownName, Publisher: UnknownPublisher}
}
