// Model catalog: the set of completion models the client may target and the
// capability flags the validator consults before issuing a call.
package ai

// Model describes one selectable completion model.
type Model struct {
	// ID is the provider-facing model identifier.
	ID string
	// SupportsSearch reports whether the model can serve search-mode requests.
	SupportsSearch bool
}

// Catalog resolves model identifiers to their capability descriptors.
type Catalog interface {
	// Lookup returns the model descriptor, or false when the id is unknown.
	Lookup(id string) (Model, bool)
}

// StaticCatalog is a fixed in-memory Catalog.
type StaticCatalog map[string]Model

// Lookup implements Catalog.
func (c StaticCatalog) Lookup(id string) (Model, bool) {
	m, ok := c[id]
	return m, ok
}

// DefaultCatalog lists the models the default deployment exposes.
func DefaultCatalog() StaticCatalog {
	return StaticCatalog{
		"gpt-4o":            {ID: "gpt-4o", SupportsSearch: true},
		"gpt-4o-mini":       {ID: "gpt-4o-mini", SupportsSearch: false},
		"sonar":             {ID: "sonar", SupportsSearch: true},
		"claude-3-5-sonnet": {ID: "claude-3-5-sonnet", SupportsSearch: false},
		"llama-3.1-70b":     {ID: "llama-3.1-70b", SupportsSearch: false},
		"deepseek-chat":     {ID: "deepseek-chat", SupportsSearch: false},
		"gemini-1.5-pro":    {ID: "gemini-1.5-pro", SupportsSearch: true},
	}
}
