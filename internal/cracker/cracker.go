// Package cracker implements component G, document cracking: turning a connector's raw bytes into a CrackedDocument, dispatched
// by content type and file extension. Crackers are pure functions of their
// input bytes — no I/O.
package cracker

// CrackedDocument is the uniform output of every cracker.
type CrackedDocument struct {
	Content        string
	Title          string
	Author         string
	CreatedDate    string
	ModifiedDate   string
	PageCount      int
	WordCount      int
	CharacterCount int
	Language       string
	Metadata       map[string]string
	Warnings       []string
	Images         []string
}

// Cracker is one document-format handler.
type Cracker interface {
	CanHandle(contentType, extension string) bool
	Crack(content []byte, fileName, contentType string) (*CrackedDocument, error)
}

// Registry dispatches to the first registered Cracker that claims a given
// (contentType, extension) pair, in registration order.
type Registry struct {
	crackers []Cracker
}

// NewRegistry returns a Registry with the plain and html crackers
// registered, html first so plain only wins when html declines.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(&HTMLCracker{})
	r.Register(&PlainCracker{})
	return r
}

func (r *Registry) Register(c Cracker) {
	r.crackers = append(r.crackers, c)
}

// Crack dispatches content to the first claiming Cracker. An unrecognized
// (contentType, extension) pair never errors: it returns an empty
// CrackedDocument carrying a warning, so an indexer run is never aborted by
// an unsupported format.
func (r *Registry) Crack(content []byte, fileName, contentType, extension string) *CrackedDocument {
	for _, c := range r.crackers {
		if c.CanHandle(contentType, extension) {
			doc, err := c.Crack(content, fileName, contentType)
			if err != nil {
				return &CrackedDocument{
					Warnings: []string{"crack " + fileName + ": " + err.Error()},
				}
			}
			return doc
		}
	}
	return &CrackedDocument{
		Warnings: []string{"no cracker registered for content type " + contentType + " (" + extension + ")"},
	}
}
