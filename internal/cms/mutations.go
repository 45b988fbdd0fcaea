package cms

// Document is a CMS document body. It must carry _type, and _id when the caller picks the id.
type Document map[string]interface{}

// Mutation is one operation inside a mutate transaction. Exactly one field is set.
type Mutation struct {
	Create *Document `json:"create,omitempty"`
	Patch  *Patch    `json:"patch,omitempty"`
}

// Patch updates fields on an existing document
type Patch struct {
	ID    string                 `json:"id"`
	Set   map[string]interface{} `json:"set,omitempty"`
	Unset []string               `json:"unset,omitempty"`
}

type mutateRequest struct {
	Mutations []Mutation `json:"mutations"`
}

// Create fails with ErrDocumentExists when doc's _id is already taken
func Create(doc Document) Mutation {
	return Mutation{Create: &doc}
}

// SetFields patches the given fields on document id
func SetFields(id string, fields map[string]interface{}) Mutation {
	return Mutation{Patch: &Patch{ID: id, Set: fields}}
}

// Reference is a strong reference to another document
type Reference struct {
	Type string `json:"_type"`
	Ref  string `json:"_ref"`
}

// NewReference builds a reference to document id
func NewReference(id string) Reference {
	return Reference{Type: "reference", Ref: id}
}
