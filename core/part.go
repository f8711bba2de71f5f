package core

// Content holds a conversation role together with its ordered part list.
type Content struct {
	Role  string `json:"role,omitempty"` // user, assistant, tool, system, ...
	Parts []Part `json:"parts"`          // heterogeneous, order-preserving
}

// Part is one segment of role-based content. The unexported marker method
// closes the set: only the part types declared in this package satisfy it,
// so switches over Part can be exhaustive.
type Part interface{ isPart() }

func (TextPart) isPart()             {}
func (DataPart) isPart()             {}
func (FilePart) isPart()             {}
func (FunctionCallPart) isPart()     {}
func (FunctionResponsePart) isPart() {}

// TextPart carries plain UTF-8 text.
type TextPart struct {
	Text     string
	Metadata map[string]any // optional producer annotations
}

// DataPart carries a structured payload, typically a decoded JSON object.
type DataPart struct {
	Data     map[string]any
	Metadata map[string]any
}

// FilePart attaches a file, either inlined or referenced by URI.
type FilePart struct {
	File     FilePartFile
	Metadata map[string]any
}

// FilePartFile is the file body of a FilePart. Exactly one of Bytes and URI
// is normally set.
type FilePartFile struct {
	Bytes    string // base64 contents when inlined
	MimeType *string
	Name     *string // original filename hint
	URI      string  // retrieval location when not inlined
}

// FunctionCall is a model-issued request to invoke a named tool.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // stable call id, may be assigned later
	Name      string `json:"name"`                // tool name
	Arguments string `json:"arguments,omitempty"` // raw serialized arguments, usually JSON
}

// FunctionCallPart embeds a FunctionCall in a content stream.
type FunctionCallPart struct {
	FunctionCall FunctionCall
	Metadata     map[string]any
}

// FunctionResponse is the outcome of one function call. Either Response or
// Error is populated, keyed back to the call via ID.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`       // matches the originating FunctionCall ID
	Name     string `json:"name"`               // tool name
	Response any    `json:"response,omitempty"` // result payload on success
	Error    string `json:"error,omitempty"`    // failure description
}

// FunctionResponsePart embeds a FunctionResponse in a content stream.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
	Metadata         map[string]any
}

// FileWithBytes describes a file supplied with inlined base64 contents,
// for building FilePartFile values programmatically.
type FileWithBytes struct {
	Bytes    string
	MimeType *string
	Name     *string
}

// FileWithUri describes a file available at an external URI.
type FileWithUri struct {
	MimeType *string
	Name     *string
	URI      string
}
