package models

import "encoding/json"

// AdapterRequest is the body of POST /mcp/call on an adapter service.
type AdapterRequest struct {
	Email    string         `json:"email"`
	Resource string         `json:"resource"`
	Params   map[string]any `json:"params"`
}

// AdapterResponse is the reply of POST /mcp/call.
type AdapterResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *string         `json:"error"`
}
