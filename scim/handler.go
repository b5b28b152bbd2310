package scim

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

const (
	SchemaListResponse = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	SchemaError        = "urn:ietf:params:scim:api:messages:2.0:Error"
	SchemaUser         = "urn:ietf:params:scim:schemas:core:2.0:User"
	SchemaGroup        = "urn:ietf:params:scim:schemas:core:2.0:Group"
	SchemaPatchOp      = "urn:ietf:params:scim:api:messages:2.0:PatchOp"
)

// WriteError writes a SCIM error response body per RFC 7644 §3.12:
// "status", optional "scimType", human-readable "detail".
func WriteError(w http.ResponseWriter, status int, detail string, scimType string) {
	w.Header().Set("Content-Type", "application/scim+json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(Error{
		Schemas:  []string{SchemaError},
		Status:   strconv.Itoa(status),
		Detail:   detail,
		ScimType: scimType,
	})
}

// WriteSCIMError writes the wire envelope for a *SCIMError. This is the
// single place that converts a typed domain error into the response
// body.
func WriteSCIMError(w http.ResponseWriter, err *SCIMError) {
	WriteError(w, err.Status, err.Detail, err.ScimType)
}

// WriteJSON writes a successful JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/scim+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// GetResourceLocation returns the canonical Location URL for a resource.
func GetResourceLocation(baseURL, endpoint, id string) string {
	return fmt.Sprintf("%s/%s/%s", baseURL, endpoint, id)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func jsonUnmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
