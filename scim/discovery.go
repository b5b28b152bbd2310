package scim

import "strings"

// ServiceProviderConfig represents the SCIM service provider configuration
type ServiceProviderConfig struct {
	Schemas               []string               `json:"schemas"`
	DocumentationURI      string                 `json:"documentationUri,omitempty"`
	Patch                 SupportedFeature       `json:"patch"`
	Bulk                  BulkFeature            `json:"bulk"`
	Filter                FilterFeature          `json:"filter"`
	ChangePassword        SupportedFeature       `json:"changePassword"`
	Sort                  SupportedFeature       `json:"sort"`
	Etag                  SupportedFeature       `json:"etag"`
	AuthenticationSchemes []AuthenticationScheme `json:"authenticationSchemes"`
}

// SupportedFeature indicates if a feature is supported
type SupportedFeature struct {
	Supported bool `json:"supported"`
}

// BulkFeature describes bulk operation capabilities
type BulkFeature struct {
	Supported      bool `json:"supported"`
	MaxOperations  int  `json:"maxOperations"`
	MaxPayloadSize int  `json:"maxPayloadSize"`
}

// FilterFeature describes filter capabilities
type FilterFeature struct {
	Supported  bool `json:"supported"`
	MaxResults int  `json:"maxResults"`
}

// AuthenticationScheme describes an authentication scheme
type AuthenticationScheme struct {
	Type             string `json:"type"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	SpecURI          string `json:"specUri,omitempty"`
	DocumentationURI string `json:"documentationUri,omitempty"`
	Primary          bool   `json:"primary,omitempty"`
}

// SchemaDefinition represents a SCIM schema definition
type SchemaDefinition struct {
	ID          string                `json:"id"`
	Name        string                `json:"name,omitempty"`
	Description string                `json:"description,omitempty"`
	Attributes  []AttributeDefinition `json:"attributes,omitempty"`
}

// AttributeDefinition describes a SCIM attribute
type AttributeDefinition struct {
	Name            string                `json:"name"`
	Type            string                `json:"type"`
	SubAttributes   []AttributeDefinition `json:"subAttributes,omitempty"`
	MultiValued     bool                  `json:"multiValued"`
	Description     string                `json:"description,omitempty"`
	Required        bool                  `json:"required"`
	CaseExact       bool                  `json:"caseExact"`
	Mutability      string                `json:"mutability"`
	Returned        string                `json:"returned"`
	Uniqueness      string                `json:"uniqueness"`
	ReferenceTypes  []string              `json:"referenceTypes,omitempty"`
	CanonicalValues []string              `json:"canonicalValues,omitempty"`
}

// ResourceTypeDefinition represents a resource type
type ResourceTypeDefinition struct {
	Schemas          []string             `json:"schemas"`
	ID               string               `json:"id"`
	Name             string               `json:"name,omitempty"`
	Endpoint         string               `json:"endpoint"`
	Description      string               `json:"description,omitempty"`
	Schema           string               `json:"schema"`
	SchemaExtensions []SchemaExtensionRef `json:"schemaExtensions,omitempty"`
}

// SchemaExtensionRef references a schema extension
type SchemaExtensionRef struct {
	Schema   string `json:"schema"`
	Required bool   `json:"required"`
}

// ResourceTypeConfig is how a deployment tells the Router what resource
// types exist for discovery purposes (GET /ResourceTypes, GET /Schemas).
// One ResourceTypeConfig typically accompanies one registered
// ResourceHandler, but discovery and dispatch are tracked separately
// since a deployment may expose metadata for a resource type it only
// partially implements.
type ResourceTypeConfig struct {
	ID               string
	Name             string
	Endpoint         string
	Description      string
	SchemaURI        string
	SchemaExtensions []SchemaExtensionRef
}

// BuildResourceTypes renders the configured resource types into their
// wire form.
func BuildResourceTypes(configs []ResourceTypeConfig) []ResourceTypeDefinition {
	out := make([]ResourceTypeDefinition, 0, len(configs))
	for _, c := range configs {
		out = append(out, ResourceTypeDefinition{
			Schemas:          []string{"urn:ietf:params:scim:schemas:core:2.0:ResourceType"},
			ID:               c.ID,
			Name:             c.Name,
			Endpoint:         c.Endpoint,
			Description:      c.Description,
			Schema:           c.SchemaURI,
			SchemaExtensions: c.SchemaExtensions,
		})
	}
	return out
}

// SchemaRegistry holds the schema definitions a deployment exposes via
// GET /Schemas, keyed by schema URI. New resource types register their
// own definition instead of requiring a new accessor function.
type SchemaRegistry struct {
	schemas map[string]*SchemaDefinition
}

// NewSchemaRegistry creates an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: make(map[string]*SchemaDefinition)}
}

// Register adds or replaces a schema definition.
func (s *SchemaRegistry) Register(def *SchemaDefinition) {
	s.schemas[def.ID] = def
}

// Get looks up a schema by URI or by case-insensitive name.
func (s *SchemaRegistry) Get(idOrName string) (*SchemaDefinition, bool) {
	if def, ok := s.schemas[idOrName]; ok {
		return def, true
	}
	for _, def := range s.schemas {
		if strings.EqualFold(def.Name, idOrName) {
			return def, true
		}
	}
	return nil, false
}

// All returns every registered schema definition.
func (s *SchemaRegistry) All() []*SchemaDefinition {
	out := make([]*SchemaDefinition, 0, len(s.schemas))
	for _, def := range s.schemas {
		out = append(out, def)
	}
	return out
}

// defaultSchemaRegistry backs the Router's GET /Schemas endpoint. It
// ships pre-populated with the User and Group definitions the core
// ships examples for; a deployment adds its own resource types via
// RegisterSchema before starting the Router.
var defaultSchemaRegistry = NewSchemaRegistry()

func init() {
	defaultSchemaRegistry.Register(userSchemaDefinition())
	defaultSchemaRegistry.Register(groupSchemaDefinition())
}

// RegisterSchema adds a schema definition to the registry the Router's
// GET /Schemas and GET /Schemas/{id} endpoints serve from.
func RegisterSchema(def *SchemaDefinition) {
	defaultSchemaRegistry.Register(def)
}

// GetServiceProviderConfig returns the service provider configuration.
// Bulk is reported unsupported: the dispatcher rejects every Bulk
// request outright, so advertising it would be misleading to a client
// that introspects this endpoint first.
func GetServiceProviderConfig(authSchemes []AuthenticationScheme) *ServiceProviderConfig {
	if len(authSchemes) == 0 {
		authSchemes = []AuthenticationScheme{
			{
				Type:             "httpbasic",
				Name:             "HTTP Basic",
				Description:      "Authentication scheme using the HTTP Basic Standard",
				SpecURI:          "http://www.rfc-editor.org/info/rfc2617",
				DocumentationURI: "http://tools.ietf.org/html/rfc2617",
				Primary:          true,
			},
			{
				Type:        "oauthbearertoken",
				Name:        "OAuth Bearer Token",
				Description: "Authentication scheme using the OAuth Bearer Token Standard",
				SpecURI:     "http://www.rfc-editor.org/info/rfc6750",
			},
		}
	}

	return &ServiceProviderConfig{
		Schemas:          []string{"urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"},
		DocumentationURI: "https://github.com/arimatsu/scimcore",
		Patch:            SupportedFeature{Supported: true},
		Bulk:             BulkFeature{Supported: false},
		Filter:           FilterFeature{Supported: true, MaxResults: 1000},
		ChangePassword:   SupportedFeature{Supported: true},
		Sort:             SupportedFeature{Supported: true},
		Etag:             SupportedFeature{Supported: true},

		AuthenticationSchemes: authSchemes,
	}
}

func userSchemaDefinition() *SchemaDefinition {
	return &SchemaDefinition{
		ID:          SchemaUser,
		Name:        "User",
		Description: "User Account",
		Attributes: []AttributeDefinition{
			{Name: "userName", Type: "string", Required: true, Mutability: "readWrite", Returned: "default", Uniqueness: "server"},
			{
				Name: "name", Type: "complex", Mutability: "readWrite", Returned: "default",
				SubAttributes: []AttributeDefinition{
					{Name: "formatted", Type: "string", Mutability: "readWrite", Returned: "default"},
					{Name: "familyName", Type: "string", Mutability: "readWrite", Returned: "default"},
					{Name: "givenName", Type: "string", Mutability: "readWrite", Returned: "default"},
					{Name: "middleName", Type: "string", Mutability: "readWrite", Returned: "default"},
					{Name: "honorificPrefix", Type: "string", Mutability: "readWrite", Returned: "default"},
					{Name: "honorificSuffix", Type: "string", Mutability: "readWrite", Returned: "default"},
				},
			},
			{Name: "displayName", Type: "string", Mutability: "readWrite", Returned: "default"},
			{
				Name: "emails", Type: "complex", MultiValued: true, Mutability: "readWrite", Returned: "default",
				SubAttributes: []AttributeDefinition{
					{Name: "value", Type: "string", Mutability: "readWrite", Returned: "default"},
					{Name: "display", Type: "string", Mutability: "readWrite", Returned: "default"},
					{Name: "type", Type: "string", Mutability: "readWrite", Returned: "default", CanonicalValues: []string{"work", "home", "other"}},
					{Name: "primary", Type: "boolean", Mutability: "readWrite", Returned: "default"},
				},
			},
			{Name: "active", Type: "boolean", Mutability: "readWrite", Returned: "default"},
		},
	}
}

func groupSchemaDefinition() *SchemaDefinition {
	return &SchemaDefinition{
		ID:          SchemaGroup,
		Name:        "Group",
		Description: "Group",
		Attributes: []AttributeDefinition{
			{Name: "displayName", Type: "string", Required: true, Mutability: "readWrite", Returned: "default", Uniqueness: "none"},
			{
				Name: "members", Type: "complex", MultiValued: true, Mutability: "readWrite", Returned: "default",
				SubAttributes: []AttributeDefinition{
					{Name: "value", Type: "string", Mutability: "readWrite", Returned: "default"},
					{Name: "$ref", Type: "reference", Mutability: "readWrite", Returned: "default", ReferenceTypes: []string{"User", "Group"}},
					{Name: "type", Type: "string", Mutability: "readWrite", Returned: "default", CanonicalValues: []string{"User", "Group"}},
				},
			},
		},
	}
}

// DefaultResourceTypes is the User/Group pair the core ships examples
// for; a deployment that registers more resource types appends to this
// when building its Router.
func DefaultResourceTypes() []ResourceTypeConfig {
	return []ResourceTypeConfig{
		{
			ID: "User", Name: "User", Endpoint: "Users", Description: "User Account", SchemaURI: SchemaUser,
			SchemaExtensions: []SchemaExtensionRef{{Schema: "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User", Required: false}},
		},
		{ID: "Group", Name: "Group", Endpoint: "Groups", Description: "Group", SchemaURI: SchemaGroup},
	}
}
