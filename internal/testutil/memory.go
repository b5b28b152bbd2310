// Package testutil provides test utilities for the scimgateway project.
// This package is internal and not part of the public API.
package testutil

import (
	"net/http"

	scimgateway "github.com/arimatsu/scimcore"
	"github.com/arimatsu/scimcore/config"
	"github.com/arimatsu/scimcore/memory"
	"github.com/arimatsu/scimcore/plugin"
	"github.com/arimatsu/scimcore/scim"
)

// NewTestGateway builds and initializes a Gateway wired to fresh in-memory
// Users and Groups handlers (memory.Backend[scim.User]/[scim.Group]),
// replacing the old MemoryPlugin used directly against a scim.Server: the
// integration suite now drives the same plugin.TypedHandler/scim.Router
// path a real deployment does.
func NewTestGateway(baseURL string) (http.Handler, error) {
	cfg := config.DefaultConfig()
	cfg.Gateway.BaseURL = baseURL

	gw := scimgateway.New(cfg)
	gw.RegisterHandler(plugin.NewTypedHandler[scim.User]("Users", scim.SchemaUser, "User", memory.NewBackend[scim.User](), nil), nil)
	gw.RegisterHandler(plugin.NewTypedHandler[scim.Group]("Groups", scim.SchemaGroup, "Group", memory.NewBackend[scim.Group](), nil), nil)

	if err := gw.Initialize(); err != nil {
		return nil, err
	}
	return gw.Handler()
}
