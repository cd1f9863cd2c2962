// Package docs ships the hand-written OpenAPI document of the HTTP API.
package docs

import _ "embed"

// SwaggerPath is the route the document is served under.
const SwaggerPath = "/docs/swagger.yaml"

//go:embed swagger.yaml
var SwaggerYAML []byte
