package swagger

import _ "embed"

// OpenAPI contains the embedded OpenAPI YAML document for the rating API.
//
//go:embed openapi.yaml
var OpenAPI []byte
