package swagger

import _ "embed"

// OpenAPI is the API document served at /openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPI []byte
