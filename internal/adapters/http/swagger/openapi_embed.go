package swagger

import _ "embed"

// OpenAPI is the OpenAPI 3 document describing every public route.
//
//go:embed openapi.yaml
var OpenAPI []byte
