package swagger

import _ "embed"

// OpenAPI is the embedded OpenAPI document.
//
//go:embed openapi.yaml
var OpenAPI []byte

// redocBundleURL is the pinned ReDoc standalone bundle.
const redocBundleURL = "https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"
