// Package source switches the process-wide JSON driver to goccy/go-json when
// blank-imported.
package source

import (
	protoskema "github.com/reoring/protoskema"
	drvgojson "github.com/reoring/protoskema/source/gojson"
)

// init lives outside the root package to avoid an import cycle.
func init() { protoskema.SetJSONDriver(drvgojson.Driver()) }
