//go:build gojson

package benchmarks_test

import (
	protoskema "github.com/reoring/protoskema"
	drv "github.com/reoring/protoskema/source/gojson"
)

func init() {
	protoskema.SetJSONDriver(drv.Driver())
}
