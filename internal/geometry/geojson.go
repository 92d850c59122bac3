package geometry

import (
	"github.com/paulmach/orb/geojson"

	"github.com/petrolab/psb/internal/phase"
)

// FeatureCollection exports shapes as GeoJSON. Variances are looked up by
// shape key and omitted when unknown.
func (sh *Shapes) FeatureCollection(excess phase.Set, variance map[string]int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, k := range sh.Keys() {
		s := sh.Shapes[k]
		f := geojson.NewFeature(s.Geom)
		f.Properties["key"] = k
		f.Properties["label"] = s.Key.Minus(excess).Key()
		f.Properties["edges"] = s.Edges
		if v, ok := variance[k]; ok {
			f.Properties["variance"] = v
		}
		fc.Append(f)
	}
	return fc
}
