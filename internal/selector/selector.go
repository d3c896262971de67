// Package selector resolves the newest available artifact version for each
// required service from a flat catalog listing.
package selector

import (
	"github.com/Masterminds/semver/v3"

	"github.com/cme-labs/cme-init/pkg/consts"
	"github.com/cme-labs/cme-init/pkg/logger"
)

// Artifact is one (name, version) pair discovered in the artifact catalog.
type Artifact struct {
	Name    string
	Version string
}

// Resolution maps each resolvable required service to its selected version.
// Absence of a key is a normal result meaning the catalog had no usable
// artifact for that service.
type Resolution map[consts.ServiceName]*semver.Version

// Resolve picks, for every required service, the catalog entry of maximum
// semantic-version precedence. Entries for other names are ignored, entries
// whose version does not parse are skipped, and an exact version tie keeps
// the first entry encountered.
func Resolve(artifacts []Artifact, required []consts.ServiceName) Resolution {
	wanted := make(map[consts.ServiceName]bool, len(required))
	for _, name := range required {
		wanted[name] = true
	}

	res := make(Resolution)
	for _, a := range artifacts {
		name := consts.ServiceName(a.Name)
		if !wanted[name] {
			continue
		}
		v, err := semver.NewVersion(a.Version)
		if err != nil {
			logger.Log.Warn("Skipping artifact with unparseable version",
				"name", a.Name, "version", a.Version, "err", err)
			continue
		}
		if current, ok := res[name]; ok && !v.GreaterThan(current) {
			continue
		}
		res[name] = v
	}
	return res
}

// Missing returns the required services absent from the resolution, in the
// required order.
func (r Resolution) Missing(required []consts.ServiceName) []consts.ServiceName {
	var missing []consts.ServiceName
	for _, name := range required {
		if _, ok := r[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Complete reports whether every required service resolved.
func (r Resolution) Complete(required []consts.ServiceName) bool {
	return len(r.Missing(required)) == 0
}
