package modkit

import (
	phttp "sarbatch/internal/platform/net/http"
)

// Module is the common surface for modules: a name, a port set for cross wiring
// and optional routes on the ops server
type Module interface {
	Name() string
	Ports() any
}

// RouteMounter is implemented by modules that serve endpoints on the ops server
type RouteMounter interface {
	MountRoutes(r phttp.Router)
}

// Mount mounts every module that serves routes and returns their names
func Mount(r phttp.Router, mods ...Module) []string {
	var mounted []string
	for _, m := range mods {
		if rm, ok := m.(RouteMounter); ok {
			rm.MountRoutes(r)
			mounted = append(mounted, m.Name())
		}
	}
	return mounted
}
