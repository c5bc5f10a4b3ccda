package api

import (
	"github.com/JaimeStill/curator/internal/sources"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Sources sources.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	reconciler := sources.NewReconciler(
		runtime.Scheduler,
		runtime.Notifier,
		runtime.Sources.RetrievalFunctionARN,
		runtime.Logger,
	)

	sourcesSystem := sources.New(
		sources.NewStore(runtime.Database.Connection()),
		reconciler,
		runtime.Storage,
		runtime.Functions,
		runtime.Sources,
		runtime.Logger,
	)

	return &Domain{
		Sources: sourcesSystem,
	}
}
