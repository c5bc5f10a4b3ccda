package api

import (
	"net/http"

	"github.com/JaimeStill/curator/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain, runtime *Runtime) {
	routes.Register(
		mux,
		domain.Sources.Handler(runtime.MaxUploadSize).Routes(),
		newStorageHandler(runtime.Storage, runtime.Logger, runtime.MaxListSize).routes(),
	)
}
