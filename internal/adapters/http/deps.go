package http

import (
	"github.com/nats-io/nats.go"

	"github.com/membermap/membermap/internal/adapters/postgres"
	"github.com/membermap/membermap/internal/adapters/valkey"
	"github.com/membermap/membermap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Maps    *usecases.MapService
	Prefs   *usecases.PreferencesService
	Search  *usecases.SearchService
	Tour    *usecases.TourService
	Members *usecases.MemberService
	Export  *usecases.ExportService // nil without object storage
	NATS    *nats.Conn
	DB      *postgres.DB
	Cache   *valkey.Cache
}
