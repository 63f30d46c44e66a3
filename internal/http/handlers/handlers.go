package handlers

import (
	"github.com/shelfwise/lending/internal/service"
)

type Handlers struct {
	authService    service.AuthService
	catalogService service.CatalogService
	lendingService service.LendingService
}

func New(
	authService service.AuthService,
	catalogService service.CatalogService,
	lendingService service.LendingService,
) *Handlers {
	return &Handlers{
		authService:    authService,
		catalogService: catalogService,
		lendingService: lendingService,
	}
}
