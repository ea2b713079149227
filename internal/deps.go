package internal

import (
	"nimbus/account-api/internal/service"
	"nimbus/account-api/internal/store"

	"gorm.io/gorm"
)

// Deps carries the process-wide resources. Built once at startup and passed
// into handlers explicitly, nothing reaches for ambient globals
type Deps struct {
	DB    *gorm.DB
	Auth  *service.Auth
	Users *store.Users
}
