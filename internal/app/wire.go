//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/openpour/openpour/bus"
	"github.com/openpour/openpour/internal/config"
)

// InitializeApp wires the full application
func InitializeApp(
	cfg *config.Config,
	db *gorm.DB,
	publisher *bus.Publisher,
	consumer *bus.Consumer,
	redisClient *redis.Client,
) (*App, error) {
	wire.Build(NewApp)
	return nil, nil
}
