//go:build wireinject
// +build wireinject

package main

import (
	"Storefront/config"
	"Storefront/dao"
	"Storefront/dao/cache"
	"Storefront/handler"
	"Storefront/internal/cart"
	"Storefront/pkg/client"
	"Storefront/pkg/database"
	"Storefront/pkg/rocketmq"
	"Storefront/pkg/server"
	"Storefront/service"

	"github.com/google/wire"
)

func InitServer(cfg *config.Config) (*server.AppProvider, func(), error) {
	wire.Build(
		client.NewRedisClient,
		database.NewDB,
		config.ProvideRocketMQConfig,
		rocketmq.NewBroker,
		rocketmq.ProvidePublisher,
		server.NewCartHub,
		server.NewGinEngine,

		cache.ProviderSet,
		dao.ProviderSet,
		service.ProviderSet,

		wire.Struct(new(cart.UUIDGenerator)),
		wire.Bind(new(cart.AnonymousIDs), new(*cart.UUIDGenerator)),

		wire.Struct(new(handler.Cart), "*"),
		wire.Struct(new(handler.CartSocket), "*"),
		wire.Struct(new(handler.Order), "*"),
		wire.Struct(new(handler.Inventory), "*"),

		wire.Struct(new(server.Handlers), "*"),
		wire.Struct(new(server.AppProvider), "*"),
	)
	return nil, nil, nil
}
