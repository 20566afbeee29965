package cache

import (
	"Storefront/internal/cart"

	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(
	NewCartStorage,
	wire.Bind(new(cart.RemoteStore), new(*CartStorage)),
	NewIdempotencyStorage,
	NewSocketStorage,
)
