package dao

import (
	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(
	NewInventory,
	wire.Bind(new(InventoryStore), new(*Inventory)),
	NewOrder,
	NewOutbox,
)
