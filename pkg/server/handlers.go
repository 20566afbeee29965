package server

import (
	"Storefront/handler"
)

type Handlers struct {
	Cart       *handler.Cart
	CartSocket *handler.CartSocket
	Order      *handler.Order
	Inventory  *handler.Inventory
}
