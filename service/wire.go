package service

import (
	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(OrderService), "*"),
	wire.Bind(new(IOrderService), new(*OrderService)),

	wire.Struct(new(CartService), "*"),
	wire.Bind(new(ICartService), new(*CartService)),

	wire.Struct(new(InventoryService), "*"),
	wire.Bind(new(IInventoryService), new(*InventoryService)),

	wire.Struct(new(LogNotifier)),
	wire.Bind(new(Notifier), new(*LogNotifier)),
	wire.Struct(new(SimulatedPayment)),
	wire.Bind(new(PaymentGateway), new(*SimulatedPayment)),

	wire.Struct(new(OrderConfirmer), "*"),
	wire.Struct(new(OutboxRelay), "*"),
)
