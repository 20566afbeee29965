package server

import (
	"Storefront/config"
	"Storefront/internal/cart"
	"Storefront/pkg/log"
)

// NewCartHub 按配置组装购物车会话管理器。配置了本地目录时本地缓存落盘，否则只在内存
func NewCartHub(conf *config.Config, remote cart.RemoteStore) (*cart.Hub, func(), error) {
	var store cart.LocalStore = cart.NewMemoryStore()
	if conf.Cart.LocalDir != "" {
		fs, err := cart.NewFileStore(conf.Cart.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		store = fs
	}

	hub := cart.NewHub(
		remote,
		cart.NewLocalPersistence(store, conf.Cart.LocalTTL),
		cart.Options{
			Debounce:      conf.Cart.Debounce,
			WriteTimeout:  conf.Cart.WriteTimeout,
			FetchTimeout:  conf.Cart.FetchTimeout,
			FetchAttempts: conf.Cart.FetchAttempts,
			RetryBase:     conf.Cart.RetryBase,
			RetryMax:      conf.Cart.RetryMax,
			MaxFailures:   conf.Cart.MaxFailures,
			MaxQuantity:   conf.Cart.MaxQuantity,
		},
		conf.Cart.IdleTTL,
		log.L.Named("cart"),
	)
	return hub, hub.Close, nil
}
