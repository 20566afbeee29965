package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	conf, err := Parse([]byte("app:\n  debug: true\n"))
	require.NoError(t, err)

	assert.True(t, conf.Debug())
	assert.Equal(t, 500*time.Millisecond, conf.Cart.Debounce)
	assert.Equal(t, 30*24*time.Hour, conf.Cart.LocalTTL)
	assert.Equal(t, 5, conf.Cart.MaxFailures)
	assert.Equal(t, 99, conf.Cart.MaxQuantity)
	assert.Equal(t, "STOREFRONT_ORDER_CREATED", conf.Order.Topic)
	assert.Equal(t, []string{"card", "paypal", "cod"}, conf.Order.PaymentMethods)
	assert.Equal(t, 8080, conf.Server.Http)
}

func TestParse_Overrides(t *testing.T) {
	raw := `
cart:
  debounce: 200ms
  local_ttl: 48h
  max_failures: 2
order:
  tax_rate_bp: 1000
  shipping_fee: 700
mysql:
  host: db
  port: 3307
  username: u
  password: p
  database: shop
`
	conf, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, conf.Cart.Debounce)
	assert.Equal(t, 48*time.Hour, conf.Cart.LocalTTL)
	assert.Equal(t, 2, conf.Cart.MaxFailures)
	assert.Equal(t, int64(1000), conf.Order.TaxRateBP)
	assert.Equal(t, "u:p@tcp(db:3307)/shop?charset=utf8mb4&parseTime=True&loc=Local", conf.MySQL.Dsn())
}
