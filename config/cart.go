package config

import "time"

// Cart 购物车同步相关配置
type Cart struct {
	Debounce      time.Duration `json:"debounce" yaml:"debounce"`             // 写回防抖窗口
	LocalTTL      time.Duration `json:"local_ttl" yaml:"local_ttl"`           // 本地缓存保留时长
	LocalDir      string        `json:"local_dir" yaml:"local_dir"`           // 本地缓存目录，为空则只在内存
	WriteTimeout  time.Duration `json:"write_timeout" yaml:"write_timeout"`   // 单次远端写超时
	FetchTimeout  time.Duration `json:"fetch_timeout" yaml:"fetch_timeout"`   // 单次远端读超时
	FetchAttempts int           `json:"fetch_attempts" yaml:"fetch_attempts"` // 登录切换时远端读重试次数
	RetryBase     time.Duration `json:"retry_base" yaml:"retry_base"`
	RetryMax      time.Duration `json:"retry_max" yaml:"retry_max"`
	MaxFailures   int           `json:"max_failures" yaml:"max_failures"` // 连续失败多少次后提示“改动可能未保存”
	IdleTTL       time.Duration `json:"idle_ttl" yaml:"idle_ttl"`         // 会话空闲多久后回收
	MaxQuantity   int           `json:"max_quantity" yaml:"max_quantity"` // 单行商品数量上限
}

func (c *Cart) WithDefaults() *Cart {
	if c == nil {
		c = &Cart{}
	}
	if c.Debounce <= 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.LocalTTL <= 0 {
		c.LocalTTL = 30 * 24 * time.Hour
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 3 * time.Second
	}
	if c.FetchAttempts <= 0 {
		c.FetchAttempts = 3
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 30 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.MaxQuantity <= 0 {
		c.MaxQuantity = 99
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 30 * time.Minute
	}
	return c
}
