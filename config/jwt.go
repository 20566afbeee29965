package config

type Jwt struct {
	Secret string `json:"secret" yaml:"secret"`
	// ExpiresTime 秒
	ExpiresTime int64 `json:"expires_time" yaml:"expires_time"`
}
