package config

type App struct {
	Env   string `json:"env" yaml:"env"`
	Debug bool   `json:"debug" yaml:"debug"`
	// NodeID 雪花算法节点，多实例部署时不能重复
	NodeID int64 `json:"node_id" yaml:"node_id"`
}
