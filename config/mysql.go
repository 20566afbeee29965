package config

import "fmt"

// MySQL 数据库配置，Driver 为 sqlite 时 Database 是数据库文件路径（本地开发用）
type MySQL struct {
	Driver       string `json:"driver" yaml:"driver"`
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	Username     string `json:"username" yaml:"username"`
	Password     string `json:"password" yaml:"password"`
	Database     string `json:"database" yaml:"database"`
	Charset      string `json:"charset" yaml:"charset"`
	MaxOpenConns int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns" yaml:"max_idle_conns"`
}

func (m *MySQL) IsSQLite() bool {
	return m.Driver == "sqlite"
}

func (m *MySQL) Dsn() string {
	if m.IsSQLite() {
		return m.Database + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	}
	charset := m.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		m.Username, m.Password, m.Host, m.Port, m.Database, charset)
}
