package cart

import "context"

// RemoteUpdate 订阅收到的远端文档变更，Origin 是写入方协调器的标记
type RemoteUpdate struct {
	Cart   Cart   `json:"cart"`
	Origin string `json:"origin"`
}

// Subscription 远端文档的变更订阅
type Subscription interface {
	Updates() <-chan RemoteUpdate
	Close() error
}

// RemoteStore 每个身份一份的远端购物车文档
type RemoteStore interface {
	// Fetch 读取远端文档，不存在时 ok=false
	Fetch(ctx context.Context, id Identity) (c Cart, ok bool, err error)
	// Write 以 LastUpdated 做 last-writer-wins，被更新的文档覆盖时 applied=false
	Write(ctx context.Context, id Identity, c Cart, origin string) (applied bool, err error)
	Subscribe(ctx context.Context, id Identity) (Subscription, error)
}
