package cart

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentityRace 事件属于已经被替换掉的身份会话，直接丢弃，不暴露给用户
	ErrIdentityRace = errors.New("cart: event belongs to a superseded identity")
	// ErrClosed 协调器已关闭
	ErrClosed = errors.New("cart: coordinator closed")
	// ErrNoIdentity 还没有设置身份
	ErrNoIdentity = errors.New("cart: identity not set")
)

// ValidationError 参数非法，在任何 I/O 之前返回
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// SyncFailure 远端读写/订阅失败，会自动重试，不会丢弃本地状态
type SyncFailure struct {
	Op  string
	Err error
}

func (e *SyncFailure) Error() string {
	return fmt.Sprintf("cart sync %s: %v", e.Op, e.Err)
}

func (e *SyncFailure) Unwrap() error {
	return e.Err
}
