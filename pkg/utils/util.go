package utils

import (
	"bytes"
	"fmt"
	"runtime"
	"time"

	"github.com/speps/go-hashids/v2"
)

// orderSnSalt 订单号混淆盐值，不能随意修改，否则历史单号无法还原
const orderSnSalt = "storefront-order"

// PanicTrace recover 到的值加上调用栈，跳过 runtime 自身的帧
func PanicTrace(err interface{}) string {
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "%v\n", err)
	for i := 2; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fmt.Fprintf(buf, "%s:%d (0x%x)\n", file, line, pc)
	}
	return buf.String()
}

func GenHashID(salt string, id int64) string {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 12
	h, _ := hashids.NewWithData(hd)
	e, _ := h.EncodeInt64([]int64{id})
	return e
}

// GenOrderSn 对外展示的订单号，日期前缀 + hashid
func GenOrderSn(orderID int64, at time.Time) string {
	return at.Format("20060102") + GenHashID(orderSnSalt, orderID)
}

// Backoff 指数退避，attempt 从 1 开始，结果不超过 max
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
