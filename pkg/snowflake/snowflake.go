package snowflake

import "github.com/bwmarrin/snowflake"

var node *snowflake.Node

func init() {
	node, _ = snowflake.NewNode(1)
}

// SetNode 多实例部署时每个实例需要不同的 node id
func SetNode(id int64) error {
	n, err := snowflake.NewNode(id)
	if err != nil {
		return err
	}
	node = n
	return nil
}

// GenOrderID 订单主键
func GenOrderID() int64 {
	return node.Generate().Int64()
}

func GenID() int64 {
	return node.Generate().Int64()
}
