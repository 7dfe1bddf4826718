package mesh

type INetwork interface {
	Run()
	Join(n INode) error
	Leave(nodeID uint32)
	LeaveAll()
	GetNode(nodeID uint32) (INode, error)
	Nodes() []INode
	BroadcastMessage(pkt []byte, sender INode)
	UnicastMessage(pkt []byte, sender INode, to uint32) error
}
