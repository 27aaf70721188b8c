package ast

// Visitor is called for every node during a depth-first walk. Returning
// false skips the node's children.
type Visitor func(n *Node) bool

// Walk traverses the tree rooted at n depth-first, top-down, in source order
func Walk(n *Node, visit Visitor) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, child := range n.Children() {
		Walk(child, visit)
	}
}

// Find returns every node under n (inclusive) for which pred holds, in walk order
func Find(n *Node, pred func(*Node) bool) []*Node {
	var found []*Node
	Walk(n, func(node *Node) bool {
		if pred(node) {
			found = append(found, node)
		}
		return true
	})
	return found
}
