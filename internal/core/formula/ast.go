package formula

// Node is an element of a parsed formula. The set of implementations is closed.
type Node interface {
	Position() int
	node()
}

// Literal is a constant number, string or boolean
type Literal struct {
	Value Value
	Pos   int
}

// FieldRef reads a field of the row being evaluated
type FieldRef struct {
	Name string
	Pos  int
}

// BinaryOp applies an arithmetic or comparison operator
type BinaryOp struct {
	Op    string
	Left  Node
	Right Node
	Pos   int
}

// UnaryOp applies a prefix operator (only "-")
type UnaryOp struct {
	Op      string
	Operand Node
	Pos     int
}

// FunctionCall invokes a registry function by name
type FunctionCall struct {
	Name string
	Args []Node
	Pos  int
}

func (n *Literal) Position() int      { return n.Pos }
func (n *FieldRef) Position() int     { return n.Pos }
func (n *BinaryOp) Position() int     { return n.Pos }
func (n *UnaryOp) Position() int      { return n.Pos }
func (n *FunctionCall) Position() int { return n.Pos }

func (*Literal) node()      {}
func (*FieldRef) node()     {}
func (*BinaryOp) node()     {}
func (*UnaryOp) node()      {}
func (*FunctionCall) node() {}

// ReferencedFields returns the distinct field names a formula reads, in order of appearance
func ReferencedFields(root Node) []string {
	seen := make(map[string]bool)
	var names []string
	var walk func(Node)
	walk = func(n Node) {
		switch v := n.(type) {
		case *FieldRef:
			if !seen[v.Name] {
				seen[v.Name] = true
				names = append(names, v.Name)
			}
		case *BinaryOp:
			walk(v.Left)
			walk(v.Right)
		case *UnaryOp:
			walk(v.Operand)
		case *FunctionCall:
			for _, arg := range v.Args {
				walk(arg)
			}
		}
	}
	if root != nil {
		walk(root)
	}
	return names
}
