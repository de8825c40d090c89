package parse

// Priority bounds used at the ERP boundary.
const (
	MinPriority = 0
	MaxPriority = 10
)

// Priority clamps an ERP priority to MinPriority..MaxPriority.
func Priority(p int) int {
	return min(max(p, MinPriority), MaxPriority)
}
