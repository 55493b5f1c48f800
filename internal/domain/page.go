package domain

const (
	DefaultPage     = 1
	MinPageSize     = 5
	MaxPageSize     = 10
	DefaultPageSize = MinPageSize
)

// Page selects a window of an owner's tasks.
type Page struct {
	Number int
	Size   int
}

// Normalize forces Number to at least 1 and Size into [MinPageSize, MaxPageSize].
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = DefaultPage
	}
	if p.Size < MinPageSize {
		p.Size = MinPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

func (p Page) Limit() int {
	return p.Normalize().Size
}
