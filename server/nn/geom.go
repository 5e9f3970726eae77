package nn

type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) X2() int {
	return r.X + r.Width
}

func (r Rect) Y2() int {
	return r.Y + r.Height
}

func (r Rect) Area() int {
	return r.Width * r.Height
}

func (r Rect) Intersection(b Rect) Rect {
	x1 := max(r.X, b.X)
	y1 := max(r.Y, b.Y)
	x2 := min(r.X+r.Width, b.X+b.Width)
	y2 := min(r.Y+r.Height, b.Y+b.Height)
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  max(0, x2-x1),
		Height: max(0, y2-y1),
	}
}

// Intersection over Union
func (r Rect) IOU(b Rect) float32 {
	intersection := r.Intersection(b)
	return float32(intersection.Area()) / float32(r.Area()+b.Area()-intersection.Area())
}

// Clip r so that it lies inside [0,0,width,height]
func (r Rect) Clip(width, height int) Rect {
	x1 := max(r.X, 0)
	y1 := max(r.Y, 0)
	x2 := min(r.X2(), width)
	y2 := min(r.Y2(), height)
	return Rect{
		X:      x1,
		Y:      y1,
		Width:  max(0, x2-x1),
		Height: max(0, y2-y1),
	}
}
