package geo

// Palette colors neighbourhood polygons in load order.
var Palette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7",
	"#DDA0DD", "#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E9",
	"#F8C471", "#82E0AA", "#F1948A", "#85C1E9", "#D7BDE2",
}

// ColorFor returns the palette color for the i-th loaded area, wrapping around.
func ColorFor(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}
