package chart

import (
	"bufio"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
)

const svgNS = "http://www.w3.org/2000/svg"

// EncodeSVG serializes a scene as an SVG document.
func EncodeSVG(w io.Writer, root *Node) error {
	if root == nil {
		return eris.New("chart: nothing rendered")
	}
	bw := bufio.NewWriter(w)
	if err := writeNode(bw, root, 0); err != nil {
		return eris.Wrap(err, "chart: encode svg")
	}
	return eris.Wrap(bw.Flush(), "chart: flush svg")
}

func writeNode(w *bufio.Writer, n *Node, depth int) error {
	w.WriteByte('<')
	w.WriteString(n.Tag)
	if depth == 0 && n.Tag == "svg" {
		if _, ok := n.Lookup("xmlns"); !ok {
			w.WriteString(` xmlns="` + svgNS + `"`)
		}
	}
	for _, a := range n.Attrs {
		w.WriteByte(' ')
		w.WriteString(a.Name)
		w.WriteString(`="`)
		if err := xml.EscapeText(w, []byte(a.Value)); err != nil {
			return err
		}
		w.WriteByte('"')
	}
	if n.Text == "" && len(n.Children) == 0 {
		_, err := w.WriteString("/>")
		return err
	}
	w.WriteByte('>')
	if n.Text != "" {
		if err := xml.EscapeText(w, []byte(n.Text)); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if err := writeNode(w, c, depth+1); err != nil {
			return err
		}
	}
	w.WriteString("</")
	w.WriteString(n.Tag)
	_, err := w.WriteString(">")
	return err
}
