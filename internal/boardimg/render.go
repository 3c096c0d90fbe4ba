// Package boardimg draws chess positions as PNG images.
package boardimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	squareSize   = 56
	boardSize    = squareSize * 8
	sideMargin   = 24
	headerHeight = 32
	bottomMargin = 24
)

// Highlight marks the squares of the previous move.
type Highlight struct {
	From nchess.Square
	To   nchess.Square
}

type Options struct {
	Highlight *Highlight
	// Flip draws the board from black's side.
	Flip   bool
	Header string
}

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	backgroundColor = color.RGBA{28, 31, 46, 255}
	highlightFill   = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	whitePieceFill  = color.NRGBA{R: 248, G: 246, B: 240, A: 255}
	blackPieceFill  = color.NRGBA{R: 38, G: 38, B: 44, A: 255}
	pieceOutline    = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
	headerText      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateText  = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
)

// Render encodes board as PNG.
func Render(board *nchess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	width := boardSize + sideMargin*2
	height := headerHeight + boardSize + bottomMargin
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	origin := image.Point{X: sideMargin, Y: headerHeight}
	l := layout{origin: origin, flip: opts.Flip}

	drawSquares(img, l)
	if h := opts.Highlight; h != nil {
		imagedraw.Draw(img, l.rect(h.From), image.NewUniform(highlightFill), image.Point{}, imagedraw.Over)
		imagedraw.Draw(img, l.rect(h.To), image.NewUniform(highlightFill), image.Point{}, imagedraw.Over)
	}
	drawPieces(img, board, l)
	drawCoordinates(img, l)
	drawHeader(img, opts.Header)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

type layout struct {
	origin image.Point
	flip   bool
}

func (l layout) cell(sq nchess.Square) (col, row int) {
	col, row = int(sq.File()), 7-int(sq.Rank())
	if l.flip {
		col, row = 7-col, 7-row
	}
	return col, row
}

func (l layout) rect(sq nchess.Square) image.Rectangle {
	col, row := l.cell(sq)
	x := l.origin.X + col*squareSize
	y := l.origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawSquares(dst imagedraw.Image, l layout) {
	for i := 0; i < 64; i++ {
		sq := nchess.Square(i)
		clr := lightSquare
		if (int(sq.File())+int(sq.Rank()))%2 == 0 {
			clr = darkSquare
		}
		imagedraw.Draw(dst, l.rect(sq), image.NewUniform(clr), image.Point{}, imagedraw.Src)
	}
}

func drawPieces(img *image.RGBA, board *nchess.Board, l layout) {
	b := img.Bounds()
	scanner := rasterx.NewScannerGV(b.Dx(), b.Dy(), img, b)
	filler := rasterx.NewFiller(b.Dx(), b.Dy(), scanner)
	stroker := rasterx.NewStroker(b.Dx(), b.Dy(), scanner)
	stroker.SetStroke(fixed.I(2), fixed.I(4), rasterx.RoundCap, nil, rasterx.RoundGap, rasterx.Round)
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}

	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		r := l.rect(sq)
		cx := float64(r.Min.X) + squareSize/2
		cy := float64(r.Min.Y) + squareSize/2
		radius := float64(squareSize) * pieceScale(piece.Type())

		fill, ink := whitePieceFill, blackPieceFill
		if piece.Color() == nchess.Black {
			fill, ink = blackPieceFill, whitePieceFill
		}
		filler.Clear()
		filler.SetColor(fill)
		rasterx.AddCircle(cx, cy, radius, filler)
		filler.Draw()

		stroker.Clear()
		stroker.SetColor(pieceOutline)
		rasterx.AddCircle(cx, cy, radius, stroker)
		stroker.Draw()

		drawCentered(drawer, pieceLetter(piece.Type()), int(cx), int(cy)+4, ink)
	}
}

func drawCoordinates(img *image.RGBA, l layout) {
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	for i := 0; i < 8; i++ {
		file := nchess.NewSquare(nchess.File(i), nchess.Rank1)
		col, _ := l.cell(file)
		x := l.origin.X + col*squareSize + squareSize/2
		drawCentered(drawer, file.File().String(), x, l.origin.Y+boardSize+17, coordinateText)

		rank := nchess.NewSquare(nchess.FileA, nchess.Rank(i))
		_, row := l.cell(rank)
		y := l.origin.Y + row*squareSize + squareSize/2 + 4
		drawCentered(drawer, rank.Rank().String(), sideMargin/2, y, coordinateText)
	}
}

func drawHeader(img *image.RGBA, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	drawCentered(drawer, text, img.Bounds().Dx()/2, headerHeight/2+4, headerText)
}

func drawCentered(d *font.Drawer, text string, centerX, baseline int, clr color.Color) {
	if text == "" {
		return
	}
	width := d.MeasureString(text).Round()
	d.Src = image.NewUniform(clr)
	d.Dot = fixed.P(centerX-width/2, baseline)
	d.DrawString(text)
}

func pieceScale(t nchess.PieceType) float64 {
	switch t {
	case nchess.King, nchess.Queen:
		return 0.40
	case nchess.Pawn:
		return 0.28
	default:
		return 0.35
	}
}

func pieceLetter(t nchess.PieceType) string {
	switch t {
	case nchess.King:
		return "K"
	case nchess.Queen:
		return "Q"
	case nchess.Rook:
		return "R"
	case nchess.Bishop:
		return "B"
	case nchess.Knight:
		return "N"
	case nchess.Pawn:
		return "P"
	}
	return ""
}
