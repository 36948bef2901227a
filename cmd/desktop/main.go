package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/image/font/basicfont"

	"gomvd/pkg/compiler"
	"gomvd/pkg/config"
	"gomvd/pkg/grid"
	"gomvd/pkg/utils"
	"gomvd/pkg/vm"
)

const (
	charWidth  = 7
	charHeight = 13
	prompt     = "? "
)

var (
	fgColor     = color.RGBA{0xd0, 0xd0, 0xd0, 0xff}
	statusColor = color.RGBA{0x80, 0xc0, 0xff, 0xff}
)

type Game struct {
	vm     *vm.VM
	screen *grid.Screen
	face   text.Face
	log    commonlog.Logger

	width, height int
	stepsPerFrame int

	input []rune // line being typed while the program waits in RD
	done  bool
	blink int
}

func newGame(machine *vm.VM, cfg *config.Config) *Game {
	w, h := cfg.Desktop.Width, cfg.Desktop.Height
	return &Game{
		vm:            machine,
		screen:        grid.NewScreen(w/charWidth, h/charHeight),
		face:          text.NewGoXFace(basicfont.Face7x13),
		log:           commonlog.GetLogger("gomvd.desktop"),
		width:         w,
		height:        h,
		stepsPerFrame: cfg.Desktop.StepsPerFrame,
	}
}

// step runs the machine for at most one frame's budget, stopping early when
// it needs input, halts or fails.
func (g *Game) step() {
	if g.done || g.vm.AwaitingInput {
		return
	}
	for i := 0; i < g.stepsPerFrame; i++ {
		ev := g.vm.Step()
		switch ev.Status {
		case vm.StatusOutput:
			g.screen.WriteString(fmt.Sprintf("%d\n", ev.Value))
		case vm.StatusNeedInput:
			g.screen.WriteString(prompt)
			return
		case vm.StatusHalted:
			g.finish("-- program halted --")
			return
		case vm.StatusError:
			g.log.Errorf("%v", ev.Err)
			g.finish(ev.Err.Error())
			return
		}
	}
}

func (g *Game) finish(msg string) {
	g.done = true
	g.screen.WriteString(msg + "\n")
}

func (g *Game) typeRune(r rune) {
	if !g.vm.AwaitingInput || r < ' ' {
		return
	}
	g.input = append(g.input, r)
	g.screen.WriteString(string(r))
}

func (g *Game) erase() {
	if len(g.input) == 0 {
		return
	}
	g.input = g.input[:len(g.input)-1]
	g.screen.Backspace()
}

// submit hands the typed line to the machine. Text that is not an integer
// is reported and asked for again.
func (g *Game) submit() {
	if !g.vm.AwaitingInput {
		return
	}
	line := string(g.input)
	g.input = nil
	g.screen.WriteString("\n")
	if err := g.vm.ProvideInput(line); err != nil {
		g.screen.WriteString(err.Error() + "\n" + prompt)
	}
}

func (g *Game) Update() error {
	for _, r := range ebiten.AppendInputChars(nil) {
		g.typeRune(r)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		g.erase()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadEnter) {
		g.submit()
	}
	g.step()
	g.blink++
	return nil
}

func (g *Game) drawCell(dst *ebiten.Image, s string, x, y int, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x*charWidth), float64(y*charHeight))
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(dst, s, g.face, op)
}

func (g *Game) Draw(dst *ebiten.Image) {
	clr := fgColor
	if g.done {
		clr = statusColor
	}
	for i, r := range g.screen.Cells {
		if r == 0 {
			continue
		}
		x, y := grid.GetGridCoords(i, g.screen.Cols)
		g.drawCell(dst, string(r), x, y, clr)
	}

	if g.vm.AwaitingInput && g.blink/30%2 == 0 {
		x, y := g.screen.Cursor()
		g.drawCell(dst, "_", x, y, fgColor)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.width, g.height
}

func main() {
	showAsm := flag.Bool("show-asm", false, "print the generated bytecode to stdout")
	steps := flag.Int("steps", 0, "instructions executed per frame (default from config)")
	flag.Parse()
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: desktop [flags] <program.mvd|program.obj|program.mvdi>")
		os.Exit(2)
	}

	fullPath, baseDir, err := utils.GetPathInfo(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to resolve %s: %v", flag.Arg(0), err)
	}
	cfg, err := config.FindAndLoad(baseDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *steps > 0 {
		cfg.Desktop.StepsPerFrame = *steps
	}
	cfg.ConfigureLogging()

	prog, res, err := compiler.LoadFile(fullPath)
	if err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}
	if *showAsm && res != nil {
		fmt.Print("Generated bytecode:\n", res.Text, "\n")
	}

	machine := vm.New(cfg.VMOptions()...)
	machine.Load(prog)

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(cfg.Desktop.Width, cfg.Desktop.Height)
	ebiten.SetWindowTitle(cfg.Desktop.Title)

	if err := ebiten.RunGame(newGame(machine, cfg)); err != nil {
		log.Fatal(err)
	}
}
