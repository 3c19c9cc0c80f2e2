package main

import (
	"context"
	"errors"
	"image"
	"image/draw"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"lane-defense/internal/config"
	"lane-defense/internal/game"
	"lane-defense/internal/render"
	"lane-defense/internal/store"
	"lane-defense/pkg/logger"
)

var kindKeys = map[ebiten.Key]game.DefenderKind{
	ebiten.Key1: game.KindAttacker,
	ebiten.Key2: game.KindProducer,
	ebiten.Key3: game.KindBlocker,
}

// desktopGame drives the engine one Advance per frame
type desktopGame struct {
	engine   *game.Engine
	renderer *render.Renderer
	viewport render.Viewport
	frame    *ebiten.Image
	pixels   *image.RGBA
	width    int
	height   int

	lastUpdate time.Time
}

func newDesktopGame(engine *game.Engine, width, height int) *desktopGame {
	rules := engine.Rules()
	return &desktopGame{
		engine:     engine,
		renderer:   render.NewRenderer(width, height),
		viewport:   render.ViewportFor(width, height, rules.Cols, rules.Lanes, rules.TileSize),
		frame:      ebiten.NewImage(width, height),
		pixels:     image.NewRGBA(image.Rect(0, 0, width, height)),
		width:      width,
		height:     height,
		lastUpdate: time.Now(),
	}
}

func (g *desktopGame) Update() error {
	now := time.Now()
	g.engine.Advance(now.Sub(g.lastUpdate)) // clamped to MaxDelta by the engine
	g.lastUpdate = now

	for key, kind := range kindKeys {
		if inpututil.IsKeyJustPressed(key) {
			g.engine.SelectKind(kind)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.engine.Restart()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		px, py := ebiten.CursorPosition()
		x, y := g.viewport.ToWorld(float64(px), float64(py))
		res, err := g.engine.PlaceAt(x, y, "mouse")
		if err != nil && !errors.Is(err, game.ErrOutOfBounds) {
			logger.Log.WithError(err).Debug("Placement rejected")
		} else if res.Action != "none" {
			logger.Log.WithField("action", res.Action).Debug("Pointer")
		}
	}
	return nil
}

func (g *desktopGame) Draw(screen *ebiten.Image) {
	img := g.renderer.Render(g.engine.GetSnapshot())
	rgba, ok := img.(*image.RGBA)
	if !ok {
		draw.Draw(g.pixels, g.pixels.Bounds(), img, image.Point{}, draw.Src)
		rgba = g.pixels
	}
	g.frame.WritePixels(rgba.Pix)
	screen.DrawImage(g.frame, nil)
}

func (g *desktopGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.width, g.height
}

func main() {
	envErr := godotenv.Load(".env")
	logger.Init()
	if envErr != nil {
		logger.Log.Debug("No .env file found, using environment variables only")
	}

	appConfig := config.Load()
	rules, err := game.LoadRules(appConfig.Sim.RulesPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("❌ Failed to load rules")
	}

	results, err := store.Open(context.Background(), store.Config{
		Driver:      appConfig.Store.Driver,
		DatabaseURL: appConfig.Store.DatabaseURL,
		Path:        appConfig.Store.Path,
	})
	if err != nil {
		logger.Log.WithError(err).Warn("⚠️ Results store unavailable, runs will not be saved")
		results = store.NopStore{}
	}
	defer results.Close()

	engine := game.NewEngine(game.EngineConfig{
		Seed:     appConfig.Sim.Seed,
		MaxDelta: appConfig.Sim.MaxDelta,
		Rules:    rules,
	})
	engine.OnLost = func(summary game.RunSummary) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := results.SaveResult(ctx, store.ResultFromSummary(summary, time.Now())); err != nil {
			logger.Log.WithError(err).Error("❌ Failed to save run result")
		}
	}

	win := appConfig.Window
	logger.Log.WithFields(logrus.Fields{
		"width":  win.Width,
		"height": win.Height,
	}).Info("🎮 Opening window: 1/2/3 select, click to place or collect, R restarts")

	ebiten.SetWindowSize(win.Width, win.Height)
	ebiten.SetWindowTitle(win.Title)
	if err := ebiten.RunGame(newDesktopGame(engine, win.Width, win.Height)); err != nil && !errors.Is(err, ebiten.Termination) {
		logger.Log.WithError(err).Fatal("❌ Game loop failed")
	}
}
