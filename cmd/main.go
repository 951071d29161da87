package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/chenBenjamin97/smart-cart/pkg/api"
	"github.com/chenBenjamin97/smart-cart/pkg/capture"
	"github.com/chenBenjamin97/smart-cart/pkg/crossing"
	"github.com/chenBenjamin97/smart-cart/pkg/dispatch"
	"github.com/chenBenjamin97/smart-cart/pkg/inventory"
	"github.com/chenBenjamin97/smart-cart/pkg/utils"
	"github.com/chenBenjamin97/smart-cart/pkg/video"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if err := readConfig(viper.GetViper()); err != nil {
		log.Fatalf("Error: Could not read config file, got '%v'", err)
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//the line sits in the middle of the frame, so the frame size must be known before the first frame
	frameHeight := cfg.FrameHeight
	if cfg.DetectFrameSize {
		if h, err := capture.SourceFrameHeight(cfg.Source); err != nil {
			log.Printf("Could not read the frame size of '%s', using frame height %d, got '%v'", cfg.Source, frameHeight, err)
		} else {
			frameHeight = h
		}
	}
	boundary := crossing.BoundaryFor(frameHeight)
	log.Printf("Counting line at y=%v (frame height %d)", float64(boundary), frameHeight)

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Error: Could not open inventory, got '%v'", err)
	}
	defer store.Close()

	dispatcher := dispatch.New(store, cfg.Dispatch)
	dispatcher.Start()

	processor := video.NewProcessor(boundary, cfg.Labels, dispatcher, cfg.Processor)

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.SetRouter(api.Deps{Cart: store, Processor: processor, Dispatcher: dispatcher}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error, got '%v'", err)
		}
	}()

	framesC := make(chan video.Frame)
	trackerErrC := make(chan error, 1)
	go func() {
		trackerErrC <- video.RunTracker(ctx, cfg.Tracker, framesC)
	}()

	if err := processor.Run(ctx, framesC); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Frame loop stopped, got '%v'", err)
	}
	stop()

	if err := <-trackerErrC; err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Tracker stopped, got '%v'", err)
	}

	stats := processor.Stats()
	log.Printf("Processed %d frames: %d in, %d out", stats.Frames, stats.CrossingsIn, stats.CrossingsOut)

	//in-flight mutations are best-effort on shutdown
	dispatcher.Close()
	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := dispatcher.Wait(waitCtx); err != nil {
		log.Printf("Not all cart updates finished before exit, got '%v'", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error, got '%v'", err)
	}
}

func openStore(ctx context.Context, cfg config) (*inventory.Store, error) {
	store, err := inventory.Open(cfg.Driver, cfg.DSN, cfg.CartID)
	if err != nil {
		return nil, err
	}

	if err := store.MigrateUp(); err != nil {
		store.Close()
		return nil, err
	}
	if err := store.EnsureCart(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if cfg.SeedProducts {
		if err := store.SeedProducts(ctx, utils.Dedup(cfg.Labels)); err != nil {
			store.Close()
			return nil, err
		}
	}

	return store, nil
}
