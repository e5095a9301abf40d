// Package slideshow keeps the hero slideshow state: the image set, the
// current index and the autoplay timer.
package slideshow

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"salesflow/config"
	"salesflow/internal/scheduler"
	"salesflow/logger"
	"salesflow/models"
	"salesflow/processor"
)

const (
	component = "slideshow"

	OriginMarketplace = "marketplace"
	OriginStatic      = "static"
)

// Source lists collection items.
type Source interface {
	FetchCollectionNFTs(ctx context.Context, limit int) ([]models.NFT, error)
}

// State is a copy of the controller state for presentation.
type State struct {
	Slides     []models.NFT `json:"slides"`
	Current    int          `json:"current"`
	Paused     bool         `json:"paused"`
	Origin     string       `json:"origin"`
	ErrorImage string       `json:"error_image"`
	Delay      string       `json:"delay"`
}

type Controller struct {
	cfg        config.SlideshowConfig
	collection string
	errorImage string
	source     Source

	mu      sync.RWMutex
	rng     *rand.Rand
	slides  []models.NFT
	current int
	origin  string
	paused  bool
	ctx     context.Context
	task    *scheduler.Task

	log *logger.Log
}

func New(cfg *config.Config, source Source) *Controller {
	c := &Controller{
		cfg:        cfg.Slideshow,
		collection: cfg.Collection.Name,
		errorImage: cfg.Fallbacks.ErrorImage,
		source:     source,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:        context.Background(),
		log:        logger.GetLogger(),
	}
	if cfg.Slideshow.AutoPlayDelay > 0 {
		c.task = scheduler.New("slideshow_autoplay", cfg.Slideshow.AutoPlayDelay, false, func(context.Context) {
			c.Next()
		})
	}
	return c
}

// Start loads the image set and begins autoplay.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	c.Load(ctx)

	if c.task == nil {
		return nil
	}
	if err := c.task.Start(ctx); err != nil {
		return fmt.Errorf("start slideshow: %w", err)
	}
	return nil
}

func (c *Controller) Stop() {
	if c.task != nil {
		c.task.Stop()
	}
}

// Load fetches collection items, falling back to the configured static
// images when the listing fails or is empty. The set is shuffled when
// enabled, capped at MaxNFTs, and the index resets to 0.
func (c *Controller) Load(ctx context.Context) {
	log := c.log.WithComponent(component).WithFields(logger.Fields{"operation": "load"})

	origin := OriginMarketplace
	var slides []models.NFT
	if c.source != nil {
		nfts, err := c.source.FetchCollectionNFTs(ctx, c.cfg.FetchLimit)
		switch {
		case err != nil:
			log.WithError(err).Warn("nft listing failed, using static images")
		case len(nfts) == 0:
			log.Warn("nft listing empty, using static images")
		default:
			slides = nfts
		}
	}
	if len(slides) == 0 {
		origin = OriginStatic
		slides = c.staticSlides()
	}

	c.mu.Lock()
	if c.cfg.EnableShuffle {
		slides = processor.Shuffle(slides, c.rng)
	}
	c.slides = processor.Limit(slides, c.cfg.MaxNFTs)
	c.current = 0
	c.origin = origin
	count := len(c.slides)
	c.mu.Unlock()

	log.WithFields(logger.Fields{"origin": origin, "slides": count}).Info("slideshow loaded")
}

func (c *Controller) staticSlides() []models.NFT {
	slides := make([]models.NFT, 0, len(c.cfg.StaticImages))
	for i, img := range c.cfg.StaticImages {
		n := i + 1
		slides = append(slides, models.NFT{
			ID:       fmt.Sprintf("static-%d", n),
			Title:    fmt.Sprintf("%s %d", c.collection, n),
			ImageURL: img,
			TokenID:  fmt.Sprint(n),
		})
	}
	return slides
}

// Next advances one slide, wrapping to the first.
func (c *Controller) Next() State {
	c.mu.Lock()
	if n := len(c.slides); n > 0 {
		c.current = (c.current + 1) % n
	}
	c.mu.Unlock()
	return c.State()
}

// Prev steps back one slide, wrapping to the last.
func (c *Controller) Prev() State {
	c.mu.Lock()
	if n := len(c.slides); n > 0 {
		if c.current == 0 {
			c.current = n - 1
		} else {
			c.current--
		}
	}
	c.mu.Unlock()
	return c.State()
}

// GoTo selects index. Out of range indexes are ignored and reported false.
func (c *Controller) GoTo(index int) (State, bool) {
	c.mu.Lock()
	ok := index >= 0 && index < len(c.slides)
	if ok {
		c.current = index
	}
	c.mu.Unlock()
	return c.State(), ok
}

// Pause stops autoplay; manual navigation keeps working.
func (c *Controller) Pause() State {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	if c.task != nil {
		c.task.Stop()
	}
	return c.State()
}

// Resume restarts autoplay with a fresh cadence.
func (c *Controller) Resume() State {
	c.mu.Lock()
	wasPaused := c.paused
	c.paused = false
	ctx := c.ctx
	c.mu.Unlock()

	if wasPaused && c.task != nil && ctx.Err() == nil {
		if err := c.task.Restart(ctx); err != nil {
			c.log.WithComponent(component).WithError(err).Warn("failed to resume autoplay")
		}
	}
	return c.State()
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	slides := make([]models.NFT, len(c.slides))
	copy(slides, c.slides)
	return State{
		Slides:     slides,
		Current:    c.current,
		Paused:     c.paused,
		Origin:     c.origin,
		ErrorImage: c.errorImage,
		Delay:      c.cfg.AutoPlayDelay.String(),
	}
}
