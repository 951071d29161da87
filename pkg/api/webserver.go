package api

import (
	"context"
	"log"
	"net/http"

	"github.com/chenBenjamin97/smart-cart/pkg/crossing"
	"github.com/chenBenjamin97/smart-cart/pkg/dispatch"
	"github.com/chenBenjamin97/smart-cart/pkg/inventory"
	"github.com/chenBenjamin97/smart-cart/pkg/video"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

//Cart is read by the /api/cart route, which answers with the items and their totals
type Cart interface {
	CartItems(ctx context.Context) ([]inventory.CartItem, error)
}

//Processor is read by the /api/stats and /api/frame routes
type Processor interface {
	Stats() video.ProcessorStats
	LastFrame() video.FrameResult
	Boundary() crossing.Boundary
}

//Dispatcher is read by the /api/stats route
type Dispatcher interface {
	Stats() dispatch.Stats
}

//Deps are the running components the API reports on
type Deps struct {
	Cart       Cart
	Processor  Processor
	Dispatcher Dispatcher
}

type statsResponse struct {
	Boundary   float64              `json:"boundary"`
	Processor  video.ProcessorStats `json:"processor"`
	Dispatcher dispatch.Stats       `json:"dispatcher"`
}

func SetRouter(deps Deps) *gin.Engine {
	r := gin.Default()

	//serve the cart page to client, if one is configured
	if staticPath := viper.GetString("frontend.static-files-path"); staticPath != "" {
		r.Static("/client", staticPath)
	}

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiRoutes.GET("/cart", func(ctx *gin.Context) {
		items, err := deps.Cart.CartItems(ctx.Request.Context())
		if err != nil {
			log.Printf("api/cart: Could not read cart, got '%v'", err)
			ctx.Status(http.StatusInternalServerError)
			return
		}

		ctx.JSON(http.StatusOK, inventory.Summarize(items))
	})

	apiRoutes.GET("/stats", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, statsResponse{
			Boundary:   float64(deps.Processor.Boundary()),
			Processor:  deps.Processor.Stats(),
			Dispatcher: deps.Dispatcher.Stats(),
		})
	})

	//latest frame's boxes, labels and movement, for an overlay drawn by the client
	apiRoutes.GET("/frame", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, deps.Processor.LastFrame())
	})

	return r
}
