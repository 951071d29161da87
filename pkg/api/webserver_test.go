package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chenBenjamin97/smart-cart/pkg/crossing"
	"github.com/chenBenjamin97/smart-cart/pkg/dispatch"
	"github.com/chenBenjamin97/smart-cart/pkg/inventory"
	"github.com/chenBenjamin97/smart-cart/pkg/video"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCart struct {
	items []inventory.CartItem
	err   error
}

func (s stubCart) CartItems(ctx context.Context) ([]inventory.CartItem, error) {
	return s.items, s.err
}

type stubProcessor struct{}

func (stubProcessor) Stats() video.ProcessorStats {
	return video.ProcessorStats{Frames: 12, CrossingsIn: 2, CrossingsOut: 1}
}

func (stubProcessor) LastFrame() video.FrameResult {
	dir := crossing.Inward
	return video.FrameResult{Number: 12, Observations: []video.Observation{
		{TrackID: 7, Label: "pepsi", Movement: crossing.MovementIn, Crossed: &dir},
	}}
}

func (stubProcessor) Boundary() crossing.Boundary {
	return 240
}

type stubDispatcher struct{}

func (stubDispatcher) Stats() dispatch.Stats {
	return dispatch.Stats{Submitted: 3, Succeeded: 3}
}

func newTestRouter(cart Cart) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetRouter(Deps{Cart: cart, Processor: stubProcessor{}, Dispatcher: stubDispatcher{}})
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newTestRouter(stubCart{}), "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCart(t *testing.T) {
	t.Run("lists items with totals", func(t *testing.T) {
		cart := stubCart{items: []inventory.CartItem{
			{CartProductID: 1, ProductID: 27, Name: "pepsi", Price: 10, Quantity: 2},
			{CartProductID: 2, ProductID: 10, Name: "Milk", Price: 22.5, Quantity: 1},
		}}
		w := get(t, newTestRouter(cart), "/api/cart")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"items": [
				{"cartproductid":1,"productid":27,"name":"pepsi","price":10,"quantity":2},
				{"cartproductid":2,"productid":10,"name":"Milk","price":22.5,"quantity":1}
			],
			"totalItems": 3,
			"totalPrice": 42.5
		}`, w.Body.String())
	})

	t.Run("empty cart is an empty list", func(t *testing.T) {
		w := get(t, newTestRouter(stubCart{items: []inventory.CartItem{}}), "/api/cart")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"items":[],"totalItems":0,"totalPrice":0}`, w.Body.String())
	})

	t.Run("store error", func(t *testing.T) {
		w := get(t, newTestRouter(stubCart{err: errors.New("db gone")}), "/api/cart")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestStats(t *testing.T) {
	w := get(t, newTestRouter(stubCart{}), "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var got statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 240.0, got.Boundary)
	assert.Equal(t, uint64(12), got.Processor.Frames)
	assert.Equal(t, uint64(3), got.Dispatcher.Succeeded)
}

func TestFrame(t *testing.T) {
	w := get(t, newTestRouter(stubCart{}), "/api/frame")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 12.0, body["frame"])
	obs := body["observations"].([]interface{})
	require.Len(t, obs, 1)
	assert.Equal(t, "inward", obs[0].(map[string]interface{})["crossed"])
	assert.Equal(t, "in", obs[0].(map[string]interface{})["movement"])
}
