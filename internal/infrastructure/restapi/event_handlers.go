package restapi

import (
	"io"

	"sift_client/internal/pkg/notify"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// eventBuffer bounds the changes held for one slow stream client.
const eventBuffer = 256

// EventsHandler streams change notifications as server-sent events until the
// client disconnects. Changes are dropped when the client falls behind.
func (h *Handler) EventsHandler(c *gin.Context) {
	in := make(chan notify.Change, eventBuffer)
	sub := h.notifier.Subscribe(in)
	defer sub.Unsubscribe()

	ctx := c.Request.Context()
	out := make(chan notify.Change, eventBuffer)
	go relayChanges(ctx.Done(), in, out)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change := <-out:
			data, err := json.Marshal(change)
			if err != nil {
				h.logger.Warn("Failed to encode change event", "error", err)
				return true
			}
			c.SSEvent("change", string(data))
			return true
		}
	})
}

// relayChanges moves changes from in to out without ever blocking the sender.
func relayChanges(done <-chan struct{}, in <-chan notify.Change, out chan<- notify.Change) {
	for {
		select {
		case <-done:
			return
		case change := <-in:
			select {
			case out <- change:
			default:
			}
		}
	}
}
