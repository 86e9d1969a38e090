package session

import (
	"time"

	"github.com/lamim/taleforge/pkg/models"
)

// startLoadingLocked shows the first wait message of the genre and rotates
// through the rest until stopLoadingLocked is called
func (c *Controller) startLoadingLocked() {
	c.stopLoadingLocked()

	msgs := models.LoadingMessages(c.session.Genre.ID)
	c.loadingMsg = msgs[0]

	stop := make(chan struct{})
	c.stopLoading = stop
	go c.rotateLoading(stop, msgs, c.cfg.LoadingInterval)
}

func (c *Controller) rotateLoading(stop <-chan struct{}, msgs []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			i = (i + 1) % len(msgs)

			c.mu.Lock()
			if c.stopLoading != stop {
				c.mu.Unlock()
				return
			}
			c.loadingMsg = msgs[i]
			st := c.stateLocked()
			c.mu.Unlock()

			c.notify(st)
		}
	}
}

func (c *Controller) stopLoadingLocked() {
	if c.stopLoading != nil {
		close(c.stopLoading)
		c.stopLoading = nil
	}
	c.loadingMsg = ""
}
