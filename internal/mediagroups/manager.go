// Package mediagroups buffers the posts of a channel album until the whole
// album has arrived, then hands it over in message order.
package mediagroups

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/mymmrac/telego"
)

const (
	// DefaultSettleDelay is how long an album stays open after its first post.
	DefaultSettleDelay = 2 * time.Second
	// DefaultMaxAlbumSize is the Telegram limit of items per album.
	DefaultMaxAlbumSize = 10
)

// ProcessFunc receives a completed album.
type ProcessFunc func(ctx context.Context, groupID string, posts []telego.Message) error

type album struct {
	mu    sync.Mutex
	posts  []telego.Message
	timer  *time.Timer
	closed bool // taken for processing, late posts start a new album
}

// Manager collects album posts per media group id.
type Manager struct {
	process ProcessFunc
	delay   time.Duration
	maxSize int

	albums sync.Map // media group id -> *album
	wg     sync.WaitGroup
}

// NewManager creates a Manager. Non-positive delay or size fall back to the defaults.
func NewManager(process ProcessFunc, delay time.Duration, maxSize int) *Manager {
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxAlbumSize
	}
	return &Manager{process: process, delay: delay, maxSize: maxSize}
}

// Add buffers post. It returns false when post is not part of an album, in
// which case the caller handles it directly.
func (m *Manager) Add(post telego.Message) bool {
	groupID := post.MediaGroupID
	if groupID == "" {
		return false
	}

	for !m.addTo(groupID, post) {
	}
	return true
}

// addTo appends post to the open album of groupID. It returns false when the
// album it found was closed concurrently.
func (m *Manager) addTo(groupID string, post telego.Message) bool {
	value, _ := m.albums.LoadOrStore(groupID, &album{})
	a := value.(*album)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	if slices.ContainsFunc(a.posts, func(p telego.Message) bool { return p.MessageID == post.MessageID }) {
		return true
	}
	if len(a.posts) >= m.maxSize {
		log.Printf("[Album Group:%s] Size limit %d reached, post %d dropped", groupID, m.maxSize, post.MessageID)
		return true
	}
	a.posts = append(a.posts, post)

	if a.timer == nil {
		m.wg.Add(1)
		a.timer = time.AfterFunc(m.delay, func() {
			defer m.wg.Done()
			m.flush(groupID)
		})
	}
	return true
}

// flush removes the album and processes it.
func (m *Manager) flush(groupID string) {
	posts := m.take(groupID)
	if len(posts) == 0 {
		return
	}
	// albums outlive the update that started them
	if err := m.process(context.Background(), groupID, posts); err != nil {
		log.Printf("[Album Group:%s] Error processing %d post(s): %v", groupID, len(posts), err)
	}
}

func (m *Manager) take(groupID string) []telego.Message {
	value, ok := m.albums.LoadAndDelete(groupID)
	if !ok {
		return nil
	}
	a := value.(*album)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true

	posts := slices.Clone(a.posts)
	slices.SortFunc(posts, func(x, y telego.Message) int { return x.MessageID - y.MessageID })
	return posts
}

// Shutdown processes every pending album immediately and waits for running
// processors to finish.
func (m *Manager) Shutdown() {
	flushed := 0
	m.albums.Range(func(key, value any) bool {
		a := value.(*album)
		a.mu.Lock()
		stopped := a.timer != nil && a.timer.Stop()
		a.mu.Unlock()
		if stopped {
			m.flush(key.(string))
			m.wg.Done()
			flushed++
		}
		return true
	})
	m.wg.Wait()
	log.Printf("[Album] Shutdown complete, %d pending album(s) flushed", flushed)
}
