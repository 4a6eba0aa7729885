package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// The attempt stream has two writers: the read-loop handlers and the
// periodic tick goroutine. Flooding writes from several goroutines at
// once must never overlap on the wire; gorilla panics on a concurrent
// write, so an unserialized Conn fails this test under -race.
func TestConnSerializesConcurrentWriters(t *testing.T) {
	const writers = 8
	const framesPerWriter = 25

	upgrader := websocket.Upgrader{}
	done := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()

		for i := 0; i < writers*framesPerWriter; i++ {
			var frame map[string]interface{}
			if err := conn.ReadJSON(&frame); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}))
	defer srv.Close()

	raw, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn := NewConn(raw)
	defer conn.Close()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < framesPerWriter; i++ {
				var err error
				if n%2 == 0 {
					err = conn.WriteTyped(TickResponse{Event: EventTick, RemainingMinutes: float64(i)})
				} else {
					err = conn.WriteTyped(SavedResponse{Event: EventSaved, AnsweredCount: i})
				}
				if err != nil {
					t.Errorf("writer %d: %v", n, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server read: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive every frame")
	}
}
