package worker

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"genfity-wa-autoreply/services"

	"github.com/lib/pq"
)

// Sweeper drives the batching scheduler: a periodic tick at the batch window
// cadence plus Postgres LISTEN wakeups so single messages don't wait out the
// whole window. Every sweep runs the same stateless claim logic, so the HTTP
// sweep endpoint and this worker can coexist safely.
type Sweeper struct {
	pipeline *services.Pipeline
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewSweeper creates the sweeper with a wired pipeline
func NewSweeper() (*Sweeper, error) {
	pipeline, err := services.NewPipeline()
	if err != nil {
		return nil, err
	}
	return &Sweeper{
		pipeline: pipeline,
		shutdown: make(chan struct{}),
	}, nil
}

// Start begins the sweep loop
func (s *Sweeper) Start() {
	log.Println("🤖 Batch sweeper started")

	// Setup LISTEN for real-time notifications
	s.wg.Add(1)
	go s.listenForMessages()

	ticker := time.NewTicker(services.BatchWindowSeconds * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			log.Println("🛑 Batch sweeper shutting down...")
			s.wg.Wait() // Wait for listener to finish
			log.Println("✅ Batch sweeper stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// Stop signals the sweeper to shutdown gracefully
func (s *Sweeper) Stop() {
	close(s.shutdown)
}

func (s *Sweeper) sweep() {
	count, err := services.ProcessPendingBatches(s.pipeline.ProcessBatch)
	if err != nil {
		log.Printf("❌ [Sweeper] Sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("[Sweeper] Processed %d batches", count)
	}
}

// listenForMessages sets up PostgreSQL LISTEN for buffer notifications with
// auto-reconnect. Cloud Postgres aggressively closes LISTEN connections;
// that's expected, the ticker fallback keeps batches moving.
func (s *Sweeper) listenForMessages() {
	defer s.wg.Done()

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
	)

	eventCallback := func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Println("✅ [LISTEN] Connected - instant sweeps enabled")
		case pq.ListenerEventDisconnected:
			log.Println("ℹ️  [LISTEN] Disconnected (ticker fallback active)")
		case pq.ListenerEventReconnected:
			log.Println("✅ [LISTEN] Reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			if err != nil && !strings.Contains(err.Error(), "connection") && !strings.Contains(err.Error(), "forcibly closed") {
				log.Printf("⚠️  [LISTEN] Error: %v (ticker fallback active)\n", err)
			}
		}
	}

	listener := pq.NewListener(connStr, 10*time.Second, time.Minute, eventCallback)

	err := listener.Listen("buffered_messages_channel")
	if err != nil {
		log.Printf("⚠️  Failed to listen on buffered_messages_channel: %v (ticker only)", err)
		return
	}
	defer listener.Close()

	log.Println("👂 Listening for buffered message notifications...")

	// Keepalive ticker - ping every 60 seconds
	keepaliveTicker := time.NewTicker(60 * time.Second)
	defer keepaliveTicker.Stop()

	// Debounce: a notification means new messages landed, but sweeping
	// immediately would defeat the batch window for rapid-fire bursts.
	// Wait out the window from the first notification, then sweep.
	var pending <-chan time.Time

	for {
		select {
		case <-s.shutdown:
			log.Println("🔕 Stopping message listener...")
			return

		case notification := <-listener.Notify:
			if notification != nil && pending == nil {
				pending = time.After(services.BatchWindowSeconds * time.Second)
			}
			// notification == nil means connection was lost and reconnected

		case <-pending:
			pending = nil
			s.sweep()

		case <-keepaliveTicker.C:
			go func() {
				_ = listener.Ping() // Silent - ping failures are expected on cloud DB
			}()
		}
	}
}
