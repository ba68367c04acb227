package app

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/whatslukewarm/feedgen/pkg/util"
)

const (
	WorkerPoolSize     = 1 // Single writer: the engine table is mutated by one batch at a time
	StreamBufferSize   = 10000
	ErrorThreshold     = 10
	CursorSaveInterval = 20
)

type Stats struct {
	errors int // Number of errors
}

func newStats() Stats {
	return Stats{
		errors: 0,
	}
}

// Intake connects to the Jetstream and runs the curation engine over the
// event stream, persisting feed index changes as they are decided.
func Intake() error {
	slog.Info("starting intake")

	app, err := NewApp()
	if err != nil {
		return util.WrapErr("failed to create app", err)
	}
	defer app.Close()

	engine := NewEngine(app.Config, app.Lookup, clockwork.NewRealClock())

	// Restore the rejected-author registry from the last snapshot.
	rejections, err := app.Cache.ReadRejections()
	if err != nil {
		slog.Warn(util.WrapErr("failed to read rejections snapshot", err).Error())
	} else if len(rejections) > 0 {
		engine.Registry().Restore(rejections)
		slog.Info("restored rejections snapshot", "authors", len(rejections))
	}

	// Start worker threads
	var wg sync.WaitGroup
	wg.Add(WorkerPoolSize)
	stream := make(chan StreamEvent, StreamBufferSize)
	shutdown := make(chan struct{})
	for i := 0; i < WorkerPoolSize; i++ {
		go intakeWorker(i+1, stream, shutdown, app, engine, &wg)
	}

	// Connect to Jetstream, resuming from the saved cursor if one exists.
	url := app.Config.JetstreamURL
	cursor, err := app.Cache.ReadCursor()
	if err != nil {
		slog.Warn(util.WrapErr("failed to read cursor", err).Error())
	} else if cursor > 0 {
		url = fmt.Sprintf("%s&cursor=%d", url, cursor)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return util.WrapErr("failed to dial jetstream", err)
	}
	defer conn.Close()

	// Send Jetstream messages to workers
	errors := 0
	count := 0
	for {
		event := StreamEvent{}
		err := conn.ReadJSON(&event)
		if err != nil {
			errors++
			slog.Warn(util.WrapErr("failed to read json", err).Error())

			if errors > ErrorThreshold {
				slog.Error("encountered too many errors reading from jetstream")
				break
			}

			continue
		}

		count++
		if count%CursorSaveInterval == 0 {
			if err := app.Cache.SaveCursor(event.TimeUS); err != nil {
				slog.Warn(util.WrapErr("failed to save cursor", err).Error())
			}
		}

		stream <- event
	}

	// Signal workers to exit, and wait for them to finish
	close(shutdown)
	wg.Wait()

	// Final registry snapshot so a restart keeps known-bad authors.
	if err := app.Cache.SaveRejections(engine.Registry().Snapshot()); err != nil {
		slog.Warn(util.WrapErr("failed to save rejections snapshot", err).Error())
	}
	return nil
}

func intakeWorker(id int, stream chan StreamEvent, shutdown chan struct{}, app App, engine *Engine, wg *sync.WaitGroup) {
	slog.Info(fmt.Sprintf("starting worker %d", id))
	defer wg.Done()

	stats := newStats()

	for {
		event := StreamEvent{}
		ok := true

		select {
		case event, ok = <-stream:
			if !ok {
				slog.Error("error reading message from channel")
				continue
			}
		case <-shutdown:
			slog.Info(fmt.Sprintf("shutting down worker %d", id))
			return
		}

		batch := batchFromEvent(event)
		if batch.Empty() {
			continue
		}

		diff := engine.Apply(batch)

		if len(diff.ToDelete) > 0 {
			if err := app.Store.DeletePosts(diff.ToDelete); err != nil {
				slog.Error("failed to delete posts", "error", err)
				stats.errors++
			}
		}
		if len(diff.ToInsert) > 0 {
			if err := app.Store.SavePosts(diff.ToInsert); err != nil {
				slog.Error("failed to save posts", "error", err)
				stats.errors++
			}
		}

		if diff.Rotated {
			onRotation(app, engine)
		}
	}
}

// onRotation runs the engine's hourly housekeeping: snapshot the rejection
// registry and log the feed index size.
func onRotation(app App, engine *Engine) {
	if err := app.Cache.SaveRejections(engine.Registry().Snapshot()); err != nil {
		slog.Warn(util.WrapErr("failed to save rejections snapshot", err).Error())
	}

	count, err := app.Store.CountPosts()
	if err != nil {
		slog.Warn(util.WrapErr("failed to count posts", err).Error())
		return
	}
	slog.Info("hour rotated", "feed_posts", count, "tracked_posts", engine.TrackedCount())
}
