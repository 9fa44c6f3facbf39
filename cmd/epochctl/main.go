// epochctl announces a corpus update to every running retrieval instance.
// The ingestion pipeline calls it after a batch lands; it can also be run
// by hand to force a cache flush.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fiscora/retrieval-engine/internal/config"
	natsbus "github.com/fiscora/retrieval-engine/internal/infrastructure/queue/nats"
)

func main() {
	batchID := flag.String("batch", "", "ingestion batch id (random if empty)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *batchID == "" {
		*batchID = uuid.NewString()
	}

	retry := false
	bus, err := natsbus.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsbus.Options{
		RetryOnFailedConnect: &retry,
	})
	if err != nil {
		log.Fatalf("connect nats: %v", err)
	}
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bus.PublishCorpusUpdated(ctx, *batchID); err != nil {
		log.Fatalf("publish corpus update: %v", err)
	}
	log.Printf("published corpus update batch=%s subject=%s", *batchID, cfg.NATSSubject)
}
