// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

// Command cartsync runs an offline-first shopping-list client against a
// backend: it loads local state, connects the realtime channel when it can,
// and keeps draining the outbox in the background. With -demo it walks an
// offline create → reconnect → sync scenario and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/pocketlist/cartsync/internal/config"
	"github.com/pocketlist/cartsync/internal/logging"
	"github.com/pocketlist/cartsync/localstore"
	"github.com/pocketlist/cartsync/model"
	"github.com/pocketlist/cartsync/outbox"
	"github.com/pocketlist/cartsync/realtime"
	"github.com/pocketlist/cartsync/remote"
	"github.com/pocketlist/cartsync/session"
	"github.com/pocketlist/cartsync/store"
)

func main() {
	demo := flag.Bool("demo", false, "run the offline→online demo scenario and exit")
	flag.Parse()

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	local, err := localstore.Open(cfg.DatabaseFile, logger)
	if err != nil {
		logger.Error("failed to open local store", "error", err)
		os.Exit(1)
	}
	defer local.Close()

	sess := session.New(cfg.UserID, cfg.DeviceName, cfg.JWTSecret, cfg.TokenExpiry)
	svc := remote.NewClient(cfg.ServerURL, sess.Token, logger)
	queue := outbox.New(local.DB, logger)

	// Connectivity is a plain switch here; a mobile shell would wire the
	// platform reachability callback to the same flag.
	var online atomic.Bool
	online.Store(true)

	st := store.New(local, queue, svc, online.Load, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *demo {
		runDemo(ctx, st, &online)
		return
	}

	channel := realtime.NewChannel(cfg.RealtimeURL, logger)
	detach := st.AttachChannel(ctx, channel)
	defer detach()
	if err := channel.Connect(ctx); err != nil {
		logger.Warn("realtime channel unavailable, continuing with polling", "error", err)
	}
	defer channel.Disconnect()

	lists := st.FetchLists(ctx, true)
	logger.Info("loaded lists", "count", len(lists), "offline", st.OfflineMode())

	st.RunSyncLoop(ctx, cfg.BackoffMin, cfg.BackoffMax)
}

// runDemo exercises the offline-first path end to end.
func runDemo(ctx context.Context, st *store.Store, online *atomic.Bool) {
	online.Store(false)
	fmt.Println("— offline —")

	list, err := st.CreateList(ctx, "Weekly Groceries")
	if err != nil {
		fmt.Fprintln(os.Stderr, "create list:", err)
		return
	}
	fmt.Printf("created %q (localId=%s, status=%s)\n", list.Name, list.LocalID, list.SyncStatus)

	qty := 2.0
	item, err := st.AddItem(ctx, list.LocalID, model.Product{ID: 101, Name: "Milk", Emoji: "🥛", Category: "Dairy"}, &qty)
	if err != nil {
		fmt.Fprintln(os.Stderr, "add item:", err)
		return
	}
	fmt.Printf("added %q x%.0f (status=%s)\n", item.Name, qty, item.SyncStatus)

	online.Store(true)
	fmt.Println("— online —")

	if err := st.DrainOutbox(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "drain:", err)
		return
	}

	lists := st.FetchLists(ctx, true)
	for _, l := range lists {
		fmt.Printf("list %q: localId=%s serverId=%d status=%s items=%d\n",
			l.Name, l.LocalID, l.ID, l.SyncStatus, l.TotalItems)
	}
}
