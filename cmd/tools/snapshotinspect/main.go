package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-board/backend/internal/config"
	model "github.com/zhouzirui/z-board/backend/internal/model/message"
	"github.com/zhouzirui/z-board/backend/internal/service/message"
	"github.com/zhouzirui/z-board/backend/internal/storage/snapshot"
)

type report struct {
	Snapshot      model.SnapshotInfo            `json:"snapshot"`
	NextID        uint64                        `json:"nextId"`
	TopLevel      uint64                        `json:"topLevel"`
	Stats         model.Stats                   `json:"stats"`
	AuthorCounts  map[model.Principal]uint64    `json:"authorCounts"`
	CountMismatch map[model.Principal][2]uint64 `json:"countMismatch,omitempty"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "latest", "模式: latest 输出最新快照摘要, export 导出完整快照")
	backend := flag.String("backend", cfg.Snapshot.Backend, "快照后端: pebble 或 postgres")
	path := flag.String("path", cfg.Snapshot.Path, "pebble 数据目录")
	dsn := flag.String("dsn", cfg.Snapshot.DSN, "postgres 连接串")
	schema := flag.String("schema", cfg.Snapshot.Schema, "postgres schema")
	out := flag.String("out", "", "export 模式的输出文件，留空写到标准输出")
	timeout := flag.Duration("timeout", 30*time.Second, "操作超时时间")

	flag.Parse()

	if *mode != "latest" && *mode != "export" {
		flag.Usage()
		log.Fatal("请通过 -mode=latest 或 -mode=export 指定模式")
	}
	if *backend == snapshot.BackendNone || *backend == snapshot.BackendMemory {
		log.Fatalf("后端 %q 没有可读取的持久化快照", *backend)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := snapshot.Open(ctx, snapshot.Options{Backend: *backend, Path: *path, DSN: *dsn, Schema: *schema})
	if err != nil {
		log.Fatalf("打开快照存储失败: %v", err)
	}
	defer store.Close()

	w := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("创建输出文件失败: %v", err)
		}
		defer f.Close()
		w = f
	}

	switch *mode {
	case "latest":
		err = runLatest(ctx, store, w)
	case "export":
		err = runExport(ctx, store, w)
	}
	if err != nil {
		log.Fatalf("%s 失败: %v", *mode, err)
	}
}

func runLatest(ctx context.Context, store snapshot.Store, w io.Writer) error {
	r, err := inspect(ctx, store)
	if err != nil {
		return err
	}
	return writeJSON(w, r)
}

func runExport(ctx context.Context, store snapshot.Store, w io.Writer) error {
	snap, info, err := store.Latest(ctx)
	if err != nil {
		return err
	}
	log.Printf("导出快照 id=%s messages=%d", info.ID, info.Messages)
	return writeJSON(w, snap)
}

// inspect restores the newest snapshot into a scratch store so the numbers
// come from the same code paths the server uses. Stored author counters are
// compared against the messages and reported rather than trusted.
func inspect(ctx context.Context, store snapshot.Store) (report, error) {
	snap, info, err := store.Latest(ctx)
	if err != nil {
		return report{}, err
	}

	r := report{
		Snapshot:      info,
		NextID:        snap.NextID,
		AuthorCounts:  message.CountAuthors(snap.Messages),
		CountMismatch: countMismatch(snap.AuthorCounts, message.CountAuthors(snap.Messages)),
	}

	scratch := snap
	scratch.AuthorCounts = nil
	svc := message.NewService(message.WithClock(func() time.Time { return snap.TakenAt }))
	if err := svc.Restore(ctx, scratch); err != nil {
		return report{}, fmt.Errorf("snapshot %s is inconsistent: %w", info.ID, err)
	}
	r.Stats = svc.GetStats(ctx)

	for _, msg := range snap.Messages {
		if msg.IsTopLevel() {
			r.TopLevel++
		}
	}
	return r, nil
}

// countMismatch lists every author whose stored counter differs from the
// recomputed one, as [stored, actual]. Nil stored counters are not checked.
func countMismatch(stored, actual map[model.Principal]uint64) map[model.Principal][2]uint64 {
	if stored == nil {
		return nil
	}
	var out map[model.Principal][2]uint64
	add := func(author model.Principal) {
		if s, a := stored[author], actual[author]; s != a {
			if out == nil {
				out = make(map[model.Principal][2]uint64)
			}
			out[author] = [2]uint64{s, a}
		}
	}
	for author := range stored {
		add(author)
	}
	for author := range actual {
		add(author)
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
