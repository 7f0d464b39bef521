// Command embedctl is the operator CLI for embedding sets: refresh,
// garbage-collect, and inspect health against a running store, plus a raw
// embed subcommand for hitting the configured provider directly without the
// daemon.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"noteforge/internal/config"
	"noteforge/internal/embedset"
	"noteforge/internal/store"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "embed":
		runEmbed(os.Args[2:])
	case "refresh":
		runSetCommand(os.Args[2:], "refresh")
	case "gc":
		runSetCommand(os.Args[2:], "gc")
	case "health":
		runSetCommand(os.Args[2:], "health")
	case "list":
		runList()
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: embedctl <embed|refresh|gc|health|list> [args]")
	fmt.Fprintln(os.Stderr, "  embed -text=... | -stdin   embed raw text via the configured provider")
	fmt.Fprintln(os.Stderr, "  refresh -slug=<slug>       re-evaluate an embedding set's membership")
	fmt.Fprintln(os.Stderr, "  gc -slug=<slug>            prune orphaned memberships/embeddings")
	fmt.Fprintln(os.Stderr, "  health -slug=<slug>        print the set's health score")
	fmt.Fprintln(os.Stderr, "  list                       list all embedding sets")
}

func runSetCommand(args []string, verb string) {
	fs := flag.NewFlagSet(verb, flag.ExitOnError)
	slug := fs.String("slug", "", "embedding set slug")
	_ = fs.Parse(args)
	if *slug == "" {
		log.Fatalf("%s: -slug is required", verb)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	mgr, err := store.NewPostgresManager(ctx, cfg.Database.DSN, cfg.Inference.EmbeddingDimension)
	if err != nil {
		log.Fatalf("connect store: %v", err)
	}
	defer mgr.Close()

	sink, err := embedset.NewClickHouseSink(ctx, cfg.Analytics)
	if err != nil {
		log.Printf("clickhouse analytics unavailable: %v", err)
		sink = embedset.NopSink{}
	}
	defer sink.Close()
	engine := embedset.NewEngineWithSink(mgr, sink)

	set, err := mgr.EmbeddingSets.GetBySlug(ctx, *slug)
	if err != nil {
		log.Fatalf("load embedding set %q: %v", *slug, err)
	}

	switch verb {
	case "refresh":
		result, err := engine.Refresh(ctx, *slug)
		if err != nil {
			log.Fatalf("refresh: %v", err)
		}
		printJSON(result)
	case "gc":
		result, err := engine.GarbageCollect(ctx, set.ID)
		if err != nil {
			log.Fatalf("gc: %v", err)
		}
		printJSON(result)
	case "health":
		score, err := engine.Health(ctx, set.ID)
		if err != nil {
			log.Fatalf("health: %v", err)
		}
		printJSON(map[string]any{"slug": *slug, "health_score": score})
	}
}

func runList() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	mgr, err := store.NewPostgresManager(ctx, cfg.Database.DSN, cfg.Inference.EmbeddingDimension)
	if err != nil {
		log.Fatalf("connect store: %v", err)
	}
	defer mgr.Close()

	sets, err := mgr.EmbeddingSets.List(ctx)
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	printJSON(sets)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode: %v", err)
	}
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func runEmbed(args []string) {
	fs := flag.NewFlagSet("embed", flag.ExitOnError)
	model := fs.String("model", "", "override model")
	text := fs.String("text", "", "text to embed (use -stdin to read from STDIN)")
	stdin := fs.Bool("stdin", false, "read entire STDIN as input text")
	_ = fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *model != "" {
		cfg.Embedding.Model = *model
	}
	if cfg.Embedding.APIKey == "" {
		log.Fatal("EMBED_API_KEY not set (set in .env, environment, or config.yaml)")
	}

	var input string
	if *stdin {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("read stdin: %v", err)
		}
		input = string(b)
	} else {
		input = *text
	}
	if input == "" {
		log.Fatal("no input provided; use -text or -stdin")
	}

	reqBody, _ := json.Marshal(embedReq{Model: cfg.Embedding.Model, Input: []string{input}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Embedding.Timeout)*time.Second)
	defer cancel()
	url := cfg.Embedding.BaseURL + cfg.Embedding.Path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		log.Fatalf("new request: %v", err)
	}

	if cfg.Embedding.APIHeader == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+cfg.Embedding.APIKey)
	} else {
		req.Header.Set(cfg.Embedding.APIHeader, cfg.Embedding.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("http: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		log.Fatalf("embeddings error: %s: %s", resp.Status, string(b))
	}
	var er embedResp
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		log.Fatalf("decode: %v", err)
	}
	if len(er.Data) == 0 {
		log.Fatal("no data returned")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(er.Data[0].Embedding); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
