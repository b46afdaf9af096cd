// Command pageask is a terminal client for the relay: index a page, then
// ask questions about it in a loop. Conversations persist in a local
// SQLite store, so re-running against the same URL resumes where you
// left off.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/pageai/chat"
	"github.com/hazyhaar/pageai/convo"
	"github.com/hazyhaar/pageai/extract"
	"github.com/hazyhaar/pageai/kvsqlite"
	"github.com/hazyhaar/pageai/provider"
)

func main() {
	relayURL := flag.String("relay", "http://localhost:3001", "relay base URL")
	pageURL := flag.String("url", "", "page URL to index and question")
	providerName := flag.String("provider", "openai", "provider: openai, anthropic, gemini, grok, generic")
	dbPath := flag.String("db", "pageask.db", "local conversation store")
	reindex := flag.Bool("reindex", false, "re-fetch the page even if already indexed")
	flag.Parse()

	if *pageURL == "" {
		fmt.Fprintln(os.Stderr, "usage: pageask -url <page url> [-provider openai] [question...]")
		os.Exit(2)
	}
	name, err := provider.Parse(*providerName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	kv, err := kvsqlite.Open(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer kv.Close()

	ctx := context.Background()
	store := convo.NewStore(kv)
	orch := chat.NewOrchestrator(&chat.RelayDispatcher{BaseURL: *relayURL}, nil)
	sess := chat.NewSession(store, orch)

	if err := sess.Open(ctx, *pageURL); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if sess.Record().Snapshot == nil || *reindex {
		if err := indexViaRelay(ctx, store, *relayURL, *pageURL); err != nil {
			fmt.Fprintln(os.Stderr, "index:", err)
			os.Exit(1)
		}
		if err := sess.Open(ctx, *pageURL); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	fmt.Printf("indexed: %s\n", sess.Record().Snapshot.Title)

	// One-shot mode: question given as arguments.
	if flag.NArg() > 0 {
		ask(ctx, sess, strings.Join(flag.Args(), " "), name)
		return
	}

	// Interactive loop.
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case ":quit", ":q":
			return
		case ":history":
			for _, m := range sess.Record().Messages {
				fmt.Printf("[%s] %s\n", m.Role, m.Content)
			}
			continue
		case ":clear":
			if err := sess.ClearPage(ctx); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			continue
		}
		ask(ctx, sess, line, name)
	}
}

func ask(ctx context.Context, sess *chat.Session, question string, name provider.Name) {
	answer, err := sess.Ask(ctx, question, name)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return
	}
	fmt.Println(answer)
}

// indexViaRelay asks the relay to fetch and digest the page, then stores
// the snapshot locally under the page's key.
func indexViaRelay(ctx context.Context, store *convo.Store, relayURL, pageURL string) error {
	body, err := json.Marshal(map[string]string{"url": pageURL})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, relayURL+"/api/fetch-page", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		HTML    string `json:"html"`
		Title   string `json:"title"`
		Error   string `json:"error"`
		Success bool   `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode relay response: %w", err)
	}
	if !result.Success {
		if result.Error != "" {
			return fmt.Errorf("%s", result.Error)
		}
		return fmt.Errorf("relay returned %d", resp.StatusCode)
	}

	rec, err := store.Load(ctx, pageURL)
	if err != nil {
		return err
	}
	rec.Snapshot = &extract.Snapshot{Title: result.Title, Markdown: result.HTML}
	return store.Save(ctx, rec)
}
