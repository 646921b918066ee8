package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/crystal-mush/mushchat/pkg/archive"
	"github.com/crystal-mush/mushchat/pkg/boltstore"
	"github.com/crystal-mush/mushchat/pkg/events"
	"github.com/crystal-mush/mushchat/pkg/gamedb"
	"github.com/crystal-mush/mushchat/pkg/server"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("CHAT_CONF", ""), "Path to chat config file (env: CHAT_CONF)")
	boltPath := flag.String("bolt", envDefault("CHAT_BOLT", ""), "Path to bbolt world database (env: CHAT_BOLT)")
	chatDB := flag.String("chatdb", envDefault("CHAT_DB", ""), "Path to channel snapshot file (env: CHAT_DB)")
	sqlDBPath := flag.String("sqldb", envDefault("CHAT_SQLDB", ""), "Path to SQLite scrollback archive (env: CHAT_SQLDB)")
	comsysDB := flag.String("comsysdb", envDefault("CHAT_COMSYSDB", ""), "Path to mod_comsys.db to import into an empty directory (env: CHAT_COMSYSDB)")
	metricsAddr := flag.String("metrics", envDefault("CHAT_METRICS", ""), "Address to serve /metrics on (env: CHAT_METRICS)")
	restorePath := flag.String("restore", "", "Restore data files from a backup archive before starting")
	restart := flag.Bool("restart", os.Getenv("CHAT_RESTART") == "true", "Keep channel gags when loading the snapshot (env: CHAT_RESTART)")
	flag.Parse()

	// Load config if specified, otherwise use defaults
	cc := server.DefaultChatConf()
	if *confFile != "" {
		var err error
		cc, err = server.LoadChatConf(*confFile)
		if err != nil {
			log.Fatalf("Error loading chat config: %v", err)
		}
		log.Printf("Loaded chat config from %s", *confFile)
	}

	// Command-line flags override config file values
	if *boltPath != "" {
		cc.Bolt = *boltPath
	}
	if *chatDB != "" {
		cc.ChatDB = *chatDB
	}
	if *sqlDBPath != "" {
		cc.SQLDB = *sqlDBPath
	}
	if *metricsAddr != "" {
		cc.MetricsAddr = *metricsAddr
	}

	if *restorePath != "" {
		res, err := archive.Restore(archive.RestoreParams{
			ArchivePath:  *restorePath,
			SnapshotDest: cc.ChatDB,
			BoltDest:     cc.Bolt,
			SQLDest:      cc.SQLDB,
		})
		if err != nil {
			log.Fatalf("Error restoring %s: %v", *restorePath, err)
		}
		for _, w := range res.Warnings {
			log.Printf("WARNING: restore: %s", w)
		}
		log.Printf("Restored %d files from %s", res.FilesRestored, *restorePath)
	}

	db := gamedb.NewDatabase()
	var store *boltstore.Store
	if cc.Bolt != "" {
		var err error
		store, err = boltstore.Open(cc.Bolt)
		if err != nil {
			log.Fatalf("Error opening bolt database: %v", err)
		}
		if store.HasData() {
			log.Printf("Loading world from bbolt: %s", cc.Bolt)
			if err := store.LoadAll(); err != nil {
				log.Fatalf("Error loading from bolt: %v", err)
			}
		}
		db = store.DB()
	}
	if len(db.Objects) == 0 {
		seedWorld(db)
		if store != nil {
			if err := store.ImportFromDatabase(db); err != nil {
				log.Fatalf("Error seeding bolt: %v", err)
			}
		}
	}

	var sqlStore *server.SQLStore
	if cc.SQLDB != "" {
		var err error
		sqlStore, err = server.OpenSQLStore(cc.SQLDB, cc.SQLTimeout)
		if err != nil {
			log.Printf("WARNING: failed to open SQL database %s: %v", cc.SQLDB, err)
			sqlStore = nil
		}
	}

	srv, err := server.NewServer(db, cc, store, sqlStore)
	if err != nil {
		log.Fatalf("Error starting server: %v", err)
	}
	if err := srv.LoadSnapshot(*restart); err != nil {
		log.Fatalf("Error loading channels: %v", err)
	}
	if *comsysDB != "" && srv.Chat.Len() == 0 {
		importComsys(srv, *comsysDB)
	}

	if cc.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", srv.Metrics.Handler())
		go func() {
			log.Printf("Metrics listening on %s", cc.MetricsAddr)
			if err := http.ListenAndServe(cc.MetricsAddr, mux); err != nil {
				log.Printf("metrics: %v", err)
			}
		}()
	}

	if *confFile != "" {
		if err := srv.WatchConf(*confFile); err != nil {
			log.Printf("WARNING: config watcher: %v", err)
		}
	}
	srv.StartBackground()

	out := &consoleWriter{w: os.Stdout}
	srv.Bus.SubscribeGlobal(out)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		runConsole(srv, os.Stdin, out)
		close(done)
	}()
	select {
	case <-sig:
	case <-done:
	}

	if err := srv.Close(); err != nil {
		log.Fatalf("Error during shutdown: %v", err)
	}
	log.Printf("Shutdown complete")
}

// seedWorld creates the minimal world of a fresh install: Limbo and the
// God wizard.
func seedWorld(db *gamedb.Database) {
	db.Add(&gamedb.Object{
		DBRef:    0,
		Name:     "Limbo",
		Location: gamedb.Nothing,
		Owner:    server.God,
		Flags:    [3]int{int(gamedb.TypeRoom), 0, 0},
	})
	db.Add(&gamedb.Object{
		DBRef:    server.God,
		Name:     "Wizard",
		Location: 0,
		Owner:    server.God,
		Flags:    [3]int{int(gamedb.TypePlayer) | gamedb.FlagWizard, 0, 0},
	})
	log.Printf("Seeded empty world with Limbo(#0) and Wizard(%s)", server.God)
}

func importComsys(srv *server.Server, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("WARNING: failed to open comsys database %s: %v", path, err)
		return
	}
	defer f.Close()
	res, err := srv.ImportComsys(f)
	if err != nil {
		log.Printf("WARNING: comsys import failed: %v", err)
		return
	}
	log.Printf("Imported %d channels from %s", res.Channels, path)
}

// consoleWriter prints every delivery addressed to a player.
type consoleWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (c *consoleWriter) Receive(ev events.Event) {
	if ev.Player == gamedb.Nothing {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s> %s\n", ev.Player, ev.Text)
}

func (c *consoleWriter) Closed() bool { return false }

func (c *consoleWriter) println(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, text)
}

// runConsole reads "#<dbref> <command>" lines. The commands "connect",
// "connect hidden" and "QUIT" open and close sessions. A bare "save"
// writes the snapshot and a bare "backup" writes an archive.
func runConsole(srv *server.Server, r io.Reader, out *consoleWriter) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "save":
			if err := srv.Save(); err != nil {
				out.println("save failed: " + err.Error())
			} else {
				out.println("saved")
			}
			continue
		case line == "backup":
			if path, err := srv.Backup(); err != nil {
				out.println("backup failed: " + err.Error())
			} else {
				out.println("backup written to " + path)
			}
			continue
		case line[0] != '#':
			out.println("usage: #<dbref> <command>")
			continue
		}

		refText, cmd, _ := strings.Cut(line[1:], " ")
		n, err := strconv.Atoi(refText)
		if err != nil {
			out.println("usage: #<dbref> <command>")
			continue
		}
		player := gamedb.DBRef(n)
		cmd = strings.TrimSpace(cmd)

		switch strings.ToLower(cmd) {
		case "connect", "connect hidden":
			if err := srv.Connect(player, strings.HasSuffix(strings.ToLower(cmd), "hidden")); err != nil {
				out.println(err.Error())
			}
		case "quit":
			srv.Disconnect(player)
		default:
			srv.Execute(player, cmd)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("console: %v", err)
	}
}
