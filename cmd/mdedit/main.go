package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mgomes/mdedit/internal/config"
	"github.com/mgomes/mdedit/internal/host"
	"github.com/mgomes/mdedit/internal/protocol"
	"github.com/mgomes/mdedit/internal/store"
	"github.com/mgomes/mdedit/internal/transport"
	"github.com/mgomes/mdedit/internal/tui"
	"github.com/mgomes/mdedit/internal/webview"
)

func main() {
	file := flag.String("file", "", "markdown file to edit")
	serve := flag.Bool("serve", false, "serve the document to a remote webview instead of editing here")
	connect := flag.String("connect", "", "connect to a serving host at this websocket URL")
	resetConfig := flag.Bool("reset-config", false, "forget the saved editor preferences")
	recent := flag.Bool("recent", false, "list recently opened documents")
	flag.Parse()

	if *file == "" && flag.NArg() > 0 {
		*file = flag.Arg(0)
	}

	if *connect != "" {
		if err := runConnect(*connect); err != nil {
			fmt.Fprintf(os.Stderr, "Connect failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfgPath, err := config.Path()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get config path: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	dbPath, err := config.DBPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get database path: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close() //nolint:errcheck

	switch {
	case *resetConfig:
		if err := st.ResetOptions(); err != nil {
			fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Editor preferences reset")

	case *recent:
		if err := printRecent(st); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list documents: %v\n", err)
			os.Exit(1)
		}

	case *file != "":
		doc, err := host.OpenDocument(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", *file, err)
			os.Exit(1)
		}
		h := host.New(host.Config{
			Document:   doc,
			Config:     cfg,
			ConfigPath: cfgPath,
			Prefs:      st,
		})
		if *serve {
			err = runServe(h, cfgPath)
		} else {
			err = runEdit(h, cfgPath)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}

	default:
		printUsage()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// startWatcher feeds document, config and stylesheet changes into the host
// loop until ctx is done.
func startWatcher(ctx context.Context, h *host.Host, cfgPath string) (*host.Watcher, error) {
	w, err := host.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w.SetMessageHandler(func(msg string) { log.Print(msg) })
	w.SetEventHandler(func(ev host.Event) {
		h.Post(func() { h.HandleEvent(ev) })
	})

	if err := w.WatchDocument(h.Document().Path()); err != nil {
		w.Stop()
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err == nil {
		if err := w.WatchConfig(cfgPath); err != nil {
			log.Printf("config changes will not be picked up: %v", err)
		}
	}
	h.SetWatcher(w)
	h.WatchStylesheets()

	go func() {
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("watcher stopped: %v", err)
		}
	}()
	return w, nil
}

func logToFile() (func(), error) {
	path, err := config.LogPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := tea.LogToFile(path, "mdedit")
	if err != nil {
		return nil, err
	}
	return func() { _ = f.Close() }, nil
}

// runEdit runs host and webview in one process, linked by an in-process
// pipe. The terminal is the webview panel.
func runEdit(h *host.Host, cfgPath string) error {
	closeLog, err := logToFile()
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	hostEnd, viewEnd := transport.Pipe()
	defer hostEnd.Close() //nolint:errcheck
	h.SetSender(hostEnd)
	h.SetActive(true)

	watcher, err := startWatcher(ctx, h, cfgPath)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	model := tui.NewModel(tui.Config{
		Sender: viewEnd,
		Title:  h.Title(),
		OnFocus: func(active bool) {
			h.Post(func() { h.SetActive(active) })
		},
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus(), tea.WithContext(ctx))

	h.SetNotificationHandler(func(n host.Notification) {
		go program.Send(tui.NotifyMsg{Text: n.Text, Error: n.Level == host.LevelError})
	})
	h.SetTitleHandler(func(title string) {
		go program.Send(tui.TitleMsg{Title: title})
	})

	go func() {
		if err := h.Run(ctx, hostEnd.Receive()); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("host loop stopped: %v", err)
		}
	}()
	go listen(ctx, program, viewEnd)

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func listen(ctx context.Context, program *tea.Program, ch transport.Channel) {
	err := webview.Listen(ctx, ch.Receive(), func(m protocol.Message) {
		program.Send(tui.HostMessageMsg{Message: m})
	})
	if err == nil {
		program.Send(tui.DisconnectedMsg{})
	}
}

// runServe hosts the document for webviews connecting over websocket. A new
// connection replaces the previous one.
func runServe(h *host.Host, cfgPath string) error {
	ctx, cancel := signalContext()
	defer cancel()

	h.SetNotificationHandler(func(n host.Notification) {
		if n.Level == host.LevelError {
			fmt.Fprintln(os.Stderr, n.Text)
			return
		}
		fmt.Println(n.Text)
	})
	h.SetTitleHandler(func(title string) { log.Printf("document: %s", title) })

	watcher, err := startWatcher(ctx, h, cfgPath)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	server := transport.NewServer()
	defer server.Close() //nolint:errcheck
	httpServer := &http.Server{
		Addr:              h.Config().ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server: %v", err)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	// Connections come and go; the loop outlives them and reads only posted work.
	go func() {
		if err := h.Run(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("host loop stopped: %v", err)
		}
	}()

	fmt.Printf("Serving %s on ws://%s%s\n", h.Document().Path(), httpServer.Addr, transport.Path)
	fmt.Println("Type 'find' or 'replace' to open the panel's find dialog")
	go readCommands(os.Stdin, h)

	for {
		ch, err := server.Accept(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println("\nStopping...")
				return nil
			}
			return err
		}
		h.Post(func() {
			h.SetSender(ch)
			h.SetActive(true)
		})
		go func() {
			for m := range ch.Receive() {
				h.Post(func() { h.Handle(m) })
			}
		}()
	}
}

// readCommands turns stdin lines into host commands for the connected panel.
func readCommands(r io.Reader, h *host.Host) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "find":
			h.Post(func() { h.OpenFindDialog(false) })
		case "replace":
			h.Post(func() { h.OpenFindDialog(true) })
		case "":
		default:
			fmt.Println("unknown command, expected 'find' or 'replace'")
		}
	}
}

// runConnect is a webview panel attached to a remote host.
func runConnect(url string) error {
	closeLog, err := logToFile()
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	dialCtx, done := context.WithTimeout(ctx, 10*time.Second)
	ch, err := transport.Dial(dialCtx, url)
	done()
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	model := tui.NewModel(tui.Config{Sender: ch, Title: url})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	go listen(ctx, program, ch)

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func printRecent(st *store.Store) error {
	docs, err := st.RecentDocuments(20)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents opened yet")
		return nil
	}
	for _, d := range docs {
		opened := time.Unix(d.OpenedAt, 0).Format("2006-01-02 15:04")
		fmt.Printf("%s  %s\n", opened, d.Path)
	}
	return nil
}

func printUsage() {
	fmt.Println("mdedit - Markdown editor")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  mdedit notes.md                      Edit a document in the terminal")
	fmt.Println("  mdedit -serve notes.md               Serve a document to a remote panel")
	fmt.Println("  mdedit -connect ws://host:7412/ws    Attach a panel to a serving host")
	fmt.Println("  mdedit -recent                       List recently opened documents")
	fmt.Println("  mdedit -reset-config                 Forget saved editor preferences")
	fmt.Println()
}
