package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/imclient/internal/errors"
	"github.com/vango-dev/imclient/pkg/notice"
)

func connectCmd(configDir *string) *cobra.Command {
	var debugAddr string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Log in and print live notices",
		Long: `Log in and print every notice the server pushes until interrupted.

When debug.listen is set (or --debug is given) an HTTP server exposes
/metrics, /state and /healthz.

Examples:
  imclient connect
  imclient connect --debug 127.0.0.1:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runConnect(ctx, *configDir, debugAddr)
		},
	}

	cmd.Flags().StringVar(&debugAddr, "debug", "", "Debug HTTP listen address (default from imclient.json)")
	return cmd
}

func runConnect(ctx context.Context, dir, debugAddr string) error {
	a, err := loadApp(ctx, dir, 64)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.login(ctx); err != nil {
		return err
	}
	s := a.client.Session()
	success("Logged in as %s (%d)", s.Nick, s.Account)
	if contacts := a.client.Contacts(); contacts != nil {
		info("%d friends, %d groups", len(contacts.Friends), len(contacts.Groups))
	}

	if debugAddr == "" {
		debugAddr = a.cfg.Debug.Listen
	}

	g, gctx := errgroup.WithContext(ctx)
	if debugAddr != "" {
		srv := &http.Server{Addr: debugAddr, Handler: debugRouter(a.client, a.registry), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			info("Debug server on http://%s", debugAddr)
			if err := srv.ListenAndServe(); !stderrors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		h := a.client.Network()
		for {
			select {
			case ev := <-a.sink.Events():
				printEvent(ev)
			case <-h.Done():
				return fmt.Errorf("session closed: %w", h.Cause())
			case <-gctx.Done():
				return nil
			}
		}
	})

	if err := g.Wait(); err != nil {
		return errors.FromError(err, "E110")
	}
	return nil
}

func printEvent(ev notice.Event) {
	switch e := ev.(type) {
	case *notice.MessageReceived:
		fmt.Printf("[%s] %d -> %d: %s\n", stamp(e.Message.Time), e.Message.From, e.Message.Peer, e.Message.Text)
	case *notice.MessageSynced:
		fmt.Printf("[%s] me -> %d: %s\n", stamp(e.Message.Time), e.Message.Peer, e.Message.Text)
	case *notice.ParseError:
		fmt.Printf("! %v\n", e)
	default:
		fmt.Printf("%s %+v\n", ev.EventType(), ev)
	}
}

func stamp(unix int64) string {
	return time.Unix(unix, 0).Format(time.DateTime)
}
