// Command crystalball asks the fortune service for a fortune from the terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/capture"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/client"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/delivery"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/logger"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/session"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/sprite"
)

var orb = []string{"( o   )", "(  o  )", "(   o )", "(  o  )"}

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("CRYSTALBALL_SERVER", "http://localhost:8080"), "fortune service base URL")
	save := flag.Bool("save", false, "save the fortune card as an image")
	flag.Parse()

	log := logger.New(envOr("CRYSTALBALL_LOG_LEVEL", "warn"), "text")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	saveDir := ""
	if *save {
		saveDir = "."
	}
	if err := run(ctx, os.Stdin, os.Stdout, client.New(*server, nil, log), saveDir); err != nil {
		log.Error("crystal ball failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// lockedWriter serializes the animator's redraws with regular output.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// run asks the three questions, shows the fortune and, when saveDir is set,
// writes the rendered card there.
func run(ctx context.Context, in io.Reader, w io.Writer, c *client.Client, saveDir string) error {
	out := &lockedWriter{w: w}
	sess := session.New()
	scanner := bufio.NewScanner(in)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return ""
		}
		return strings.TrimSpace(scanner.Text())
	}

	sess.SetAnswers(models.UserAnswers{
		Color: ask("What is your favorite color? "),
		Mood:  ask("How are you feeling today? "),
		Dream: ask("What did you dream about last night? "),
	})

	answers := sess.BeginGeneration()
	done := make(chan struct{})
	ball := sprite.New(len(orb), len(orb)*2, 8)
	ball.OnActionComplete = func() {
		sess.EndGeneration()
		close(done)
	}
	ball.SetPlaying(true)
	ball.Start(func(f sprite.Frame) {
		fmt.Fprintf(out, "\r%s gazing...", orb[f.Index%len(orb)])
	})

	sess.SetFortune(c.RequestFortune(ctx, answers))
	select {
	case <-done:
	case <-ctx.Done():
	}
	ball.Stop()
	fmt.Fprintf(out, "\r%s\n\n%s\n", strings.Repeat(" ", 20), sess.State().Fortune)

	if saveDir == "" {
		return nil
	}
	return saveCard(ctx, out, c, sess, answers, saveDir)
}

func saveCard(ctx context.Context, out io.Writer, c *client.Client, sess *session.Session, answers models.UserAnswers, dir string) error {
	release, err := sess.BeginCapture()
	if err != nil {
		return err
	}
	defer release()

	st := sess.State()
	req := client.CaptureRequest{
		Fortune:     st.Fortune,
		UserAnswers: answers,
		Options:     &capture.Options{Format: capture.FormatPNG},
	}

	sess.BeginShare()
	resp, err := c.Capture(ctx, req)
	if err != nil {
		sess.CompleteShare("", err)
		if client.IsStatus(err, http.StatusConflict) {
			return errors.New("another capture is already running, try again in a moment")
		}
		return err
	}
	sess.CompleteShare(resp.ShareURL, nil)

	_, blob, err := capture.DecodeDataURL(resp.DataURL)
	if err != nil {
		return err
	}
	name := delivery.Filename(capture.FormatPNG)
	if resp.ContentType == capture.FormatJPEG.ContentType() {
		name = delivery.Filename(capture.FormatJPEG)
	}
	name = filepath.Join(dir, name)
	if err := os.WriteFile(name, blob, 0o644); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	fmt.Fprintf(out, "\nSaved %s\nShare: %s\n", name, sess.State().ShareURL)
	if resp.Links.Facebook != "" {
		fmt.Fprintf(out, "Facebook: %s\nX: %s\n", resp.Links.Facebook, resp.Links.X)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
