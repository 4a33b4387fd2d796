// Command ema-dialogue runs a spoken dialogue session on the local microphone
// and speaker.
//
//	ema-dialogue script -prompts prompts.json [-url ws://agent]
//	ema-dialogue live -url ws://agent
//	ema-dialogue schema
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	orchestration "github.com/koscakluka/ema-dialogue/core"
	"github.com/koscakluka/ema-dialogue/core/audio/miniaudio"
	"github.com/koscakluka/ema-dialogue/core/audio/portaudio"
	"github.com/koscakluka/ema-dialogue/core/channel"
	events "github.com/koscakluka/ema-dialogue/core/events"
	"github.com/koscakluka/ema-dialogue/core/history"
	"github.com/koscakluka/ema-dialogue/core/prompts"
	"github.com/koscakluka/ema-dialogue/core/protocol"
	sttdeepgram "github.com/koscakluka/ema-dialogue/core/speechtotext/deepgram"
	ttsdeepgram "github.com/koscakluka/ema-dialogue/core/texttospeech/deepgram"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const portaudioBufferSize = 1024

var logger = otelslog.NewLogger("github.com/koscakluka/ema-dialogue/cmd/ema-dialogue")

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "script":
		err = runScript(ctx, os.Args[2:])
	case "live":
		err = runLive(ctx, os.Args[2:])
	case "schema":
		err = printSchema(os.Stdout)
	default:
		usage(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ema-dialogue: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: ema-dialogue <script|live|schema> [flags]")
}

func printSchema(w io.Writer) error {
	schema, err := protocol.SchemaJSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", schema)
	return err
}

func runScript(ctx context.Context, args []string) error {
	cfg, err := loadConfig("script", args)
	if err != nil {
		return err
	}

	list, err := readPrompts(cfg.PromptsFile)
	if err != nil {
		return err
	}

	var ch channel.Channel
	if cfg.AgentURL != "" {
		if ch, err = channel.Dial(ctx, cfg.AgentURL); err != nil {
			return err
		}
	} else {
		local, remote := channel.NewMemoryPair()
		go printMessages(os.Stdout, remote)
		ch = local
	}

	session, answers, err := runSession(ctx, cfg, ch, orchestration.ModeScripted, orchestration.WithPrompts(list))
	if err != nil {
		return err
	}

	for _, prompt := range answers {
		fmt.Printf("%s\t%s\t%s\n", prompt.ID, prompt.Text, prompt.Answer)
	}
	for _, turn := range session.Turns() {
		if turn.Err != nil {
			logger.Info("turn without answer", "prompt", turn.PromptID, "outcome", string(turn.Outcome), "error", turn.Err)
		}
	}
	return nil
}

func runLive(ctx context.Context, args []string) error {
	cfg, err := loadConfig("live", args)
	if err != nil {
		return err
	}

	ch, err := channel.Dial(ctx, cfg.AgentURL)
	if err != nil {
		return err
	}

	_, _, err = runSession(ctx, cfg, ch, orchestration.ModeLive)
	return err
}

// runSession runs a session until it completes, ends, loses its channel or
// ctx is done.
func runSession(ctx context.Context, cfg config, ch channel.Channel, mode orchestration.Mode, opts ...orchestration.SessionOption) (*orchestration.Session, []prompts.Prompt, error) {
	speech, err := newSpeechStack(cfg)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	defer speech.Close()

	record := func(events.Event) {}
	if cfg.HistoryPath != "" {
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			_ = ch.Close()
			return nil, nil, err
		}
		defer store.Close()

		sessionID, err := store.StartSession(ctx, mode.String())
		if err != nil {
			_ = ch.Close()
			return nil, nil, err
		}
		record = store.Recorder(ctx, sessionID)
	}

	done := make(chan struct{})
	var finish sync.Once
	onEvent := func(event events.Event) {
		printEvent(os.Stderr, event)
		record(event)
		switch e := event.(type) {
		case events.SessionCompleted, events.SessionEnded:
			finish.Do(func() { close(done) })
		case events.SessionStateChanged:
			if e.State != string(channel.StateConnected) {
				finish.Do(func() { close(done) })
			}
		}
	}

	opts = append([]orchestration.SessionOption{
		orchestration.WithRecognizer(speech.recognizer),
		orchestration.WithSynthesizer(speech.synthesizer),
		orchestration.WithChannel(ch),
		orchestration.WithTurnConfig(cfg.Turn),
		orchestration.WithLanguage(cfg.Language),
		orchestration.WithEventCallback(onEvent),
		orchestration.WithMode(mode),
	}, opts...)

	session, err := orchestration.NewSession(opts...)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}

	if err := session.Start(ctx); err != nil {
		return nil, nil, errors.Join(err, session.Close())
	}

	select {
	case <-done:
	case <-ctx.Done():
	}

	answers := session.Answers()
	if err := session.Close(); err != nil {
		return session, answers, err
	}
	return session, answers, nil
}

func readPrompts(path string) ([]prompts.Prompt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompts: %w", err)
	}
	defer f.Close()

	return prompts.Decode(f)
}

type speechStack struct {
	device      *miniaudio.Client
	microphone  *portaudio.Client
	recognizer  *sttdeepgram.TranscriptionClient
	synthesizer *ttsdeepgram.TextToSpeechClient
}

func newSpeechStack(cfg config) (*speechStack, error) {
	device, err := miniaudio.NewClient(miniaudio.WithSampleRate(cfg.SampleRate))
	if err != nil {
		return nil, err
	}
	stack := &speechStack{device: device}

	var input sttdeepgram.AudioInput = device
	if cfg.Input == inputPortaudio {
		if stack.microphone, err = portaudio.NewClient(portaudioBufferSize); err != nil {
			stack.Close()
			return nil, err
		}
		input = stack.microphone
	}

	if stack.recognizer, err = sttdeepgram.NewTranscriptionClient(input,
		sttdeepgram.WithAPIKey(cfg.DeepgramAPIKey),
	); err != nil {
		stack.Close()
		return nil, err
	}

	if stack.synthesizer, err = ttsdeepgram.NewTextToSpeechClient(device,
		ttsdeepgram.WithAPIKey(cfg.DeepgramAPIKey),
		ttsdeepgram.WithVoice(ttsdeepgram.Voice(cfg.Voice)),
	); err != nil {
		stack.Close()
		return nil, err
	}

	return stack, nil
}

func (s *speechStack) Close() {
	if s.recognizer != nil {
		if err := s.recognizer.Close(); err != nil {
			logger.Warn("failed to close recognizer", "error", err)
		}
	}
	if s.synthesizer != nil {
		if err := s.synthesizer.Close(); err != nil {
			logger.Warn("failed to close synthesizer", "error", err)
		}
	}
	if s.microphone != nil {
		if err := s.microphone.Close(); err != nil {
			logger.Warn("failed to close microphone", "error", err)
		}
	}
	s.device.Close()
}

// printMessages stands in for an agent when a scripted session has no url.
func printMessages(w io.Writer, ch channel.Channel) {
	for msg := range ch.Receive() {
		switch msg.Type {
		case protocol.TypeUserMessage:
			fmt.Fprintf(w, "< %s\n", msg.Text)
		case protocol.TypeSessionEnded:
			fmt.Fprintf(w, "< session ended: %s\n", msg.Reason)
		default:
			fmt.Fprintf(w, "< %s\n", msg.Type)
		}
	}
}

func printEvent(w io.Writer, event events.Event) {
	switch e := event.(type) {
	case events.SynthesisStarted:
		fmt.Fprintf(w, "agent: %s\n", e.Text)
	case events.TranscriptFinal:
		fmt.Fprintf(w, "user: %s\n", e.Transcript)
	case events.TurnNotice:
		fmt.Fprintf(w, "! %s\n", e.Message)
	case events.TurnResolved:
		fmt.Fprintf(w, "turn %s: %s after %d attempt(s)\n", e.PromptID, e.Outcome, e.Attempts)
	}
}
