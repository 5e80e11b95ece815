package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"vidyabot_backend/internal/util"
	"vidyabot_backend/pkg/transcription"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newTranscribeCmd(opts *rootOptions) *cobra.Command {
	var normalize bool
	cmd := &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Transcribe one audio file with the configured recognizer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			audio, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if cfg.Speech.MaxAudioBytes > 0 && int64(len(audio)) > cfg.Speech.MaxAudioBytes {
				return fmt.Errorf("%w: %d bytes", util.ErrAudioTooLarge, len(audio))
			}

			poolCfg := transcription.Config{
				Workers:    1,
				TempDir:    cfg.Speech.TempDir,
				JobTimeout: cfg.Speech.JobTimeout(),
			}
			if normalize || cfg.Speech.NormalizeAudio {
				poolCfg.Transcoder = util.NormalizeAudio
			}
			pool, err := transcription.NewPool(
				transcription.NewWhisperRecognizer(cfg.Speech.BinaryPath, cfg.Speech.ModelPath, cfg.Speech.Language),
				poolCfg,
			)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			text, err := pool.Transcribe(ctx, audio)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.New(color.FgRed).Sprint("FAILED"), err)
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().BoolVar(&normalize, "normalize", false, "convert the input to 16kHz mono WAV with ffmpeg first")
	return cmd
}
