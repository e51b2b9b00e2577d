package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	verbose bool
	logger  = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mixsynth",
	Short: "Synthesise, mix and process audio projects",
	Long: `mixsynth renders project snapshots (audio clips and synth tracks) to
WAV, applies region effects to audio files, plays projects live and serves
the same operations over HTTP.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(fxCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(serveCmd)

	renderCmd.Flags().StringVarP(&renderOut, "output", "o", "mixdown.wav", "Output WAV file")
	renderCmd.Flags().StringVar(&renderRoot, "root", "", "Directory clip sources are relative to (default: the project's directory)")
	renderCmd.Flags().Float64VarP(&renderDuration, "duration", "d", 0, "Seconds to render (default: project length)")
	renderCmd.Flags().IntVar(&renderBits, "bits", 16, "Bit depth (16 or 24)")
	renderCmd.Flags().IntVar(&instrumentRate, "instrument-rate", 44100, "Sample rate synth tracks contribute")

	fxCmd.Flags().StringVarP(&fxIn, "input", "i", "", "Input audio file (WAV, AIFF, MP3, Ogg)")
	fxCmd.Flags().StringVarP(&fxOut, "output", "o", "", "Output WAV file")
	fxCmd.Flags().Float64Var(&fxStart, "start", 0, "Region start in seconds")
	fxCmd.Flags().Float64Var(&fxEnd, "end", 0, "Region end in seconds (default: end of file)")
	fxCmd.Flags().StringArrayVarP(&fxParams, "param", "p", nil, "Effect parameter name=value; lists are comma separated")
	fxCmd.Flags().BoolVar(&fxList, "list", false, "List effect kinds and exit")
	fxCmd.MarkFlagsRequiredTogether("input", "output")

	playCmd.Flags().StringVar(&playRoot, "root", "", "Directory clip sources are relative to (default: the project's directory)")
	playCmd.Flags().Float64Var(&playFrom, "from", 0, "Start position in seconds")
	playCmd.Flags().Float64Var(&playVolume, "volume", 1, "Master volume scalar")
	playCmd.Flags().IntVar(&playRate, "sample-rate", 48000, "Output sample rate")

	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().StringVar(&serveRoot, "root", ".", "Directory clip sources are relative to")
	serveCmd.Flags().IntVar(&serveRate, "instrument-rate", 44100, "Sample rate synth tracks contribute")
}
