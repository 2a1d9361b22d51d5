package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/arjvr/landmarkfp/pkg/landmarkfp"
	"github.com/arjvr/landmarkfp/pkg/landmarkfp/matcher"
	"github.com/arjvr/landmarkfp/pkg/logger"
	"github.com/arjvr/landmarkfp/pkg/utils"
)

// Exit codes per the embedding-CLI contract.
const (
	exitMatch         = 0
	exitNoMatch       = 1
	exitUsageError    = 2
	exitCorruptInput  = 3
	exitDatabaseError = 4
)

var (
	dbPath     string
	tempDir    string
	sampleRate int
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("LANDMARKFP_DB_PATH", "landmarkfp.sqlite3"), "Path to the SQLite database file")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("LANDMARKFP_TEMP_DIR", "/tmp"), "Directory for temporary audio files")
	flag.IntVar(&sampleRate, "rate", 22050, "Audio sample rate for processing")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func createService() (landmarkfp.Service, error) {
	if err := utils.MakeDir(tempDir); err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	return landmarkfp.NewService(
		landmarkfp.WithDBPath(dbPath),
		landmarkfp.WithTempDir(tempDir),
		landmarkfp.WithSampleRate(sampleRate),
	)
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(exitUsageError)
	}

	command := args[0]
	log.Infof("executing command: %s", command)

	switch command {
	case "add":
		handleAdd(args[1:])
	case "match":
		os.Exit(handleMatch(args[1:]))
	case "list":
		handleList()
	case "delete":
		handleDelete(args[1:])
	default:
		fmt.Printf("unknown command: %s\n", command)
		printUsage()
		os.Exit(exitUsageError)
	}
}

func handleAdd(args []string) {
	log := logger.GetLogger()

	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	title := addCmd.String("title", "", "Track title (required)")
	artist := addCmd.String("artist", "", "Artist name (required)")
	sourceRef := addCmd.String("ref", "", "Source reference, e.g. a file hash or catalog id (defaults to the audio path)")
	addCmd.Parse(args)

	remaining := addCmd.Args()
	if len(remaining) < 1 {
		fmt.Println("Usage: landmarkfp add <audio_file> --title <title> --artist <artist> [--ref <source_ref>]")
		os.Exit(exitUsageError)
	}
	audioPath := remaining[0]

	if *title == "" || *artist == "" {
		fmt.Println("Error: --title and --artist are required")
		log.Warn("missing required arguments: title and artist")
		os.Exit(exitUsageError)
	}
	if *sourceRef == "" {
		*sourceRef = audioPath
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("failed to create service: %v\n", err)
		log.Errorf("service initialization failed: %v", err)
		os.Exit(exitDatabaseError)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	trackID, err := svc.AddTrack(ctx, audioPath, *title, *artist, *sourceRef)
	if err != nil {
		fmt.Printf("failed to add track: %v\n", err)
		log.Errorf("AddTrack failed: %v", err)
		if isCorruptInput(err) {
			os.Exit(exitCorruptInput)
		}
		os.Exit(exitDatabaseError)
	}

	fmt.Println("Added track to database:")
	fmt.Printf("  ID:     %d\n", trackID)
	fmt.Printf("  Title:  %s\n", *title)
	fmt.Printf("  Artist: %s\n", *artist)
	log.Infof("successfully added track ID=%d", trackID)
}

func handleMatch(args []string) int {
	log := logger.GetLogger()

	matchCmd := flag.NewFlagSet("match", flag.ExitOnError)
	minSupport := matchCmd.Int("min-support", 5, "Minimum vote count for a track to count as a match")
	topK := matchCmd.Int("topk", 5, "Maximum number of ranked matches to display")
	matchCmd.Parse(args)

	remaining := matchCmd.Args()
	if len(remaining) < 1 {
		fmt.Println("Usage: landmarkfp match <audio_file> [--min-support <n>] [--topk <n>]")
		return exitUsageError
	}
	audioPath := remaining[0]

	svc, err := createService()
	if err != nil {
		fmt.Printf("failed to create service: %v\n", err)
		log.Errorf("service initialization failed: %v", err)
		return exitDatabaseError
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	results, status, err := svc.Recognize(ctx, audioPath, matcher.Options{MinSupport: *minSupport, TopK: *topK})
	if err != nil {
		fmt.Printf("failed to match audio: %v\n", err)
		log.Errorf("Recognize failed: %v", err)
		if isCorruptInput(err) {
			return exitCorruptInput
		}
		return exitDatabaseError
	}

	if status == matcher.Partial {
		fmt.Println("(warning: deadline exceeded mid-scan, ranking reflects a partial scan)")
	}

	if len(results) == 0 {
		fmt.Println("No matches found")
		log.Info("no matches found")
		return exitNoMatch
	}

	fmt.Printf("Found %d match(es):\n\n", len(results))
	for i, r := range results {
		fmt.Printf("%d. %q by %s\n", i+1, r.Title, r.Artist)
		fmt.Printf("   score=%s confidence=%.1f%% offset=%.2fs\n",
			humanize.Comma(int64(r.Score)), r.Confidence, r.OffsetSeconds)
	}
	return exitMatch
}

func handleList() {
	log := logger.GetLogger()

	svc, err := createService()
	if err != nil {
		fmt.Printf("failed to create service: %v\n", err)
		log.Errorf("service initialization failed: %v", err)
		os.Exit(exitDatabaseError)
	}
	defer svc.Close()

	tracks, err := svc.ListTracks()
	if err != nil {
		fmt.Printf("failed to list tracks: %v\n", err)
		log.Errorf("ListTracks failed: %v", err)
		os.Exit(exitDatabaseError)
	}

	if len(tracks) == 0 {
		fmt.Println("No tracks in database")
		return
	}

	fmt.Printf("%d track(s):\n\n", len(tracks))
	for _, t := range tracks {
		fmt.Printf("%d. %q by %s (ref=%s)\n", t.ID, t.Title, t.Artist, t.SourceRef)
		fmt.Printf("   ingested %s\n", humanize.Time(t.IngestedAt))
	}
}

func handleDelete(args []string) {
	log := logger.GetLogger()

	if len(args) < 1 {
		fmt.Println("Usage: landmarkfp delete <track_id>")
		os.Exit(exitUsageError)
	}

	trackID, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Printf("invalid track id: %v\n", err)
		os.Exit(exitUsageError)
	}

	svc, err := createService()
	if err != nil {
		fmt.Printf("failed to create service: %v\n", err)
		log.Errorf("service initialization failed: %v", err)
		os.Exit(exitDatabaseError)
	}
	defer svc.Close()

	track, err := svc.GetTrack(uint32(trackID))
	if err != nil {
		fmt.Printf("track not found (ID: %d)\n", trackID)
		log.Warnf("track %d not found: %v", trackID, err)
		os.Exit(exitDatabaseError)
	}

	if err := svc.DeleteTrack(uint32(trackID)); err != nil {
		fmt.Printf("failed to delete track: %v\n", err)
		log.Errorf("DeleteTrack failed: %v", err)
		os.Exit(exitDatabaseError)
	}

	fmt.Printf("Deleted track %d (%q by %s)\n", track.ID, track.Title, track.Artist)
	log.Infof("deleted track ID=%d", track.ID)
}

func isCorruptInput(err error) bool {
	return errors.Is(err, landmarkfp.ErrCorruptInput)
}

func printUsage() {
	fmt.Println("landmarkfp - acoustic landmark fingerprinting")
	fmt.Println("\nGlobal options:")
	fmt.Println("  --db <path>    SQLite database path (env: LANDMARKFP_DB_PATH)")
	fmt.Println("  --temp <dir>   Temp directory, created if missing (env: LANDMARKFP_TEMP_DIR)")
	fmt.Println("  --rate <hz>    Sample rate for processing (default 22050)")
	fmt.Println("\nCommands:")
	fmt.Println("  add <audio_file> --title <t> --artist <a> [--ref <source_ref>]")
	fmt.Println("  match <audio_file> [--min-support <n>] [--topk <n>]")
	fmt.Println("  list")
	fmt.Println("  delete <track_id>")
}
