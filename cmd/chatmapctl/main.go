package main

import (
	"archive/zip"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DocSpring/chattomap/internal/chatdb"
	"github.com/DocSpring/chattomap/internal/config"
	"github.com/DocSpring/chattomap/internal/contacts"
	"github.com/DocSpring/chattomap/internal/export"
	"github.com/DocSpring/chattomap/internal/lock"
	"github.com/DocSpring/chattomap/internal/logging"
	"github.com/DocSpring/chattomap/internal/paths"
	"github.com/DocSpring/chattomap/internal/store"
	"github.com/DocSpring/chattomap/internal/upload"
)

func main() {
	dbFlag := flag.String("db", "", "iMessage database path (overrides config)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	verboseFlag := flag.Bool("verbose", false, "verbose output and debug logging")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.LoadOrDefault(paths.ConfigPath())
	if *dbFlag != "" {
		cfg.ChatDBPath = *dbFlag
	}

	logger := newLogger(*verboseFlag)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	switch args[0] {
	case "list-chats":
		cmdListChats(cfg, logger, args[1:], *jsonFlag, *verboseFlag)
	case "contacts":
		cmdContacts(cfg, logger)
	case "check-access":
		cmdCheckAccess(cfg)
	case "export":
		cmdExport(ctx, cfg, logger, args[1:])
	case "upload":
		cmdUpload(ctx, cfg, logger, args[1:])
	case "jobs":
		cmdJobs(args[1:], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: chatmapctl [--db <path>] [--json] [--verbose] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  list-chats [--limit N] [--filter S]   List chats with resolved names")
	fmt.Fprintln(os.Stderr, "  contacts                              Show contacts index size")
	fmt.Fprintln(os.Stderr, "  check-access                          Check iMessage database access")
	fmt.Fprintln(os.Stderr, "  export --chats 1,2,3 [--out FILE]     Export chats to a zip archive")
	fmt.Fprintln(os.Stderr, "  upload --file FILE                    Upload an archive for processing")
	fmt.Fprintln(os.Stderr, "  jobs [--limit N]                      List recorded upload jobs")
}

func newLogger(verbose bool) *zap.Logger {
	if err := paths.EnsureBaseDir(); err != nil {
		return zap.NewNop()
	}
	logger, err := logging.New(paths.LogPath(), verbose)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func openChatDB(cfg *config.Config) *chatdb.DB {
	db, err := chatdb.Open(cfg.ChatDBPath)
	if err != nil {
		fatalf("cannot open iMessage database at %s: %v", cfg.ChatDBPath, err)
	}
	return db
}

func cmdListChats(cfg *config.Config, logger *zap.Logger, args []string, jsonOut, verbose bool) {
	fs := flag.NewFlagSet("list-chats", flag.ExitOnError)
	limit := fs.Int("limit", 0, "maximum number of chats to show")
	filter := fs.String("filter", "", "case-insensitive substring filter on name or identifier")
	_ = fs.Parse(args)

	db := openChatDB(cfg)
	defer func() { _ = db.Close() }()

	idx := contacts.Discover(cfg.AddressBookPath, logger)
	views, err := export.ListChats(db, idx, logger)
	if err != nil {
		fatalf("%v", err)
	}

	if *filter != "" {
		needle := strings.ToLower(*filter)
		filtered := views[:0]
		for _, v := range views {
			if strings.Contains(strings.ToLower(v.DisplayName), needle) ||
				strings.Contains(strings.ToLower(v.Identifier), needle) {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}
	if *limit > 0 && len(views) > *limit {
		views = views[:*limit]
	}

	if jsonOut {
		outputJSON(views)
		return
	}

	fmt.Printf("Found %d chats\n\n", len(views))
	for i, v := range views {
		resolved := ""
		if v.DisplayName != v.Identifier {
			resolved = " *"
		}
		if verbose {
			fmt.Printf("%3d. %s%s\n     ID: %d | Service: %s | Participants: %d | Messages: %d\n",
				i+1, v.DisplayName, resolved, v.ID, v.Service, v.ParticipantCount, v.MessageCount)
		} else {
			fmt.Printf("%3d. %s%s (%s) - %d messages\n",
				i+1, v.DisplayName, resolved, v.Service, v.MessageCount)
		}
	}
	if !verbose && len(views) > 0 {
		fmt.Println("\n(* = contact name resolved)")
		fmt.Println("Use --verbose for more details, --json for JSON output")
	}
}

func cmdContacts(cfg *config.Config, logger *zap.Logger) {
	idx := contacts.Discover(cfg.AddressBookPath, logger)
	fmt.Printf("Contacts index: %d entries\n", idx.Len())
	fmt.Println("The index maps phone numbers and emails to contact names.")
}

func cmdCheckAccess(cfg *config.Config) {
	fmt.Printf("iMessage database path: %s\n", cfg.ChatDBPath)

	if _, err := os.Stat(cfg.ChatDBPath); os.IsNotExist(err) {
		fmt.Println("Status: Database file not found")
		fmt.Println("This may be a non-macOS system or Messages has never been used.")
		os.Exit(1)
	}

	if err := chatdb.CheckAccess(cfg.ChatDBPath); err != nil {
		fmt.Println("Status: Full Disk Access DENIED")
		fmt.Printf("Error: %v\n", err)
		fmt.Println()
		fmt.Println("To grant access:")
		fmt.Println("1. Open System Preferences > Privacy & Security > Full Disk Access")
		fmt.Println("2. Add your terminal application (Terminal, iTerm2, etc.)")
		fmt.Println("3. Restart the terminal and try again")
		os.Exit(1)
	}
	fmt.Println("Status: Full Disk Access GRANTED")
	fmt.Println("The CLI can read the iMessage database.")
}

func cmdExport(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	chatsFlag := fs.String("chats", "", "comma-separated chat ids to export")
	out := fs.String("out", "export.zip", "output archive path")
	_ = fs.Parse(args)

	chatIDs, err := parseChatIDs(*chatsFlag)
	if err != nil {
		fatalf("%v", err)
	}

	l, err := lock.Acquire(paths.BaseDir())
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = l.Release() }()

	db := openChatDB(cfg)
	defer func() { _ = db.Close() }()

	idx := contacts.Discover(cfg.AddressBookPath, logger)
	exp := export.NewExporter(db, idx, logger, export.ProgressFunc(printProgress))

	res, err := exp.Export(ctx, chatIDs)
	if err != nil {
		fatalf("export failed: %v", err)
	}
	defer res.Dir.Close()

	if err := copyFile(res.ArchivePath, *out); err != nil {
		fatalf("write %s: %v", *out, err)
	}
	fmt.Printf("Exported %d messages from %d chats to %s\n", res.TotalMessages, res.ChatCount, *out)
}

func cmdUpload(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	file := fs.String("file", "", "archive to upload")
	_ = fs.Parse(args)

	if *file == "" {
		fatalf("upload requires --file")
	}
	info, err := os.Stat(*file)
	if err != nil {
		fatalf("%v", err)
	}
	chatCount, messageCount := archiveCounts(*file)

	client := upload.New(cfg.ServerBaseURL, logger)

	presign, err := client.Presign(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	err = client.UploadFile(ctx, *file, presign.UploadURL, func(percent int, message string) {
		fmt.Printf("[%3d%%] %s\n", percent, message)
	})
	if err != nil {
		fatalf("%v", err)
	}
	completed, err := client.Complete(ctx, presign.JobID, presign.Key, chatCount, messageCount)
	if err != nil {
		fatalf("%v", err)
	}

	resultsURL := client.ResultsURL(completed.JobID)
	fmt.Printf("Job %s is %s\n", completed.JobID, completed.Status)
	fmt.Printf("Results: %s\n", resultsURL)

	recordJob(&store.Job{
		ID:           uuid.NewString(),
		JobID:        completed.JobID,
		Status:       store.StatusProcessing,
		ChatCount:    chatCount,
		MessageCount: messageCount,
		ArchiveBytes: info.Size(),
		ResultsURL:   resultsURL,
	}, logger)
}

func cmdJobs(args []string, jsonOut bool) {
	fs := flag.NewFlagSet("jobs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "maximum number of jobs to show")
	_ = fs.Parse(args)

	db := openLedger()
	defer func() { _ = db.Close() }()

	jobs, err := db.ListJobs(*limit)
	if err != nil {
		fatalf("%v", err)
	}
	if jsonOut {
		outputJSON(jobs)
		return
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs recorded.")
		return
	}
	for _, j := range jobs {
		created := time.UnixMilli(j.CreatedAt).Format("2006-01-02 15:04")
		fmt.Printf("%-12s %s  %d chats, %d messages\n     %s\n", j.Status, created, j.ChatCount, j.MessageCount, j.ResultsURL)
	}
}

func openLedger() *store.DB {
	if err := paths.EnsureBaseDir(); err != nil {
		fatalf("%v", err)
	}
	db, err := store.Open(paths.LedgerDBPath())
	if err != nil {
		fatalf("%v", err)
	}
	if _, err := db.Migrate(); err != nil {
		_ = db.Close()
		fatalf("migrate ledger: %v", err)
	}
	return db
}

func recordJob(j *store.Job, logger *zap.Logger) {
	db := openLedger()
	defer func() { _ = db.Close() }()
	if err := db.RecordJob(j); err != nil {
		logger.Warn("failed to record job", zap.Error(err))
	}
}

// archiveCounts pulls chat and message totals out of an archive's manifest.
// Zeroes are fine when the manifest cannot be read; the server recounts.
func archiveCounts(path string) (chats, messages int) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return 0, 0
	}
	defer func() { _ = r.Close() }()
	for _, f := range r.File {
		if f.Name != "manifest.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return 0, 0
		}
		var m struct {
			ChatCount     int `json:"chat_count"`
			TotalMessages int `json:"total_messages"`
		}
		err = json.NewDecoder(rc).Decode(&m)
		_ = rc.Close()
		if err != nil {
			return 0, 0
		}
		return m.ChatCount, m.TotalMessages
	}
	return 0, 0
}

func parseChatIDs(s string) ([]int, error) {
	if s == "" {
		return nil, fmt.Errorf("export requires --chats with at least one chat id")
	}
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("export requires --chats with at least one chat id")
	}
	return ids, nil
}

func printProgress(p export.Progress) {
	fmt.Printf("[%3d%%] %s: %s\n", p.Percent, p.Stage, p.Message)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
