package export

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DocSpring/chattomap/internal/chatdb"
	"github.com/DocSpring/chattomap/internal/contacts"
)

// Exporter streams a selected set of chats out of the message store into a
// compressed archive. It is single-threaded and must not be invoked twice
// concurrently against the same connection.
type Exporter struct {
	db     *chatdb.DB
	idx    *contacts.Index
	logger *zap.Logger
	sink   ProgressSink
}

// NewExporter builds an exporter. A nil sink discards progress.
func NewExporter(db *chatdb.DB, idx *contacts.Index, logger *zap.Logger, sink ProgressSink) *Exporter {
	if sink == nil {
		sink = NopSink
	}
	return &Exporter{db: db, idx: idx, logger: logger, sink: sink}
}

// Result is the outcome of one export run. Dir owns the temporary directory
// holding the archive and must outlive any use of ArchivePath.
type Result struct {
	RunID         uuid.UUID
	ArchivePath   string
	Dir           *TempDir
	TotalMessages int
	ChatCount     int
}

// Export runs the full pipeline for the selected chat ids: resolve
// participants, stream messages once, group per chat, and write the archive.
// Any failure aborts the whole run; there is no partial success.
func (e *Exporter) Export(ctx context.Context, chatIDs []int) (*Result, error) {
	e.sink.Emit(Progress{Stage: StageInitializing, Percent: 0, Message: "Connecting to iMessage database..."})

	handles, err := e.db.CacheHandles()
	if err != nil {
		return nil, fmt.Errorf("load handles: %w", err)
	}
	canonical := chatdb.DedupeHandles(handles)
	identifiers := chatdb.HandleIdentifiers(handles)
	participants := e.idx.BuildParticipantsMap(identifiers, canonical)

	chats, err := e.db.CacheChats()
	if err != nil {
		return nil, fmt.Errorf("load chats: %w", err)
	}

	e.sink.Emit(Progress{Stage: StagePreparing, Percent: 5, Message: "Counting messages..."})

	total, err := e.db.CountMessages(chatIDs)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	denominator := total
	if denominator < 1 {
		denominator = 1
	}

	e.sink.Emit(Progress{
		Stage:   StageExporting,
		Percent: 10,
		Message: fmt.Sprintf("Exporting %d messages...", total),
	})

	messagesByChat := make(map[int][]ExportedMessage)
	processed := 0

	err = e.db.StreamMessages(ctx, chatIDs, func(m chatdb.Message) error {
		sender := senderName(m, identifiers, canonical, participants)

		// Attachment-only and undecodable messages have empty text: they
		// are dropped from output but still count as processed.
		if m.Text != "" {
			messagesByChat[m.ChatID] = append(messagesByChat[m.ChatID], ExportedMessage{
				Timestamp: chatdb.FormatTimestamp(m.Date),
				Sender:    sender,
				IsFromMe:  m.IsFromMe,
				Text:      m.Text,
			})
		}

		processed++
		if processed%100 == 0 {
			percent := 10 + processed*70/denominator
			if percent > 80 {
				percent = 80
			}
			e.sink.Emit(Progress{
				Stage:   StageExporting,
				Percent: percent,
				Message: fmt.Sprintf("Processed %d of %d messages", processed, total),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stream messages: %w", err)
	}

	e.sink.Emit(Progress{Stage: StagePackaging, Percent: 85, Message: "Creating export package..."})

	exported := buildExportedChats(chats, messagesByChat)

	runID := uuid.New()
	dir, err := newTempDir(runID)
	if err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	archivePath, err := writeArchive(dir.Path(), exported, processed)
	if err != nil {
		dir.Close()
		return nil, fmt.Errorf("write archive: %w", err)
	}

	e.logger.Info("export complete",
		zap.String("run_id", runID.String()),
		zap.Int("chats", len(exported)),
		zap.Int("messages", processed))

	e.sink.Emit(Progress{
		Stage:   StageComplete,
		Percent: 100,
		Message: fmt.Sprintf("Exported %d messages from %d chats", processed, len(exported)),
	})

	return &Result{
		RunID:         runID,
		ArchivePath:   archivePath,
		Dir:           dir,
		TotalMessages: processed,
		ChatCount:     len(exported),
	}, nil
}

// buildExportedChats turns the grouped messages into archive entries, sorted
// by message count descending. Chats that yielded no exportable messages are
// absent. The pre-sort order is ascending chat id, so ties are stable within
// one run.
func buildExportedChats(chats map[int]chatdb.Chat, messagesByChat map[int][]ExportedMessage) []ExportedChat {
	chatIDs := make([]int, 0, len(messagesByChat))
	for id := range messagesByChat {
		chatIDs = append(chatIDs, id)
	}
	sort.Ints(chatIDs)

	exported := make([]ExportedChat, 0, len(chatIDs))
	for _, id := range chatIDs {
		messages := messagesByChat[id]
		chat, known := chats[id]

		name := chat.DisplayName
		if name == "" {
			name = fmt.Sprintf("Chat %d", id)
		}
		service := chat.ServiceName
		if !known || service == "" {
			service = "Unknown"
		}

		exported = append(exported, ExportedChat{
			Meta: ExportedChatMeta{
				Name:         name,
				Identifier:   chat.Identifier,
				Service:      service,
				MessageCount: len(messages),
			},
			Messages: messages,
		})
	}

	sort.SliceStable(exported, func(i, j int) bool {
		return len(exported[i].Messages) > len(exported[j].Messages)
	})
	return exported
}

// senderName resolves who sent a message: "Me" for own messages, then the
// participants map via the canonical id, then the raw handle identifier,
// then "Unknown".
func senderName(m chatdb.Message, identifiers map[int]string, canonical map[int]int, participants map[int]contacts.Name) string {
	if m.IsFromMe {
		return "Me"
	}
	if canonicalID, ok := canonical[m.HandleID]; ok {
		if name, ok := participants[canonicalID]; ok {
			if display := name.DisplayName(); display != "" {
				return display
			}
		}
	}
	if identifier, ok := identifiers[m.HandleID]; ok {
		return identifier
	}
	return "Unknown"
}
