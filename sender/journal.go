package sender

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	nferrors "github.com/gaxoblanco/sifen-go/errors"
)

// journalEntry is one append-only submission record (spec §6, "Persisted
// state"). Grounded on the teacher's checkpoint-log idiom for journaled
// state (a single append-only file, one JSON record per update, replayed
// rather than rewritten in place) — generalized here from a
// full-state-plus-updates checkpoint format to one flat record per
// submission, since the journal only ever needs to answer "what happened to
// fingerprint X", never to reconstruct an in-memory structure from scratch.
type journalEntry struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	CDC         string    `json:"cdc,omitempty"`
	Status      string    `json:"status,omitempty"`
	Success     bool      `json:"success"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// journal appends one JSON record per line to a file, fsyncing after every
// write so a crash never loses a submission's outcome mid-append.
type journal struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

func openJournal(path string) (*journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nferrors.NewSystemError("failed to open submission journal", err)
	}
	return &journal{file: f, enc: json.NewEncoder(f)}, nil
}

func (j *journal) append(entry journalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(entry); err != nil {
		return nferrors.NewSystemError("failed to append to submission journal", err)
	}
	return j.file.Sync()
}

func (j *journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
