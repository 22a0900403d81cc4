package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// maxRunHistory bounds the persisted run history so the file cannot grow
// without limit on a long-running deployment.
const maxRunHistory = 50

// Tracker persists newsletter run history and feed-item deduplication state
// as JSON files in the data directory.
type Tracker struct {
	runStatus  *RunStatus
	feedStatus *FeedStatus
	dataDir    string
	mutex      sync.RWMutex

	// O(1) lookup index for parsed feed items.
	// Key: feedURL + "\x00" + itemKey
	parsedIndex map[string]struct{}
}

// RunStatus holds the persistent newsletter run history.
type RunStatus struct {
	LastUpdated time.Time   `json:"last_updated"`
	LastSuccess *time.Time  `json:"last_success"`
	LastError   *string     `json:"last_error"`
	Runs        []RunRecord `json:"runs"`
}

// RunRecord describes one newsletter generation cycle.
type RunRecord struct {
	Topic      string    `json:"topic"`
	Recipient  string    `json:"recipient"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	StoryCount int       `json:"story_count"`
	EmailSent  bool      `json:"email_sent"`
	Error      string    `json:"error,omitempty"`
}

// FeedStatus tracks per-feed health and all items already parsed, so restarts
// never resend old stories.
type FeedStatus struct {
	LastUpdated time.Time           `json:"last_updated"`
	Feeds       map[string]FeedInfo `json:"feeds"`
	ParsedItems []ParsedItem        `json:"parsed_items"`
}

// FeedInfo contains status information for a single RSS feed
type FeedInfo struct {
	LastCheck    time.Time  `json:"last_check"`
	LastSuccess  *time.Time `json:"last_success"`
	LastError    *string    `json:"last_error"`
	EntriesFound int        `json:"entries_found"`
	SuccessRate  float64    `json:"success_rate"`
}

// ParsedItem records one feed item that has already been consumed.
type ParsedItem struct {
	Key      string `json:"key"`
	FeedURL  string `json:"feed_url"`
	Title    string `json:"title"`
	ParsedAt string `json:"parsed_at"`
}

// parsedIndexKey creates a lookup key for the parsedIndex map
func parsedIndexKey(feedURL, itemKey string) string {
	return feedURL + "\x00" + itemKey
}

// NewTracker creates a new status tracker instance backed by the data dir
func NewTracker(dataDir string) (*Tracker, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	tracker := &Tracker{
		dataDir:     dataDir,
		runStatus:   newRunStatus(),
		feedStatus:  newFeedStatus(),
		parsedIndex: make(map[string]struct{}),
	}

	// Load existing status files if they exist
	if err := tracker.loadRunStatus(); err != nil {
		log.WithError(err).Warn("Failed to load existing run status, starting fresh")
	}

	if err := tracker.loadFeedStatus(); err != nil {
		log.WithError(err).Warn("Failed to load existing feed status, starting fresh")
	}

	return tracker, nil
}

func newRunStatus() *RunStatus {
	return &RunStatus{
		LastUpdated: time.Now(),
		Runs:        make([]RunRecord, 0),
	}
}

func newFeedStatus() *FeedStatus {
	return &FeedStatus{
		LastUpdated: time.Now(),
		Feeds:       make(map[string]FeedInfo),
		ParsedItems: make([]ParsedItem, 0),
	}
}

// RecordRun appends a run record to the history, updates last success/error
// and persists the result.
func (t *Tracker) RecordRun(record RunRecord) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := time.Now()
	t.runStatus.LastUpdated = now

	if record.Error == "" {
		t.runStatus.LastSuccess = &now
		t.runStatus.LastError = nil
	} else {
		errCopy := record.Error
		t.runStatus.LastError = &errCopy
	}

	t.runStatus.Runs = append(t.runStatus.Runs, record)
	if len(t.runStatus.Runs) > maxRunHistory {
		t.runStatus.Runs = t.runStatus.Runs[len(t.runStatus.Runs)-maxRunHistory:]
	}

	if err := t.saveRunStatus(); err != nil {
		log.WithError(err).Error("Failed to save run status")
	}
}

// LastRun returns the most recent run record, or false when none exists.
func (t *Tracker) LastRun() (RunRecord, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if len(t.runStatus.Runs) == 0 {
		return RunRecord{}, false
	}
	return t.runStatus.Runs[len(t.runStatus.Runs)-1], true
}

// RunHistory returns a copy of the persisted run records, oldest first.
func (t *Tracker) RunHistory() []RunRecord {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	runs := make([]RunRecord, len(t.runStatus.Runs))
	copy(runs, t.runStatus.Runs)
	return runs
}

// feedRateWeight is how far one check moves a feed's success rate toward
// its latest outcome (exponential moving average).
const feedRateWeight = 0.1

// RecordFeedCheck updates a feed's health entry after one fetch attempt.
// A nil checkErr is a success; a non-nil checkErr records the failure and
// drags the success rate toward zero. The first check seeds the rate with
// its own outcome.
func (t *Tracker) RecordFeedCheck(feedURL string, entriesFound int, checkErr error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := time.Now()

	outcome := 0.0
	if checkErr == nil {
		outcome = 1.0
	}

	info, known := t.feedStatus.Feeds[feedURL]
	if known {
		info.SuccessRate = info.SuccessRate*(1-feedRateWeight) + outcome*feedRateWeight
	} else {
		info.SuccessRate = outcome
	}

	info.LastCheck = now
	info.EntriesFound = entriesFound
	if checkErr == nil {
		info.LastSuccess = &now
		info.LastError = nil
	} else {
		msg := checkErr.Error()
		info.LastError = &msg
	}

	t.feedStatus.Feeds[feedURL] = info
	t.feedStatus.LastUpdated = now

	if err := t.saveFeedStatus(); err != nil {
		log.WithError(err).Error("Failed to save feed status")
	}
}

// FeedHealth returns the recorded health entry for a feed URL.
func (t *Tracker) FeedHealth(feedURL string) (FeedInfo, bool) {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	info, ok := t.feedStatus.Feeds[feedURL]
	return info, ok
}

// IsItemParsed reports whether a feed item has already been consumed.
func (t *Tracker) IsItemParsed(feedURL, itemKey string) bool {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	_, ok := t.parsedIndex[parsedIndexKey(feedURL, itemKey)]
	return ok
}

// MarkItemParsed records a feed item as consumed and persists the change.
func (t *Tracker) MarkItemParsed(feedURL, itemKey, itemTitle string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	key := parsedIndexKey(feedURL, itemKey)
	if _, ok := t.parsedIndex[key]; ok {
		return
	}

	t.parsedIndex[key] = struct{}{}
	t.feedStatus.ParsedItems = append(t.feedStatus.ParsedItems, ParsedItem{
		Key:      itemKey,
		FeedURL:  feedURL,
		Title:    itemTitle,
		ParsedAt: time.Now().Format(time.RFC3339),
	})
	t.feedStatus.LastUpdated = time.Now()

	if err := t.saveFeedStatus(); err != nil {
		log.WithError(err).Error("Failed to save feed status")
	}
}

func (t *Tracker) runStatusPath() string {
	return filepath.Join(t.dataDir, "run_status.json")
}

func (t *Tracker) feedStatusPath() string {
	return filepath.Join(t.dataDir, "feed_status.json")
}

func (t *Tracker) loadRunStatus() error {
	data, err := os.ReadFile(t.runStatusPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read run status file: %w", err)
	}

	var loaded RunStatus
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse run status file: %w", err)
	}

	if loaded.Runs == nil {
		loaded.Runs = make([]RunRecord, 0)
	}
	t.runStatus = &loaded

	log.WithField("runs", len(loaded.Runs)).Debug("Loaded run status from disk")
	return nil
}

func (t *Tracker) loadFeedStatus() error {
	data, err := os.ReadFile(t.feedStatusPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read feed status file: %w", err)
	}

	var loaded FeedStatus
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse feed status file: %w", err)
	}

	if loaded.Feeds == nil {
		loaded.Feeds = make(map[string]FeedInfo)
	}
	if loaded.ParsedItems == nil {
		loaded.ParsedItems = make([]ParsedItem, 0)
	}
	t.feedStatus = &loaded

	// Rebuild the lookup index
	t.parsedIndex = make(map[string]struct{}, len(loaded.ParsedItems))
	for _, item := range loaded.ParsedItems {
		t.parsedIndex[parsedIndexKey(item.FeedURL, item.Key)] = struct{}{}
	}

	log.WithFields(log.Fields{
		"feeds":        len(loaded.Feeds),
		"parsed_items": len(loaded.ParsedItems),
	}).Debug("Loaded feed status from disk")
	return nil
}

// saveRunStatus writes the run status file. Caller must hold the mutex.
func (t *Tracker) saveRunStatus() error {
	return writeJSONFile(t.runStatusPath(), t.runStatus)
}

// saveFeedStatus writes the feed status file. Caller must hold the mutex.
func (t *Tracker) saveFeedStatus() error {
	return writeJSONFile(t.feedStatusPath(), t.feedStatus)
}

// writeJSONFile writes JSON atomically via a temp file + rename so a crash
// mid-write never corrupts the status files.
func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace status file: %w", err)
	}

	return nil
}
