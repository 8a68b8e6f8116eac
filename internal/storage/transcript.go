package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Transcript roles.
const (
	RoleMetadata = "metadata"
	RoleUser     = "user"
	RoleAlexa    = "alexa"
	RoleEvent    = "event"
)

// TranscriptEntry represents one line of a device conversation.
type TranscriptEntry struct {
	Role      string          `json:"role"`
	Timestamp string          `json:"timestamp"`
	Content   string          `json:"content,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// TranscriptInfo represents a transcriptInfo.
type TranscriptInfo struct {
	UID         string          `json:"uid"`
	LatestEntry TranscriptEntry `json:"latest_entry"`
	Timestamp   string          `json:"timestamp"`
}

var safeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.]+$`)

// CreateTranscript starts an empty transcript for a device and returns its uid.
func CreateTranscript(baseDir string, deviceUID string) (string, error) {
	if deviceUID == "" {
		return "", errors.New("device uid is empty")
	}
	dir, err := ensureDeviceDir(baseDir, deviceUID)
	if err != nil {
		return "", err
	}
	uid := time.Now().Format("2006-01-02_15-04-05") + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	path := filepath.Join(dir, uid+".json")
	meta := []TranscriptEntry{{Role: RoleMetadata, Timestamp: time.Now().Format(time.RFC3339)}}
	if err := writeTranscript(path, meta); err != nil {
		return "", err
	}
	return uid, nil
}

// AppendTranscript adds entries to an existing transcript.
func AppendTranscript(baseDir string, deviceUID string, transcriptUID string, entries ...TranscriptEntry) error {
	path, err := transcriptPath(baseDir, deviceUID, transcriptUID)
	if err != nil {
		return err
	}
	existing, err := readTranscript(path)
	if err != nil {
		return err
	}
	now := time.Now().Format(time.RFC3339)
	for _, entry := range entries {
		if entry.Timestamp == "" {
			entry.Timestamp = now
		}
		existing = append(existing, entry)
	}
	return writeTranscript(path, existing)
}

// GetTranscript returns the conversation entries of a transcript.
func GetTranscript(baseDir string, deviceUID string, transcriptUID string) ([]TranscriptEntry, error) {
	path, err := transcriptPath(baseDir, deviceUID, transcriptUID)
	if err != nil {
		return nil, err
	}
	entries, err := readTranscript(path)
	if err != nil {
		return nil, err
	}
	filtered := []TranscriptEntry{}
	for _, entry := range entries {
		if entry.Role == RoleMetadata {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered, nil
}

// DeleteTranscript executes the deleteTranscript function.
func DeleteTranscript(baseDir string, deviceUID string, transcriptUID string) bool {
	path, err := transcriptPath(baseDir, deviceUID, transcriptUID)
	if err != nil {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	if err := os.Remove(path); err != nil {
		return false
	}
	return true
}

// ListTranscripts returns the non-empty transcripts of a device, newest first.
func ListTranscripts(baseDir string, deviceUID string) []TranscriptInfo {
	list := []TranscriptInfo{}
	dir, err := ensureDeviceDir(baseDir, deviceUID)
	if err != nil {
		return list
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return list
	}
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !strings.HasSuffix(dirEntry.Name(), ".json") {
			continue
		}
		transcriptUID := strings.TrimSuffix(dirEntry.Name(), ".json")
		entries, err := readTranscript(filepath.Join(dir, dirEntry.Name()))
		if err != nil {
			continue
		}
		var latest *TranscriptEntry
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].Role == RoleMetadata {
				continue
			}
			entry := entries[i]
			latest = &entry
			break
		}
		if latest == nil {
			continue
		}
		list = append(list, TranscriptInfo{
			UID:         transcriptUID,
			LatestEntry: *latest,
			Timestamp:   latest.Timestamp,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Timestamp > list[j].Timestamp
	})

	return list
}

func ensureDeviceDir(baseDir string, deviceUID string) (string, error) {
	if baseDir == "" {
		return "", errors.New("transcript base dir is empty")
	}
	if !safeNamePattern.MatchString(deviceUID) {
		return "", errors.New("invalid device uid")
	}
	path := filepath.Join(baseDir, deviceUID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func transcriptPath(baseDir string, deviceUID string, transcriptUID string) (string, error) {
	if baseDir == "" {
		return "", errors.New("transcript base dir is empty")
	}
	if !safeNamePattern.MatchString(deviceUID) || !safeNamePattern.MatchString(transcriptUID) {
		return "", errors.New("invalid transcript path")
	}
	return filepath.Join(baseDir, deviceUID, transcriptUID+".json"), nil
}

func readTranscript(path string) ([]TranscriptEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []TranscriptEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func writeTranscript(path string, entries []TranscriptEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
