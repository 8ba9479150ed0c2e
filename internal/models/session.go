package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Stage string

const (
	StageIdle           Stage = "idle"
	StageOptions        Stage = "options"
	StageAwaitingPacks  Stage = "awaiting-packs"
	StageAwaitingChoice Stage = "awaiting-choice"
	StageApplying       Stage = "applying"
	StageDelivered      Stage = "delivered"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type FileState string

const (
	FileStateUnspecified FileState = "STATE_UNSPECIFIED"
	FileStateProcessing  FileState = "PROCESSING"
	FileStateActive      FileState = "ACTIVE"
	FileStateFailed      FileState = "FAILED"
)

type ChatMessage struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// RemoteFile is the Files API handle. Name is opaque ("files/abc123").
type RemoteFile struct {
	Name      string    `json:"name"`
	URI       string    `json:"uri"`
	MIMEType  string    `json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	State     FileState `json:"state"`
}

func (f RemoteFile) IsActive() bool {
	return f.State == FileStateActive
}

type UploadedFile struct {
	Name        string     `json:"name"`
	Size        int64      `json:"size"`
	MIMEType    string     `json:"mime_type"`
	Remote      RemoteFile `json:"remote"`
	PreviewText string     `json:"preview_text,omitempty"`
	UploadedAt  time.Time  `json:"uploaded_at"`
}

type FileRef struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MIMEType string `json:"mime_type"`
}

// Turn is one model-side conversation entry. It carries the prompt scaffolding
// and file references, unlike ChatMessage which is what the user sees.
type Turn struct {
	Role  Role      `json:"role"`
	Texts []string  `json:"texts"`
	Files []FileRef `json:"files,omitempty"`
}

type Scores struct {
	Overall         float64            `json:"overall"`
	Subscores       map[string]float64 `json:"subscores"`
	MissingKeywords []string           `json:"missing_keywords"`
	Explanation     string             `json:"explanation"`
}

// ZeroScores is what the UI shows when the model did not return usable JSON.
func ZeroScores() Scores {
	return Scores{
		Subscores:       map[string]float64{},
		MissingKeywords: []string{},
	}
}

type Pack struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	Delta    float64  `json:"delta"`
}

type Session struct {
	ID             uuid.UUID      `json:"id"`
	Model          string         `json:"model"`
	Stage          Stage          `json:"stage"`
	Bootstrapped   bool           `json:"bootstrapped"`
	ResumeText     string         `json:"resume_text"`
	ResumeFile     *UploadedFile  `json:"resume_file,omitempty"`
	JobDescription string         `json:"job_description"`
	Attachments    []UploadedFile `json:"attachments"`
	ChatHistory    []ChatMessage  `json:"chat_history"`
	Conversation   []Turn         `json:"conversation"`
	Scores         Scores         `json:"scores"`
	PostScores     Scores         `json:"post_scores"`
	Packs          []Pack         `json:"packs"`
	Selection      []int          `json:"selection"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func NewSession(model string, now time.Time) *Session {
	return &Session{
		ID:           uuid.New(),
		Model:        model,
		Stage:        StageIdle,
		Attachments:  []UploadedFile{},
		ChatHistory:  []ChatMessage{},
		Conversation: []Turn{},
		Scores:       ZeroScores(),
		PostScores:   ZeroScores(),
		Packs:        []Pack{},
		Selection:    []int{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *Session) HasResume() bool {
	return strings.TrimSpace(s.ResumeText) != "" || s.ResumeFile != nil
}

func (s *Session) HasInputs() bool {
	return s.HasResume() && strings.TrimSpace(s.JobDescription) != ""
}

func (s *Session) SlotsLeft(max int) int {
	left := max - len(s.Attachments)
	if left < 0 {
		return 0
	}
	return left
}

func (s *Session) HasAttachment(name string, size int64) bool {
	for _, a := range s.Attachments {
		if a.Name == name && a.Size == size {
			return true
		}
	}
	return false
}

// FilesForTurn lists the resume file first, then the extra attachments.
func (s *Session) FilesForTurn() []UploadedFile {
	files := make([]UploadedFile, 0, len(s.Attachments)+1)
	if s.ResumeFile != nil {
		files = append(files, *s.ResumeFile)
	}
	return append(files, s.Attachments...)
}

func (s *Session) AppendMessage(role Role, text string, now time.Time) {
	s.ChatHistory = append(s.ChatHistory, ChatMessage{Role: role, Text: text, CreatedAt: now})
}

// LastAssistantMessage returns the newest assistant text that skip does not
// reject. A nil skip accepts every message.
func (s *Session) LastAssistantMessage(skip func(text string) bool) (string, bool) {
	for i := len(s.ChatHistory) - 1; i >= 0; i-- {
		m := s.ChatHistory[i]
		if m.Role != RoleAssistant || (skip != nil && skip(m.Text)) {
			continue
		}
		return m.Text, true
	}
	return "", false
}

// ClearChat drops the transcript and everything derived from model replies.
// Resume, JD and attachments survive.
func (s *Session) ClearChat() {
	s.ChatHistory = []ChatMessage{}
	s.Conversation = []Turn{}
	s.Scores = ZeroScores()
	s.PostScores = ZeroScores()
	s.Packs = []Pack{}
	s.Selection = []int{}
	s.Stage = StageIdle
}

// RemoteFileNames lists every Files API handle the session still owns.
func (s *Session) RemoteFileNames() []string {
	var names []string
	for _, f := range s.FilesForTurn() {
		if f.Remote.Name != "" {
			names = append(names, f.Remote.Name)
		}
	}
	return names
}
