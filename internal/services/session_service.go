package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"alfredoptarigan/readysetrole/internal/models"
	"alfredoptarigan/readysetrole/internal/pkg/logger"
	"alfredoptarigan/readysetrole/internal/repositories"
)

const previewChars = 2000

// Upload is a file received from a client, read fully into memory.
type Upload struct {
	Name string
	Data []byte
}

type AttachmentsResult struct {
	Session *models.Session
	Added   []string
	Skipped []string
	Failed  []models.UploadFailure
}

// TurnResult is returned by Tailor and Reply. On ErrModelCall it is still
// set, with Reply holding the inline error shown in the transcript.
type TurnResult struct {
	Session *models.Session
	Reply   string
}

type SessionOptions struct {
	DefaultModel   string
	MaxAttachments int
	MaxFileSize    int64
}

type SessionService interface {
	Create(ctx context.Context) (*models.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	SelectModel(ctx context.Context, id uuid.UUID, model string) (*models.Session, error)
	SaveResume(ctx context.Context, id uuid.UUID, text string, file *Upload) (*models.Session, error)
	ForgetResume(ctx context.Context, id uuid.UUID) (*models.Session, error)
	AddAttachments(ctx context.Context, id uuid.UUID, uploads []Upload) (*AttachmentsResult, error)
	RemoveAttachment(ctx context.Context, id uuid.UUID, index int) (*models.Session, error)
	Tailor(ctx context.Context, id uuid.UUID, jobDescription string) (*TurnResult, error)
	Reply(ctx context.Context, id uuid.UUID, message string) (*TurnResult, error)
	ClearChat(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Deliverable(ctx context.Context, id uuid.UUID) (string, error)
	Export(ctx context.Context, id uuid.UUID) (*models.ExportResponse, error)
	OpenExport(ctx context.Context, key string) (io.ReadCloser, error)
	PromptInfo() models.PromptInfoResponse
	MaxAttachments() int
	DefaultModel() string
}

type sessionService struct {
	sessionRepo   repositories.SessionRepository
	chatModel     ChatModel
	fileStore     FileStore
	activator     *Activator
	janitor       FileJanitor
	exportStore   ExportStore
	promptBuilder *PromptBuilder
	options       SessionOptions
	logger        logger.ILogger
	locks         *keyedMutex
	now           func() time.Time
}

func NewSessionService(
	sessionRepo repositories.SessionRepository,
	chatModel ChatModel,
	fileStore FileStore,
	activator *Activator,
	janitor FileJanitor,
	exportStore ExportStore,
	promptBuilder *PromptBuilder,
	options SessionOptions,
	log logger.ILogger,
) SessionService {
	if options.DefaultModel == "" {
		options.DefaultModel = ModelPro
	}
	return &sessionService{
		sessionRepo:   sessionRepo,
		chatModel:     chatModel,
		fileStore:     fileStore,
		activator:     activator,
		janitor:       janitor,
		exportStore:   exportStore,
		promptBuilder: promptBuilder,
		options:       options,
		logger:        log,
		locks:         newKeyedMutex(),
		now:           time.Now,
	}
}

func (s *sessionService) Create(ctx context.Context) (*models.Session, error) {
	session := models.NewSession(s.options.DefaultModel, s.now())
	session.AppendMessage(models.RoleAssistant, s.promptBuilder.Greeting(), s.now())
	session.Bootstrapped = true

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session", "session created", map[string]interface{}{
		"session_id": session.ID.String(),
		"model":      session.Model,
	})

	return session, nil
}

func (s *sessionService) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return s.sessionRepo.FindByID(ctx, id)
}

func (s *sessionService) Delete(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.sessionRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.janitor.ReleaseSession(session)
	s.logger.Info("session", "session deleted", map[string]interface{}{"session_id": id.String()})

	return nil
}

func (s *sessionService) SelectModel(ctx context.Context, id uuid.UUID, model string) (*models.Session, error) {
	if !IsAllowedModel(model) {
		return nil, fmt.Errorf("%w: %q (allowed: %s)", ErrInvalidModel, model, strings.Join(AllowedModels, ", "))
	}

	return s.mutate(ctx, id, func(session *models.Session) ([]string, error) {
		if session.Model == model {
			return nil, nil
		}
		// a new model starts a fresh remote conversation; the visible transcript stays
		session.Model = model
		session.Conversation = []models.Turn{}
		return nil, nil
	})
}

// SaveResume always stores the trimmed text. A rejected or failed upload keeps
// the previous resume file and is returned as the error.
func (s *sessionService) SaveResume(ctx context.Context, id uuid.UUID, text string, file *Upload) (*models.Session, error) {
	var uploaded *models.UploadedFile
	var uploadErr error
	if file != nil {
		uploaded, uploadErr = s.upload(ctx, *file)
	}

	session, err := s.mutate(ctx, id, func(session *models.Session) ([]string, error) {
		session.ResumeText = strings.TrimSpace(text)

		var released []string
		if uploadErr == nil {
			if session.ResumeFile != nil {
				released = append(released, session.ResumeFile.Remote.Name)
			}
			session.ResumeFile = uploaded
		}

		syncInputsStage(session)
		return released, nil
	})
	if err != nil {
		if uploaded != nil {
			s.janitor.Enqueue(uploaded.Remote.Name)
		}
		return nil, err
	}
	if uploadErr != nil {
		s.logger.Warn("session", "resume upload failed, text saved", map[string]interface{}{
			"session_id": id.String(),
			"file":       file.Name,
			"error":      uploadErr.Error(),
		})
		return session, uploadErr
	}
	return session, nil
}

func (s *sessionService) ForgetResume(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return s.mutate(ctx, id, func(session *models.Session) ([]string, error) {
		var released []string
		if session.ResumeFile != nil {
			released = append(released, session.ResumeFile.Remote.Name)
		}
		session.ResumeText = ""
		session.ResumeFile = nil

		syncInputsStage(session)
		return released, nil
	})
}

func (s *sessionService) AddAttachments(ctx context.Context, id uuid.UUID, uploads []Upload) (*AttachmentsResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(uploads) > 0 && session.SlotsLeft(s.options.MaxAttachments) == 0 {
		return nil, fmt.Errorf("%w: %d of %d files attached", ErrAttachmentLimit, len(session.Attachments), s.options.MaxAttachments)
	}

	result := &AttachmentsResult{
		Added:   []string{},
		Skipped: []string{},
		Failed:  []models.UploadFailure{},
	}

	for _, u := range uploads {
		if session.HasAttachment(u.Name, int64(len(u.Data))) {
			result.Skipped = append(result.Skipped, u.Name)
			continue
		}
		if session.SlotsLeft(s.options.MaxAttachments) == 0 {
			result.Failed = append(result.Failed, models.UploadFailure{Name: u.Name, Error: ErrAttachmentLimit.Error()})
			continue
		}

		f, err := s.upload(ctx, u)
		if err != nil {
			s.logger.Warn("session", "attachment upload failed", map[string]interface{}{
				"session_id": id.String(),
				"file":       u.Name,
				"error":      err.Error(),
			})
			result.Failed = append(result.Failed, models.UploadFailure{Name: u.Name, Error: err.Error()})
			continue
		}

		session.Attachments = append(session.Attachments, *f)
		result.Added = append(result.Added, f.Name)
	}

	if err := s.save(ctx, session); err != nil {
		// nothing references the new uploads now
		for _, a := range session.Attachments[len(session.Attachments)-len(result.Added):] {
			s.janitor.Enqueue(a.Remote.Name)
		}
		return nil, err
	}

	result.Session = session
	return result, nil
}

func (s *sessionService) RemoveAttachment(ctx context.Context, id uuid.UUID, index int) (*models.Session, error) {
	return s.mutate(ctx, id, func(session *models.Session) ([]string, error) {
		if index < 0 || index >= len(session.Attachments) {
			return nil, fmt.Errorf("%w: index %d", ErrAttachmentNotFound, index)
		}

		released := []string{session.Attachments[index].Remote.Name}
		session.Attachments = append(session.Attachments[:index], session.Attachments[index+1:]...)
		return released, nil
	})
}

func (s *sessionService) Tailor(ctx context.Context, id uuid.UUID, jobDescription string) (*TurnResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	session.JobDescription = strings.TrimSpace(jobDescription)
	if !session.HasInputs() {
		syncInputsStage(session)
		if err := s.save(ctx, session); err != nil {
			return nil, err
		}
		return nil, ErrMissingInputs
	}

	if err := Transition(session, EventTailor); err != nil {
		return nil, err
	}

	files, err := s.prepareFiles(ctx, session)
	if err != nil {
		return nil, err
	}

	turn := models.Turn{
		Role:  models.RoleUser,
		Texts: []string{s.promptBuilder.BuildTailorPrompt(session.ResumeText, session.JobDescription)},
		Files: files,
	}

	s.logger.Info("session", "tailoring started", map[string]interface{}{
		"session_id": id.String(),
		"model":      session.Model,
		"files":      len(files),
	})

	reply, err := s.chatModel.Generate(ctx, session.Model, liveHistory(session), turn)
	if err != nil {
		return s.failTurn(ctx, session, err)
	}

	session.Conversation = append(session.Conversation, turn, assistantTurn(reply))
	session.AppendMessage(models.RoleAssistant, reply, s.now())
	session.Scores = ParseScores(reply, "scores")
	session.PostScores = models.ZeroScores()
	session.Packs = ParsePacks(reply)
	session.Selection = []int{}

	if err := Transition(session, EventPacksReceived); err != nil {
		return nil, err
	}
	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session", "packs received", map[string]interface{}{
		"session_id": id.String(),
		"overall":    session.Scores.Overall,
		"packs":      len(session.Packs),
	})

	return &TurnResult{Session: session, Reply: reply}, nil
}

func (s *sessionService) Reply(ctx context.Context, id uuid.UUID, message string) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrMissingInputs)
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	session.AppendMessage(models.RoleUser, message, s.now())

	var selection []int
	if parsed, ok := ParseSelection(message); ok && AcceptsSelection(session.Stage) {
		if err := Transition(session, EventChoice); err != nil {
			return nil, err
		}
		selection = parsed
		session.Selection = parsed
	}

	files, err := s.prepareFiles(ctx, session)
	if err != nil {
		return nil, err
	}

	turn := models.Turn{
		Role: models.RoleUser,
		Texts: []string{
			s.promptBuilder.BuildTurnContext(session.ResumeText, session.JobDescription, selection, session.Packs),
			message,
		},
		Files: files,
	}

	reply, err := s.chatModel.Generate(ctx, session.Model, liveHistory(session), turn)
	if err != nil {
		return s.failTurn(ctx, session, err)
	}

	session.Conversation = append(session.Conversation, turn, assistantTurn(reply))
	session.AppendMessage(models.RoleAssistant, reply, s.now())

	if session.Stage == models.StageApplying {
		session.PostScores = ParseScores(reply, "post_scores")
		if err := Transition(session, EventDelivered); err != nil {
			return nil, err
		}
	}

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	return &TurnResult{Session: session, Reply: reply}, nil
}

func (s *sessionService) ClearChat(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return s.mutate(ctx, id, func(session *models.Session) ([]string, error) {
		session.ClearChat()
		return nil, nil
	})
}

func (s *sessionService) Deliverable(ctx context.Context, id uuid.UUID) (string, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.deliverable(session)
}

func (s *sessionService) Export(ctx context.Context, id uuid.UUID) (*models.ExportResponse, error) {
	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	text, err := s.deliverable(session)
	if err != nil {
		return nil, err
	}

	key, err := s.exportStore.Save(ctx, session.ID, []byte(text))
	if err != nil {
		return nil, err
	}

	url, err := s.exportStore.URL(ctx, key)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session", "deliverable exported", map[string]interface{}{
		"session_id": id.String(),
		"key":        key,
	})

	return &models.ExportResponse{Key: key, URL: url}, nil
}

func (s *sessionService) OpenExport(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.exportStore.Open(ctx, key)
}

func (s *sessionService) PromptInfo() models.PromptInfoResponse {
	return s.promptBuilder.Info()
}

func (s *sessionService) MaxAttachments() int {
	return s.options.MaxAttachments
}

// DefaultModel is the model new sessions start with.
func (s *sessionService) DefaultModel() string {
	return s.options.DefaultModel
}

// mutate runs fn on a fresh copy of the session under its lock and saves the
// result. Nothing is saved when fn fails. The remote files fn returns are
// handed to the janitor only once the save went through.
func (s *sessionService) mutate(ctx context.Context, id uuid.UUID, fn func(session *models.Session) ([]string, error)) (*models.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	session, err := s.sessionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	released, err := fn(session)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}

	s.janitor.Enqueue(released...)
	return session, nil
}

func (s *sessionService) save(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = s.now()
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// upload validates and sends one file to the Files API. Local text is kept as
// a preview only; the model reads the remote copy.
func (s *sessionService) upload(ctx context.Context, u Upload) (*models.UploadedFile, error) {
	size := int64(len(u.Data))
	if s.options.MaxFileSize > 0 && size > s.options.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %s (max %s)", ErrFileTooLarge, u.Name, HumanSize(size), HumanSize(s.options.MaxFileSize))
	}

	mimeType, err := DetectFileType(u.Name, u.Data)
	if err != nil {
		return nil, err
	}

	remote, err := s.fileStore.Upload(ctx, u.Name, mimeType, u.Data)
	if err != nil {
		return nil, fmt.Errorf("upload failed for %s: %w", u.Name, err)
	}

	preview, err := ExtractText(mimeType, u.Data)
	if err != nil {
		s.logger.Debug("session", "no local preview", map[string]interface{}{
			"file":  u.Name,
			"error": err.Error(),
		})
	}

	return &models.UploadedFile{
		Name:        u.Name,
		Size:        size,
		MIMEType:    mimeType,
		Remote:      *remote,
		PreviewText: Preview(preview, previewChars),
		UploadedAt:  s.now(),
	}, nil
}

// prepareFiles waits for the session's files to turn ACTIVE, stores the
// refreshed states and returns the references to attach. FAILED files are left out.
func (s *sessionService) prepareFiles(ctx context.Context, session *models.Session) ([]models.FileRef, error) {
	uploaded := session.FilesForTurn()
	if len(uploaded) == 0 {
		return nil, nil
	}

	remotes := make([]models.RemoteFile, len(uploaded))
	for i, f := range uploaded {
		remotes[i] = f.Remote
	}

	refreshed, err := s.activator.EnsureActive(ctx, remotes)
	if err != nil {
		return nil, fmt.Errorf("failed to activate files: %w", err)
	}

	offset := 0
	if session.ResumeFile != nil {
		session.ResumeFile.Remote = refreshed[0]
		offset = 1
	}
	for i := range session.Attachments {
		session.Attachments[i].Remote = refreshed[offset+i]
	}

	refs := make([]models.FileRef, 0, len(refreshed))
	for _, r := range refreshed {
		if r.State == models.FileStateFailed {
			s.logger.Warn("session", "skipping failed file", map[string]interface{}{
				"session_id": session.ID.String(),
				"file":       r.Name,
			})
			continue
		}
		refs = append(refs, models.FileRef{Name: r.Name, URI: r.URI, MIMEType: r.MIMEType})
	}
	return refs, nil
}

// failTurn records a failed model call inline, rolls the stage back and saves.
func (s *sessionService) failTurn(ctx context.Context, session *models.Session, cause error) (*TurnResult, error) {
	msg := FormatError(cause)
	session.AppendMessage(models.RoleAssistant, msg, s.now())

	if IsBusy(session.Stage) {
		if err := Transition(session, EventFailed); err != nil {
			return nil, err
		}
	}

	s.logger.Error("session", "model call failed", map[string]interface{}{
		"session_id": session.ID.String(),
		"stage":      string(session.Stage),
		"error":      cause.Error(),
	})

	if err := s.save(ctx, session); err != nil {
		return nil, err
	}
	return &TurnResult{Session: session, Reply: msg}, fmt.Errorf("%w: %v", ErrModelCall, cause)
}

// deliverable is the latest real model reply: the greeting and inline errors
// do not count.
func (s *sessionService) deliverable(session *models.Session) (string, error) {
	greeting := s.promptBuilder.Greeting()
	text, ok := session.LastAssistantMessage(func(text string) bool {
		return text == greeting || strings.HasPrefix(text, errorPrefix)
	})
	if !ok {
		return "", ErrNoDeliverable
	}
	return text, nil
}

// syncInputsStage moves to options once both inputs are present and back to
// idle as soon as one is gone, so a pack choice never runs without a resume.
func syncInputsStage(session *models.Session) {
	switch session.Stage {
	case models.StageIdle:
		if session.HasInputs() {
			_ = Transition(session, EventInputsReady)
		}
	case models.StageOptions, models.StageAwaitingChoice, models.StageDelivered:
		if !session.HasInputs() {
			_ = Transition(session, EventInputsCleared)
		}
	}
}

// liveHistory drops file references to files the session no longer owns.
func liveHistory(session *models.Session) []models.Turn {
	owned := make(map[string]bool)
	for _, name := range session.RemoteFileNames() {
		owned[name] = true
	}

	history := make([]models.Turn, 0, len(session.Conversation))
	for _, t := range session.Conversation {
		kept := t
		kept.Files = nil
		for _, f := range t.Files {
			if owned[f.Name] {
				kept.Files = append(kept.Files, f)
			}
		}
		history = append(history, kept)
	}
	return history
}

func assistantTurn(reply string) models.Turn {
	return models.Turn{Role: models.RoleAssistant, Texts: []string{reply}}
}
