package models

type SelectModelRequest struct {
	Model string `json:"model" validate:"required"`
}

type TailorRequest struct {
	JobDescription string `json:"job_description" validate:"required"`
}

type ReplyRequest struct {
	Message string `json:"message" validate:"required,max=20000"`
}

type AttachmentResponse struct {
	Index     int       `json:"index"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"size_human"`
	MIMEType  string    `json:"mime_type"`
	State     FileState `json:"state"`
}

type UploadFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type AttachmentsResponse struct {
	Added       []string             `json:"added"`
	Skipped     []string             `json:"skipped"`
	Failed      []UploadFailure      `json:"failed"`
	Attachments []AttachmentResponse `json:"attachments"`
	SlotsLeft   int                  `json:"slots_left"`
}

type SessionResponse struct {
	ID             string               `json:"id"`
	Model          string               `json:"model"`
	Stage          string               `json:"stage"`
	ResumeText     string               `json:"resume_text"`
	ResumeFile     *AttachmentResponse  `json:"resume_file,omitempty"`
	JobDescription string               `json:"job_description"`
	Attachments    []AttachmentResponse `json:"attachments"`
	SlotsLeft      int                  `json:"slots_left"`
	ChatHistory    []ChatMessage        `json:"chat_history"`
	Scores         Scores               `json:"scores"`
	PostScores     Scores               `json:"post_scores"`
	Packs          []Pack               `json:"packs"`
	Selection      []int                `json:"selection"`
}

type TurnResponse struct {
	Stage      string  `json:"stage"`
	Reply      string  `json:"reply"`
	Scores     *Scores `json:"scores,omitempty"`
	PostScores *Scores `json:"post_scores,omitempty"`
	Packs      []Pack  `json:"packs,omitempty"`
	Selection  []int   `json:"selection,omitempty"`
}

type ExportResponse struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

type PromptInfoResponse struct {
	Source string `json:"source"`
	Chars  int    `json:"chars"`
	Loaded bool   `json:"loaded"`
}
