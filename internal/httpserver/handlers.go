package httpserver

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/DCbrown/interview-ai-app/internal/apperr"
	"github.com/DCbrown/interview-ai-app/internal/conversation"
	"github.com/DCbrown/interview-ai-app/internal/interview"
	"github.com/DCbrown/interview-ai-app/internal/live"
	"github.com/DCbrown/interview-ai-app/internal/scrape"
	"github.com/DCbrown/interview-ai-app/internal/session"
)

type Handlers struct {
	deps      Deps
	maxUpload int64
}

func NewHandlers(deps Deps, maxUpload int64) Handlers {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return Handlers{deps: deps, maxUpload: maxUpload}
}

func (h Handlers) Register(e *echo.Echo) {
	e.POST("/chat", h.chat)
	e.POST("/scrape", h.scrape)
	e.POST("/transcribe", h.transcribe)
	e.POST("/interviews", h.createInterview)
	e.GET("/interviews/:id", h.getInterview)
	e.GET("/interviews/:id/live", h.liveInterview)
}

type errorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type chatRequest struct {
	Messages []conversation.Message `json:"messages"`
	Type     string                 `json:"type,omitempty"`
	Text     string                 `json:"text,omitempty"`
}

// chat streams a reply as plain text, or returns speech audio for {type:"speech"}.
func (h Handlers) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request", Details: err.Error()})
	}
	if req.Type == "speech" {
		return h.speech(c, req.Text)
	}

	if len(req.Messages) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request", Details: "messages are required"})
	}
	msgs := make([]conversation.Message, 0, len(req.Messages)+1)
	msgs = append(msgs, conversation.Message{Role: conversation.RoleSystem, Content: interview.Persona})
	for _, m := range req.Messages {
		if _, err := conversation.ParseRole(string(m.Role)); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request", Details: err.Error()})
		}
		msgs = append(msgs, m)
	}

	ctx := c.Request().Context()
	stream, err := h.deps.Chat.StreamChat(ctx, msgs)
	if err != nil {
		log.Error().Err(err).Str("component", "http").Msg("chat completion failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to process request"})
	}
	defer stream.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	res.WriteHeader(http.StatusOK)
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// headers are already sent; the client sees a truncated body
			log.Error().Err(err).Str("component", "http").Msg("chat stream interrupted")
			return nil
		}
		if _, err := res.Write([]byte(delta)); err != nil {
			return nil
		}
		res.Flush()
	}
}

func (h Handlers) speech(c echo.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request", Details: "text is required"})
	}
	audio, err := h.deps.Speech.Synthesize(c.Request().Context(), text)
	if err != nil {
		log.Error().Err(err).Str("component", "http").Msg("speech synthesis failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to process request"})
	}
	return c.Blob(http.StatusOK, audio.ContentType, audio.Data)
}

type scrapeRequest struct {
	URL string `json:"url"`
}

type scrapeResponse struct {
	TextContent string `json:"textContent"`
}

func (h Handlers) scrape(c echo.Context) error {
	var req scrapeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request", Details: err.Error()})
	}
	if strings.TrimSpace(req.URL) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "URL is required"})
	}
	if _, err := scrape.ValidateURL(req.URL); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request", Details: err.Error()})
	}

	text, err := h.deps.Scraper.Fetch(c.Request().Context(), req.URL)
	if errors.Is(err, scrape.ErrEmptyText) {
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "Failed to extract text content",
			Details: "The URL returned no text content",
		})
	}
	if err != nil {
		log.Warn().Err(err).Str("component", "http").Str("url", req.URL).Msg("scrape failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to scrape the text content", Details: err.Error()})
	}
	return c.JSON(http.StatusOK, scrapeResponse{TextContent: text})
}

type transcribeResponse struct {
	Text string `json:"text"`
}

func (h Handlers) transcribe(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "No file provided"})
	}
	data, err := h.readUpload(fh)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid file", Details: err.Error()})
	}
	mimeType := fh.Header.Get(echo.HeaderContentType)

	text, err := h.deps.Transcriber.Transcribe(c.Request().Context(), data, mimeType)
	if err != nil {
		log.Error().Err(err).Str("component", "http").Msg("transcription failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to transcribe audio"})
	}
	return c.JSON(http.StatusOK, transcribeResponse{Text: text})
}

type createInterviewResponse struct {
	ID            string `json:"id"`
	InterviewType string `json:"interviewType"`
}

// createInterview validates the setup form, extracts the résumé, scrapes the job
// posting and stores a new interview with its system prompt.
func (h Handlers) createInterview(c echo.Context) error {
	form := interview.Form{
		JobURL:        strings.TrimSpace(c.FormValue("jobUrl")),
		InterviewType: strings.TrimSpace(c.FormValue("interviewType")),
	}
	fh, fileErr := c.FormFile("resume")
	form.HasResume = fileErr == nil

	kind, err := form.Validate()
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: ae.UserMessage(), Fields: ae.Fields})
		}
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	data, err := h.readUpload(fh)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid file", Details: err.Error()})
	}
	resumeText, err := h.deps.ExtractResume(data)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: "Could not read resume", Details: err.Error()})
	}

	ctx := c.Request().Context()
	jobText, err := h.deps.Scraper.Fetch(ctx, form.JobURL)
	if err != nil {
		kindErr, _ := apperr.KindOf(err)
		log.Warn().Err(err).Str("component", "http").Str("kind", kindErr.String()).Msg("job scrape failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{
			Error:   "Error fetching job description. Please check the URL and try again.",
			Details: err.Error(),
		})
	}

	rec := &session.Record{
		ID:            uuid.NewString(),
		InterviewType: string(kind),
		JobURL:        form.JobURL,
		SystemPrompt: interview.SystemPrompt(interview.Inputs{
			ResumeText:         resumeText,
			JobURL:             form.JobURL,
			JobDescriptionText: jobText,
			Type:               kind,
		}),
	}
	if err := h.deps.Sessions.Create(ctx, rec); err != nil {
		log.Error().Err(err).Str("component", "http").Msg("create interview failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to create interview"})
	}
	log.Info().Str("component", "http").Str("sessionId", rec.ID).Str("type", rec.InterviewType).Msg("interview created")
	return c.JSON(http.StatusCreated, createInterviewResponse{ID: rec.ID, InterviewType: rec.InterviewType})
}

type interviewView struct {
	ID            string          `json:"id"`
	InterviewType string          `json:"interviewType"`
	JobURL        string          `json:"jobUrl"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Transcript    []session.Entry `json:"transcript"`
}

func (h Handlers) getInterview(c echo.Context) error {
	rec, err := h.deps.Sessions.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		log.Error().Err(err).Str("component", "http").Msg("load interview failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to load interview"})
	}
	if rec == nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Interview not found"})
	}
	transcript := rec.History
	if transcript == nil {
		transcript = []session.Entry{}
	}
	return c.JSON(http.StatusOK, interviewView{
		ID:            rec.ID,
		InterviewType: rec.InterviewType,
		JobURL:        rec.JobURL,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
		Transcript:    transcript,
	})
}

func (h Handlers) liveInterview(c echo.Context) error {
	err := h.deps.Live.Serve(c.Response(), c.Request(), c.Param("id"))
	if errors.Is(err, live.ErrSessionNotFound) {
		return c.JSON(http.StatusNotFound, errorResponse{Error: "Interview not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to open interview"})
	}
	return nil
}

func (h Handlers) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > h.maxUpload {
		return nil, errors.New("file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, h.maxUpload))
}
