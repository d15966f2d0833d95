package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// TelegramSink posts each blob as a document to a Telegram chat through the
// Bot API. The blob id is the file_id Telegram assigns to the document.
type TelegramSink struct {
	apiURL string
	token  string
	chatID int64
	client *http.Client
}

type telegramFile struct {
	FileID string `json:"file_id"`
}

type sendDocumentResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		Document  *telegramFile `json:"document"`
		Video     *telegramFile `json:"video"`
		Audio     *telegramFile `json:"audio"`
		Animation *telegramFile `json:"animation"`
	} `json:"result"`
}

// fileID picks the stored file from the message; Telegram may re-type
// a document as video, audio or animation.
func (r *sendDocumentResponse) fileID() string {
	for _, f := range []*telegramFile{r.Result.Document, r.Result.Video, r.Result.Audio, r.Result.Animation} {
		if f != nil && f.FileID != "" {
			return f.FileID
		}
	}
	return ""
}

// NewTelegramSink creates a sink for the given bot and chat.
// apiURL is normally https://api.telegram.org.
func NewTelegramSink(apiURL, token string, chatID int64, client *http.Client) *TelegramSink {
	if client == nil {
		client = http.DefaultClient
	}
	return &TelegramSink{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		chatID: chatID,
		client: client,
	}
}

func (s *TelegramSink) Kind() string { return "telegram" }

// Store streams data to sendDocument without buffering the whole file.
func (s *TelegramSink) Store(ctx context.Context, name string, data io.Reader, _ int64) (string, error) {
	filename := SanitizeFilename(name)
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(s.writeForm(form, filename, data))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/bot"+s.token+"/sendDocument", pr)
	if err != nil {
		pr.Close()
		return "", fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		// url.Error embeds the request URL, which carries the bot token.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return "", fmt.Errorf("telegram sendDocument failed: %w", err)
	}
	defer resp.Body.Close()

	var body sendDocumentResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode telegram response (status %d): %w", resp.StatusCode, err)
	}
	if !body.OK {
		return "", fmt.Errorf("%w: telegram status %d: %s", ErrSinkRejected, resp.StatusCode, body.Description)
	}

	fileID := body.fileID()
	if fileID == "" {
		return "", fmt.Errorf("%w: telegram response has no file_id", ErrSinkRejected)
	}
	return fileID, nil
}

func (s *TelegramSink) writeForm(form *multipart.Writer, filename string, data io.Reader) error {
	if err := form.WriteField("chat_id", strconv.FormatInt(s.chatID, 10)); err != nil {
		return err
	}
	part, err := form.CreateFormFile("document", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, data); err != nil {
		return err
	}
	return form.Close()
}
