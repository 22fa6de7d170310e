package extract

import (
	"encoding/base64"
	"io"
	"log/slog"

	"github.com/brcs124/2FacTrac/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func textPart(mimeType, content string) model.MessagePart {
	return model.MessagePart{
		MimeType: mimeType,
		Body:     &model.PartBody{Data: b64(content)},
	}
}

// newMessage builds a multipart/alternative message with the given plain
// and HTML bodies; empty bodies are left out.
func newMessage(id, from, plain, html string, ts int64) model.RawMessage {
	payload := model.MessagePart{
		MimeType: "multipart/alternative",
		Headers: []model.Header{
			{Name: "Subject", Value: "Your code"},
			{Name: "From", Value: from},
		},
	}
	if plain != "" {
		payload.Parts = append(payload.Parts, textPart("text/plain", plain))
	}
	if html != "" {
		payload.Parts = append(payload.Parts, textPart("text/html", html))
	}
	return model.RawMessage{ID: id, Payload: payload, InternalDate: ts}
}

func plainBody(text string) model.DecodedBody {
	return model.NewDecodedBody(text, "", "", "")
}

func htmlBody(html string) model.DecodedBody {
	return model.NewDecodedBody("", html, stripHTML(html), "")
}
