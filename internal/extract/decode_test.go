package extract

import (
	"strings"
	"testing"

	"github.com/brcs124/2FacTrac/internal/model"
)

func TestDecodeBody_PrefersPlainAndKeepsHTML(t *testing.T) {
	msg := newMessage("m1", "a@b.c", "plain body", "<p>html body</p>", 0)

	body := DecodeBody(msg, testLogger())

	if body.PlainText != "plain body" {
		t.Errorf("PlainText = %q", body.PlainText)
	}
	if body.HTML != "<p>html body</p>" {
		t.Errorf("HTML = %q", body.HTML)
	}
	if body.SearchText() != "plain body" {
		t.Errorf("SearchText = %q, want plain text", body.SearchText())
	}
}

func TestDecodeBody_HTMLOnlyUsesStrippedSurrogate(t *testing.T) {
	msg := newMessage("m1", "a@b.c", "", "<div>Your code is <b>482913</b></div>", 0)

	body := DecodeBody(msg, testLogger())

	if body.PlainText != "" {
		t.Errorf("PlainText = %q, want empty", body.PlainText)
	}
	if got := body.SearchText(); got != "Your code is 482913" {
		t.Errorf("SearchText = %q", got)
	}
	if !strings.Contains(body.HTML, "<b>482913</b>") {
		t.Errorf("HTML should be kept intact, got %q", body.HTML)
	}
}

func TestDecodeBody_NestedMultipartAppended(t *testing.T) {
	msg := model.RawMessage{
		ID: "m1",
		Payload: model.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []model.MessagePart{
				textPart("text/plain", "outer"),
				{
					MimeType: "multipart/alternative",
					Parts: []model.MessagePart{
						textPart("text/plain", "inner"),
						textPart("text/html", "<p>inner html</p>"),
					},
				},
			},
		},
	}

	body := DecodeBody(msg, testLogger())

	if body.PlainText != "outer\ninner" {
		t.Errorf("PlainText = %q, want outer then inner", body.PlainText)
	}
	if body.HTML != "<p>inner html</p>" {
		t.Errorf("HTML = %q", body.HTML)
	}
}

func TestDecodeBody_SinglePart(t *testing.T) {
	tests := []struct {
		name      string
		mimeType  string
		wantPlain string
		wantHTML  string
	}{
		{"plain", "text/plain", "hello", ""},
		{"html", "text/html", "", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := model.RawMessage{ID: "m", Payload: textPart(tt.mimeType, "hello")}
			body := DecodeBody(msg, testLogger())
			if body.PlainText != tt.wantPlain || body.HTML != tt.wantHTML {
				t.Errorf("got plain=%q html=%q", body.PlainText, body.HTML)
			}
		})
	}
}

func TestDecodeBody_MalformedPartDoesNotAbortSiblings(t *testing.T) {
	msg := model.RawMessage{
		ID: "m1",
		Payload: model.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []model.MessagePart{
				{MimeType: "text/plain", Body: &model.PartBody{Data: "!!!not base64!!!"}},
				textPart("text/html", "<p>Code 123456</p>"),
			},
		},
	}

	body := DecodeBody(msg, testLogger())

	if body.PlainText != "" {
		t.Errorf("PlainText = %q, want empty for malformed part", body.PlainText)
	}
	if body.HTML != "<p>Code 123456</p>" {
		t.Errorf("HTML = %q", body.HTML)
	}
}

func TestDecodeBody_SnippetFallback(t *testing.T) {
	msg := model.RawMessage{
		ID:      "m1",
		Payload: model.MessagePart{MimeType: "multipart/alternative"},
		Snippet: "Your verification code is 774411",
	}

	body := DecodeBody(msg, testLogger())

	if body.Empty() {
		t.Fatal("body with a snippet must not be empty")
	}
	if body.SearchText() != msg.Snippet {
		t.Errorf("SearchText = %q, want snippet", body.SearchText())
	}
}

func TestDecodeBase64URL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"url alphabet", b64("a?b>c"), "a?b>c", false},
		{"no padding", strings.TrimRight(b64("ab"), "="), "ab", false},
		{"standard alphabet", "Pz8/", "???", false},
		{"malformed", "@@@", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBase64URL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripHTML(t *testing.T) {
	got := stripHTML("<p>Hello&nbsp;<b>world</b></p><p>A &amp; B</p>")
	want := "Hello world\nA & B"
	if got != want {
		t.Errorf("stripHTML = %q, want %q", got, want)
	}
}

func TestStripHTML_DropsStyleAndScript(t *testing.T) {
	html := `<style type="text/css">p{color:#333333}</style>` +
		`<script>var otp = "999999";</script><p>Use this code</p>`

	got := stripHTML(html)

	if got != "Use this code" {
		t.Errorf("stripHTML = %q, want only visible text", got)
	}
}

func TestDecodeBody_InlineCSSDoesNotHideHTMLCode(t *testing.T) {
	msg := newMessage("m1", "a@b.c", "",
		`<style>p{color:#333333}</style><p>Use this code</p><td>AB12CD</td>`, 0)

	got, ok := ExtractCode(DecodeBody(msg, testLogger()))

	if !ok || got.Value != "AB12CD" {
		t.Fatalf("ExtractCode = %+v, %v; want AB12CD", got, ok)
	}
	if got.Tier != 3 {
		t.Errorf("tier = %d, want 3", got.Tier)
	}
}
